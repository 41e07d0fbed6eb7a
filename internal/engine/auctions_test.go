package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artfolio/chainmarket/internal/domain"
)

// newTestAuction mints a token for alice and starts a 100-block auction
// with a 1M reserve.
func newTestAuction(t *testing.T, e *Engine) (domain.AuctionID, domain.TokenID) {
	t.Helper()
	id := mintTestToken(t, e, alice)
	fund(t, e, alice, DefaultActionFee)
	aid, err := e.CreateAuction(context.Background(), alice, id, 1_000_000, 100)
	require.NoError(t, err)
	return aid, id
}

func TestCreateAuction(t *testing.T) {
	e, _ := newTestEngine(t)
	aid, id := newTestAuction(t, e)

	a, err := e.GetAuction(aid)
	require.NoError(t, err)
	assert.Equal(t, id, a.TokenID)
	assert.Equal(t, alice, a.Seller)
	assert.Equal(t, domain.Amount(1_000_000), a.ReservePrice)
	assert.Equal(t, domain.BlockHeight(100), a.EndBlock)
	assert.Nil(t, a.HighestBidder)
	assert.Zero(t, a.CurrentBid)

	tok, err := e.GetToken(id)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenStateAuctioned, tok.State)
}

func TestCreateAuctionValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)
	fund(t, e, alice, DefaultActionFee*3)

	_, err := e.CreateAuction(ctx, alice, 99, 1_000, 10)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.CreateAuction(ctx, bob, id, 1_000, 10)
	require.ErrorIs(t, err, domain.ErrNotOwner)

	_, err = e.CreateAuction(ctx, alice, id, 0, 10)
	require.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = e.CreateAuction(ctx, alice, id, 1_000, 0)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = e.CreateAuction(ctx, alice, id, 1_000, 10)
	require.NoError(t, err)
	_, err = e.CreateAuction(ctx, alice, id, 1_000, 10)
	require.ErrorIs(t, err, domain.ErrTokenEncumbered)
}

func TestPlaceBid(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	aid, _ := newTestAuction(t, e)

	fund(t, e, bob, 1_000_000)
	fund(t, e, carol, 1_050_000)

	// First bid must meet the reserve.
	require.ErrorIs(t, e.PlaceBid(ctx, bob, aid, 999_999), domain.ErrBidTooLow)
	require.NoError(t, e.PlaceBid(ctx, bob, aid, 1_000_000))
	assert.Zero(t, e.GetBalance(bob))

	// Later bids need a 5% increment over the current bid.
	require.ErrorIs(t, e.PlaceBid(ctx, carol, aid, 1_010_000), domain.ErrBidTooLow)
	require.NoError(t, e.PlaceBid(ctx, carol, aid, 1_050_000))

	// The outbid bidder is refunded in full.
	assert.Equal(t, domain.Amount(1_000_000), e.GetBalance(bob))
	assert.Zero(t, e.GetBalance(carol))

	a, err := e.GetAuction(aid)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(1_050_000), a.CurrentBid)
	require.NotNil(t, a.HighestBidder)
	assert.Equal(t, carol, *a.HighestBidder)

	require.NoError(t, e.CheckEscrowInvariant())
}

func TestPlaceBidValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	aid, _ := newTestAuction(t, e)

	require.ErrorIs(t, e.PlaceBid(ctx, bob, 99, 1_000_000), domain.ErrNotFound)
	require.ErrorIs(t, e.PlaceBid(ctx, alice, aid, 1_000_000), domain.ErrInvalidArgument)
	require.ErrorIs(t, e.PlaceBid(ctx, bob, aid, 1_000_000), domain.ErrInsufficientFunds)

	advance(t, e, 100)
	fund(t, e, bob, 1_000_000)
	require.ErrorIs(t, e.PlaceBid(ctx, bob, aid, 1_000_000), domain.ErrInvalidArgument)
}

func TestRebidByHighestBidder(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	aid, _ := newTestAuction(t, e)

	// Bob raises his own bid: the prior escrow counts toward the new one,
	// so 1.1M total funds cover a 1.05M raise over 1M.
	fund(t, e, bob, 1_100_000)
	require.NoError(t, e.PlaceBid(ctx, bob, aid, 1_000_000))
	require.NoError(t, e.PlaceBid(ctx, bob, aid, 1_050_000))

	assert.Equal(t, domain.Amount(50_000), e.GetBalance(bob))
	require.NoError(t, e.CheckEscrowInvariant())
}

func TestAntiSnipeExtension(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	aid, _ := newTestAuction(t, e)

	// A bid outside the window does not move the end block.
	fund(t, e, bob, 1_000_000)
	require.NoError(t, e.PlaceBid(ctx, bob, aid, 1_000_000))
	a, err := e.GetAuction(aid)
	require.NoError(t, err)
	assert.Equal(t, domain.BlockHeight(100), a.EndBlock)

	// 12 blocks before the end, a bid extends by 72.
	advance(t, e, 88)
	fund(t, e, carol, 1_050_000)
	require.NoError(t, e.PlaceBid(ctx, carol, aid, 1_050_000))

	a, err = e.GetAuction(aid)
	require.NoError(t, err)
	assert.Equal(t, domain.BlockHeight(172), a.EndBlock)
}

func TestSettleAuction(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	aid, id := newTestAuction(t, e)

	fund(t, e, bob, 1_000_000)
	require.NoError(t, e.PlaceBid(ctx, bob, aid, 1_000_000))

	// Cannot settle while bidding is open.
	require.ErrorIs(t, e.SettleAuction(ctx, carol, aid), domain.ErrAuctionActive)

	advance(t, e, 100)
	require.NoError(t, e.SettleAuction(ctx, carol, aid))

	owner, err := e.GetOwner(id)
	require.NoError(t, err)
	assert.Equal(t, bob, owner)

	tok, err := e.GetToken(id)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenStateFree, tok.State)

	// Standalone token: 2.5% fee, no royalty.
	assert.Equal(t, domain.Amount(975_000), e.GetBalance(alice))
	assert.Zero(t, e.GetBalance(bob))

	_, err = e.GetAuction(aid)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, e.CheckEscrowInvariant())
}

func TestSettleAuctionWithRoyalty(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	collID := newTestCollection(t, e, carol)
	id := airdropToken(t, e, collID, alice)

	fund(t, e, alice, DefaultActionFee)
	aid, err := e.CreateAuction(ctx, alice, id, 10_000_000, 10)
	require.NoError(t, err)

	fund(t, e, bob, 10_000_000)
	require.NoError(t, e.PlaceBid(ctx, bob, aid, 10_000_000))
	advance(t, e, 10)

	feesBefore := e.FeesAccrued()
	require.NoError(t, e.SettleAuction(ctx, bob, aid))

	assert.Equal(t, domain.Amount(8_750_000), e.GetBalance(alice))
	assert.Equal(t, domain.Amount(1_000_000), e.GetBalance(carol))
	assert.Equal(t, feesBefore+250_000, e.FeesAccrued())
}

func TestSettleAuctionUnsold(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	aid, id := newTestAuction(t, e)

	advance(t, e, 100)
	require.Len(t, e.EndedAuctions(), 1)

	require.NoError(t, e.SettleAuction(ctx, bob, aid))

	// Ownership unchanged, token released.
	owner, err := e.GetOwner(id)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)

	tok, err := e.GetToken(id)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenStateFree, tok.State)

	_, err = e.GetAuction(aid)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSettleAuctionFrozenToken(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	aid, id := newTestAuction(t, e)

	fund(t, e, bob, 1_000_000)
	require.NoError(t, e.PlaceBid(ctx, bob, aid, 1_000_000))
	require.NoError(t, e.Freeze(ctx, alice, id))
	advance(t, e, 100)

	// A frozen token with a winning bid cannot settle until thawed.
	require.ErrorIs(t, e.SettleAuction(ctx, bob, aid), domain.ErrTokenFrozen)

	require.NoError(t, e.Unfreeze(ctx, testAdmin, id))
	require.NoError(t, e.SettleAuction(ctx, bob, aid))
}

func TestCancelAuction(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	aid, id := newTestAuction(t, e)

	require.ErrorIs(t, e.CancelAuction(ctx, bob, aid), domain.ErrSellerOnly)
	require.NoError(t, e.CancelAuction(ctx, alice, aid))

	tok, err := e.GetToken(id)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenStateFree, tok.State)

	_, err = e.GetAuction(aid)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelAuctionWithStandingBid(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	aid, _ := newTestAuction(t, e)

	fund(t, e, bob, 1_000_000)
	require.NoError(t, e.PlaceBid(ctx, bob, aid, 1_000_000))

	require.ErrorIs(t, e.CancelAuction(ctx, alice, aid), domain.ErrAuctionActive)
}
