package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artfolio/chainmarket/internal/domain"
)

// airdropToken gives owner a token from carol's test collection so sales
// carry the collection's 10% royalty.
func airdropToken(t *testing.T, e *Engine, id domain.CollectionID, owner domain.Principal) domain.TokenID {
	t.Helper()
	_, err := e.Airdrop(context.Background(), carol, id, []domain.Principal{owner})
	require.NoError(t, err)
	return e.LastTokenID()
}

func TestListNFT(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)
	fund(t, e, alice, DefaultActionFee)

	require.NoError(t, e.ListNFT(ctx, alice, id, 1_000_000))

	l, err := e.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, alice, l.Seller)
	assert.Equal(t, domain.Amount(1_000_000), l.Price)

	tok, err := e.GetToken(id)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenStateListed, tok.State)

	// Double-listing rejects: the token is already encumbered.
	fund(t, e, alice, DefaultActionFee)
	require.ErrorIs(t, e.ListNFT(ctx, alice, id, 2_000_000), domain.ErrTokenEncumbered)
}

func TestListNFTValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)
	fund(t, e, alice, DefaultActionFee)

	require.ErrorIs(t, e.ListNFT(ctx, alice, 99, 1_000), domain.ErrNotFound)
	require.ErrorIs(t, e.ListNFT(ctx, bob, id, 1_000), domain.ErrNotOwner)
	require.ErrorIs(t, e.ListNFT(ctx, alice, id, 0), domain.ErrInvalidPrice)
	require.ErrorIs(t, e.ListNFT(ctx, bob, mintTestToken(t, e, bob), 1_000), domain.ErrInsufficientFunds)

	require.NoError(t, e.Freeze(ctx, alice, id))
	require.ErrorIs(t, e.ListNFT(ctx, alice, id, 1_000), domain.ErrTokenFrozen)
}

func TestListNFTByDelegate(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)

	require.NoError(t, e.AddDelegate(ctx, alice, bob, domain.DelegateCanList, 100))
	fund(t, e, bob, DefaultActionFee)
	require.NoError(t, e.ListNFT(ctx, bob, id, 1_000_000))

	// The seller of record is the owner, not the delegate.
	l, err := e.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, alice, l.Seller)
}

func TestCancelListing(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)
	fund(t, e, alice, DefaultActionFee)
	require.NoError(t, e.ListNFT(ctx, alice, id, 1_000_000))

	require.ErrorIs(t, e.CancelListing(ctx, bob, id), domain.ErrSellerOnly)
	require.NoError(t, e.CancelListing(ctx, alice, id))

	_, err := e.GetListing(id)
	require.ErrorIs(t, err, domain.ErrNotFound)

	tok, err := e.GetToken(id)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenStateFree, tok.State)

	require.ErrorIs(t, e.CancelListing(ctx, alice, id), domain.ErrNotFound)
}

func TestUpdateListingPrice(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)
	fund(t, e, alice, DefaultActionFee)
	require.NoError(t, e.ListNFT(ctx, alice, id, 1_000_000))

	require.ErrorIs(t, e.UpdateListingPrice(ctx, bob, id, 2_000_000), domain.ErrSellerOnly)
	require.ErrorIs(t, e.UpdateListingPrice(ctx, alice, id, 0), domain.ErrInvalidPrice)
	require.ErrorIs(t, e.UpdateListingPrice(ctx, alice, 99, 1), domain.ErrNotFound)

	require.NoError(t, e.UpdateListingPrice(ctx, alice, id, 2_000_000))
	l, err := e.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(2_000_000), l.Price)
}

func TestBuyNFTWithRoyalty(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	collID := newTestCollection(t, e, carol)
	id := airdropToken(t, e, collID, alice)

	fund(t, e, alice, DefaultActionFee)
	require.NoError(t, e.ListNFT(ctx, alice, id, 10_000_000))
	fund(t, e, bob, 10_000_000)

	feesBefore := e.FeesAccrued()
	require.NoError(t, e.BuyNFT(ctx, bob, id))

	// 10% royalty and 2.5% fee: seller 8.75M, creator 1M, treasury 250k.
	assert.Equal(t, domain.Amount(8_750_000), e.GetBalance(alice))
	assert.Equal(t, domain.Amount(1_000_000), e.GetBalance(carol))
	assert.Zero(t, e.GetBalance(bob))
	assert.Equal(t, feesBefore+250_000, e.FeesAccrued())

	tok, err := e.GetToken(id)
	require.NoError(t, err)
	assert.Equal(t, bob, tok.Owner)
	assert.Equal(t, domain.TokenStateFree, tok.State)

	_, err = e.GetListing(id)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, e.CheckEscrowInvariant())
}

func TestBuyNFTStandaloneHasNoRoyalty(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)

	fund(t, e, alice, DefaultActionFee)
	require.NoError(t, e.ListNFT(ctx, alice, id, 1_000_000))
	fund(t, e, bob, 1_000_000)
	require.NoError(t, e.BuyNFT(ctx, bob, id))

	assert.Equal(t, domain.Amount(975_000), e.GetBalance(alice))
	assert.Zero(t, e.GetBalance(bob))
}

func TestBuyNFTValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)
	fund(t, e, alice, DefaultActionFee)
	require.NoError(t, e.ListNFT(ctx, alice, id, 1_000_000))

	require.ErrorIs(t, e.BuyNFT(ctx, bob, 99), domain.ErrNotFound)
	require.ErrorIs(t, e.BuyNFT(ctx, alice, id), domain.ErrInvalidArgument)
	require.ErrorIs(t, e.BuyNFT(ctx, bob, id), domain.ErrInsufficientFunds)

	// A freeze between listing and purchase blocks the sale.
	require.NoError(t, e.Freeze(ctx, alice, id))
	fund(t, e, bob, 1_000_000)
	require.ErrorIs(t, e.BuyNFT(ctx, bob, id), domain.ErrTokenFrozen)
}

func TestBuyNFTClearsApproval(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)

	require.NoError(t, e.Approve(ctx, alice, id, carol))
	fund(t, e, alice, DefaultActionFee)
	require.NoError(t, e.ListNFT(ctx, alice, id, 1_000))
	fund(t, e, bob, 1_000)
	require.NoError(t, e.BuyNFT(ctx, bob, id))

	tok, err := e.GetToken(id)
	require.NoError(t, err)
	assert.Nil(t, tok.Approved)
}

func TestMarketplacePausedBlocksListing(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)
	fund(t, e, alice, DefaultActionFee)

	require.NoError(t, e.SetMarketplacePaused(ctx, testAdmin, true))
	require.ErrorIs(t, e.ListNFT(ctx, alice, id, 1_000), domain.ErrNotAuthorized)

	require.NoError(t, e.SetMarketplacePaused(ctx, testAdmin, false))
	require.NoError(t, e.ListNFT(ctx, alice, id, 1_000))
}
