package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artfolio/chainmarket/internal/domain"
)

func TestMakeOfferEscrowsFunds(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)

	fund(t, e, bob, 500_000)
	require.NoError(t, e.MakeOffer(ctx, bob, id, 300_000, 100))

	// The escrowed amount leaves the available balance.
	assert.Equal(t, domain.Amount(200_000), e.GetBalance(bob))
	require.NoError(t, e.CheckEscrowInvariant())

	o, err := e.GetOffer(id, bob)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(300_000), o.Amount)
	assert.Equal(t, domain.BlockHeight(100), o.ExpiryBlock)
}

func TestMakeOfferValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)
	fund(t, e, bob, 100_000)

	require.ErrorIs(t, e.MakeOffer(ctx, bob, 99, 50_000, 10), domain.ErrNotFound)
	require.ErrorIs(t, e.MakeOffer(ctx, alice, id, 50_000, 10), domain.ErrInvalidArgument)
	require.ErrorIs(t, e.MakeOffer(ctx, bob, id, 0, 10), domain.ErrInvalidPrice)
	require.ErrorIs(t, e.MakeOffer(ctx, bob, id, 50_000, 0), domain.ErrInvalidArgument)
	require.ErrorIs(t, e.MakeOffer(ctx, bob, id, 200_000, 10), domain.ErrInsufficientFunds)
}

func TestMakeOfferReplacesPrior(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)

	// 500k covers a 400k offer only because the prior 300k escrow is
	// refunded as part of the replacement.
	fund(t, e, bob, 500_000)
	require.NoError(t, e.MakeOffer(ctx, bob, id, 300_000, 100))
	require.NoError(t, e.MakeOffer(ctx, bob, id, 400_000, 50))

	assert.Equal(t, domain.Amount(100_000), e.GetBalance(bob))
	require.NoError(t, e.CheckEscrowInvariant())

	o, err := e.GetOffer(id, bob)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(400_000), o.Amount)
	assert.Equal(t, domain.BlockHeight(50), o.ExpiryBlock)

	// Only one offer per offerer per token.
	assert.Len(t, e.ListOffers(id), 1)
}

func TestCancelOfferRefunds(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)

	fund(t, e, bob, 300_000)
	require.NoError(t, e.MakeOffer(ctx, bob, id, 300_000, 100))

	require.ErrorIs(t, e.CancelOffer(ctx, carol, id), domain.ErrNotFound)
	require.NoError(t, e.CancelOffer(ctx, bob, id))

	assert.Equal(t, domain.Amount(300_000), e.GetBalance(bob))
	_, err := e.GetOffer(id, bob)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, e.CheckEscrowInvariant())
}

func TestAcceptOffer(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	collID := newTestCollection(t, e, carol)
	id := airdropToken(t, e, collID, alice)

	fund(t, e, bob, 10_000_000)
	require.NoError(t, e.MakeOffer(ctx, bob, id, 10_000_000, 100))

	feesBefore := e.FeesAccrued()
	require.NoError(t, e.AcceptOffer(ctx, alice, id, bob))

	// Escrow settles with the standard royalty/fee split.
	assert.Equal(t, domain.Amount(8_750_000), e.GetBalance(alice))
	assert.Equal(t, domain.Amount(1_000_000), e.GetBalance(carol))
	assert.Zero(t, e.GetBalance(bob))
	assert.Equal(t, feesBefore+250_000, e.FeesAccrued())

	owner, err := e.GetOwner(id)
	require.NoError(t, err)
	assert.Equal(t, bob, owner)

	_, err = e.GetOffer(id, bob)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, e.CheckEscrowInvariant())
}

func TestAcceptOfferValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)

	fund(t, e, bob, 300_000)
	require.NoError(t, e.MakeOffer(ctx, bob, id, 300_000, 10))

	require.ErrorIs(t, e.AcceptOffer(ctx, carol, id, bob), domain.ErrNotOwner)
	require.ErrorIs(t, e.AcceptOffer(ctx, alice, id, carol), domain.ErrNotFound)

	// An expired offer cannot be accepted.
	advance(t, e, 10)
	require.ErrorIs(t, e.AcceptOffer(ctx, alice, id, bob), domain.ErrNotFound)
}

func TestAcceptOfferOnEncumberedToken(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)

	fund(t, e, bob, 300_000)
	require.NoError(t, e.MakeOffer(ctx, bob, id, 300_000, 100))

	fund(t, e, alice, DefaultActionFee)
	require.NoError(t, e.ListNFT(ctx, alice, id, 1_000_000))
	require.ErrorIs(t, e.AcceptOffer(ctx, alice, id, bob), domain.ErrTokenEncumbered)

	require.NoError(t, e.CancelListing(ctx, alice, id))
	require.NoError(t, e.Freeze(ctx, alice, id))
	require.ErrorIs(t, e.AcceptOffer(ctx, alice, id, bob), domain.ErrTokenFrozen)
}

func TestExpireOffer(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)

	fund(t, e, bob, 300_000)
	require.NoError(t, e.MakeOffer(ctx, bob, id, 300_000, 10))

	// Not expired yet: nobody can reclaim it.
	require.ErrorIs(t, e.ExpireOffer(ctx, carol, id, bob), domain.ErrNotAuthorized)
	assert.Empty(t, e.ExpiredOffers())

	advance(t, e, 10)
	expired := e.ExpiredOffers()
	require.Len(t, expired, 1)
	assert.Equal(t, bob, expired[0].Offerer)

	// Any caller may expire; the refund goes to the offerer.
	require.NoError(t, e.ExpireOffer(ctx, carol, id, bob))
	assert.Equal(t, domain.Amount(300_000), e.GetBalance(bob))

	require.ErrorIs(t, e.ExpireOffer(ctx, carol, id, bob), domain.ErrNotFound)
	require.NoError(t, e.CheckEscrowInvariant())
}

func TestOffersSurviveOwnershipChange(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := mintTestToken(t, e, alice)

	fund(t, e, bob, 300_000)
	require.NoError(t, e.MakeOffer(ctx, bob, id, 300_000, 100))

	require.NoError(t, e.Transfer(ctx, alice, id, alice, carol))

	// The new owner can accept the standing offer.
	require.NoError(t, e.AcceptOffer(ctx, carol, id, bob))
	assert.Equal(t, domain.Amount(292_500), e.GetBalance(carol))
}
