package engine

import (
	"context"
	"fmt"

	"github.com/artfolio/chainmarket/internal/domain"
)

const opMakeOffer = "make_offer"

type makeOfferArgs struct {
	TokenID      domain.TokenID     `json:"token_id"`
	Amount       domain.Amount      `json:"amount"`
	ExpiryBlocks domain.BlockHeight `json:"expiry_blocks"`
}

// MakeOffer escrows the caller's funds against a token until the owner
// accepts, the offerer cancels, or the offer expires. A new offer from the
// same offerer on the same token overwrites the prior one, refunding its
// escrow first.
func (e *Engine) MakeOffer(ctx context.Context, caller domain.Principal, id domain.TokenID, amount domain.Amount, expiryBlocks domain.BlockHeight) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.marketPaused {
		return fmt.Errorf("marketplace paused: %w", domain.ErrNotAuthorized)
	}
	t, err := e.tokenByID(id)
	if err != nil {
		return err
	}
	if caller == t.Owner {
		return fmt.Errorf("offer on own token: %w", domain.ErrInvalidArgument)
	}
	if !caller.Valid() {
		return fmt.Errorf("caller: %w", domain.ErrInvalidArgument)
	}
	if amount == 0 {
		return fmt.Errorf("offer amount: %w", domain.ErrInvalidPrice)
	}
	if expiryBlocks == 0 {
		return fmt.Errorf("offer expiry: %w", domain.ErrInvalidArgument)
	}

	// A replaced offer's escrow is refunded first, so only the difference
	// beyond the prior escrow needs covering
	ref := offerEscrow(id, caller)
	prior := e.accounts.escrowed(ref)
	if e.accounts.balance(caller)+prior < amount {
		return fmt.Errorf("offer amount %d: %w", amount, domain.ErrInsufficientFunds)
	}

	if err := e.journalAppend(ctx, caller, opMakeOffer, makeOfferArgs{TokenID: id, Amount: amount, ExpiryBlocks: expiryBlocks}); err != nil {
		return err
	}

	if prior > 0 {
		e.accounts.release(ref, caller)
	}
	e.accounts.reserve(ref, caller, amount)
	e.offers[offerKey{Token: id, Offerer: caller}] = &domain.Offer{
		TokenID:     id,
		Offerer:     caller,
		Amount:      amount,
		ExpiryBlock: e.height + expiryBlocks,
	}

	e.emit(domain.MarketEvent{
		Type:        domain.EventOfferMade,
		BlockHeight: e.height,
		Actor:       caller,
		TokenID:     &id,
		Amount:      amount,
	})
	return nil
}

const opCancelOffer = "cancel_offer"

// CancelOffer withdraws the caller's outstanding offer and refunds its
// escrow in full. Offerer-only.
func (e *Engine) CancelOffer(ctx context.Context, caller domain.Principal, id domain.TokenID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := offerKey{Token: id, Offerer: caller}
	if _, ok := e.offers[key]; !ok {
		return fmt.Errorf("offer on %s by %s: %w", id, caller, domain.ErrNotFound)
	}

	if err := e.journalAppend(ctx, caller, opCancelOffer, tokenArgs{TokenID: id}); err != nil {
		return err
	}

	e.accounts.release(offerEscrow(id, caller), caller)
	delete(e.offers, key)

	e.emit(domain.MarketEvent{
		Type:        domain.EventOfferCancelled,
		BlockHeight: e.height,
		Actor:       caller,
		TokenID:     &id,
	})
	return nil
}

const opAcceptOffer = "accept_offer"

type acceptOfferArgs struct {
	TokenID domain.TokenID   `json:"token_id"`
	Offerer domain.Principal `json:"offerer"`
}

// AcceptOffer sells the token to the offerer at their escrowed amount,
// applying the same royalty/fee split as a fixed-price sale. Current
// owner only; the token must be free of listings, auctions, and bundles.
func (e *Engine) AcceptOffer(ctx context.Context, caller domain.Principal, id domain.TokenID, offerer domain.Principal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tokenByID(id)
	if err != nil {
		return err
	}
	if t.Owner != caller {
		return fmt.Errorf("%s: %w", id, domain.ErrNotOwner)
	}
	o, ok := e.offers[offerKey{Token: id, Offerer: offerer}]
	if !ok {
		return fmt.Errorf("offer on %s by %s: %w", id, offerer, domain.ErrNotFound)
	}
	if o.Expired(e.height) {
		return fmt.Errorf("offer on %s by %s expired at block %d: %w", id, offerer, o.ExpiryBlock, domain.ErrNotFound)
	}
	if t.Frozen {
		return fmt.Errorf("%s: %w", id, domain.ErrTokenFrozen)
	}
	if t.State != domain.TokenStateFree {
		return fmt.Errorf("%s is %s: %w", id, t.State, domain.ErrTokenEncumbered)
	}

	if err := e.journalAppend(ctx, caller, opAcceptOffer, acceptOfferArgs{TokenID: id, Offerer: offerer}); err != nil {
		return err
	}

	royaltyBps, creator := e.royaltyFor(t)
	split := domain.SplitSale(o.Amount, royaltyBps, e.cfg.MarketFeeBps)
	e.feesAccrued += e.accounts.settle(offerEscrow(id, offerer), split, caller, creator)

	delete(e.offers, offerKey{Token: id, Offerer: offerer})
	t.Owner = offerer
	t.Approved = nil

	e.emit(domain.MarketEvent{
		Type:         domain.EventOfferAccepted,
		BlockHeight:  e.height,
		Actor:        caller,
		Counterparty: &offerer,
		TokenID:      &id,
		Amount:       o.Amount,
	})
	return nil
}

const opExpireOffer = "expire_offer"

type expireOfferArgs struct {
	TokenID domain.TokenID   `json:"token_id"`
	Offerer domain.Principal `json:"offerer"`
}

// ExpireOffer reclaims the escrow of an offer whose expiry block has
// passed, refunding the offerer in full. Callable by anyone once expired.
func (e *Engine) ExpireOffer(ctx context.Context, caller domain.Principal, id domain.TokenID, offerer domain.Principal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := offerKey{Token: id, Offerer: offerer}
	o, ok := e.offers[key]
	if !ok {
		return fmt.Errorf("offer on %s by %s: %w", id, offerer, domain.ErrNotFound)
	}
	if !o.Expired(e.height) {
		return fmt.Errorf("offer on %s by %s live until block %d: %w", id, offerer, o.ExpiryBlock, domain.ErrNotAuthorized)
	}

	if err := e.journalAppend(ctx, caller, opExpireOffer, expireOfferArgs{TokenID: id, Offerer: offerer}); err != nil {
		return err
	}

	e.accounts.release(offerEscrow(id, offerer), offerer)
	delete(e.offers, key)

	e.emit(domain.MarketEvent{
		Type:        domain.EventOfferCancelled,
		BlockHeight: e.height,
		Actor:       offerer,
		TokenID:     &id,
	})
	return nil
}
