package engine

import (
	"context"
	"fmt"

	"github.com/artfolio/chainmarket/internal/domain"
)

const opCreateBundle = "create_bundle"

type createBundleArgs struct {
	TokenIDs []domain.TokenID `json:"token_ids"`
	Price    domain.Amount    `json:"price"`
}

// CreateBundle groups 1-10 caller-owned tokens for sale as one atomic
// unit. Every token must be unfrozen and free of listings, auctions, and
// other bundles.
func (e *Engine) CreateBundle(ctx context.Context, caller domain.Principal, tokenIDs []domain.TokenID, price domain.Amount) (domain.BundleID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.marketPaused {
		return 0, fmt.Errorf("marketplace paused: %w", domain.ErrNotAuthorized)
	}
	if len(tokenIDs) == 0 {
		return 0, fmt.Errorf("no tokens: %w", domain.ErrBundleEmpty)
	}
	if len(tokenIDs) > domain.MaxBundleSize {
		return 0, fmt.Errorf("%d tokens: %w", len(tokenIDs), domain.ErrBundleTooLarge)
	}
	if price == 0 {
		return 0, fmt.Errorf("bundle price: %w", domain.ErrInvalidPrice)
	}

	seen := make(map[domain.TokenID]bool, len(tokenIDs))
	for _, id := range tokenIDs {
		if seen[id] {
			return 0, fmt.Errorf("duplicate %s: %w", id, domain.ErrInvalidArgument)
		}
		seen[id] = true

		t, err := e.tokenByID(id)
		if err != nil {
			return 0, err
		}
		if t.Owner != caller {
			return 0, fmt.Errorf("%s: %w", id, domain.ErrNotOwner)
		}
		if t.Frozen {
			return 0, fmt.Errorf("%s: %w", id, domain.ErrTokenFrozen)
		}
		if t.State != domain.TokenStateFree {
			return 0, fmt.Errorf("%s is %s: %w", id, t.State, domain.ErrTokenEncumbered)
		}
	}

	if err := e.journalAppend(ctx, caller, opCreateBundle, createBundleArgs{TokenIDs: tokenIDs, Price: price}); err != nil {
		return 0, err
	}

	e.lastBundleID++
	bid := e.lastBundleID
	ids := make([]domain.TokenID, len(tokenIDs))
	copy(ids, tokenIDs)
	e.bundles[bid] = &domain.Bundle{
		ID:       bid,
		TokenIDs: ids,
		Seller:   caller,
		Price:    price,
	}
	for _, id := range ids {
		e.tokens[id].State = domain.TokenStateBundled
	}

	e.emit(domain.MarketEvent{
		Type:        domain.EventBundleCreated,
		BlockHeight: e.height,
		Actor:       caller,
		BundleID:    &bid,
		Amount:      price,
	})
	return bid, nil
}

const opBuyBundle = "buy_bundle"

type bundleArgs struct {
	BundleID domain.BundleID `json:"bundle_id"`
}

// BuyBundle transfers the price from the buyer and every contained token
// to the buyer as one atomic group. The marketplace fee applies; royalties
// do not, since a bundle may span collections.
func (e *Engine) BuyBundle(ctx context.Context, caller domain.Principal, id domain.BundleID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.bundles[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	if caller == b.Seller {
		return fmt.Errorf("buying own bundle: %w", domain.ErrInvalidArgument)
	}
	if !caller.Valid() {
		return fmt.Errorf("caller: %w", domain.ErrInvalidArgument)
	}
	for _, tid := range b.TokenIDs {
		t, err := e.tokenByID(tid)
		if err != nil {
			return err
		}
		if t.Frozen {
			return fmt.Errorf("%s: %w", tid, domain.ErrTokenFrozen)
		}
	}
	if !e.accounts.canSpend(caller, b.Price) {
		return fmt.Errorf("bundle price %d: %w", b.Price, domain.ErrInsufficientFunds)
	}

	if err := e.journalAppend(ctx, caller, opBuyBundle, bundleArgs{BundleID: id}); err != nil {
		return err
	}

	split := domain.SplitSale(b.Price, 0, e.cfg.MarketFeeBps)
	e.feesAccrued += e.accounts.transferSplit(caller, split, b.Seller, "")

	seller := b.Seller
	for _, tid := range b.TokenIDs {
		t := e.tokens[tid]
		t.Owner = caller
		t.Approved = nil
		t.State = domain.TokenStateFree
	}
	delete(e.bundles, id)

	e.emit(domain.MarketEvent{
		Type:         domain.EventBundleSold,
		BlockHeight:  e.height,
		Actor:        caller,
		Counterparty: &seller,
		BundleID:     &id,
		Amount:       b.Price,
	})
	return nil
}

const opCancelBundle = "cancel_bundle"

// CancelBundle releases a bundle without transferring anything.
// Seller-only.
func (e *Engine) CancelBundle(ctx context.Context, caller domain.Principal, id domain.BundleID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.bundles[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	if b.Seller != caller {
		return fmt.Errorf("%s: %w", id, domain.ErrSellerOnly)
	}

	if err := e.journalAppend(ctx, caller, opCancelBundle, bundleArgs{BundleID: id}); err != nil {
		return err
	}

	for _, tid := range b.TokenIDs {
		if t, ok := e.tokens[tid]; ok {
			t.State = domain.TokenStateFree
		}
	}
	delete(e.bundles, id)

	e.emit(domain.MarketEvent{
		Type:        domain.EventBundleCancelled,
		BlockHeight: e.height,
		Actor:       caller,
		BundleID:    &id,
	})
	return nil
}
