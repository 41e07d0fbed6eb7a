package engine

import (
	"context"
	"fmt"

	"github.com/artfolio/chainmarket/internal/domain"
)

// royaltyFor resolves the royalty terms of a token: the collection's
// creator and royalty-bps, or zero for standalone tokens
func (e *Engine) royaltyFor(t *domain.Token) (uint16, domain.Principal) {
	if t.CollectionID == nil {
		return 0, ""
	}
	c, ok := e.collections[*t.CollectionID]
	if !ok {
		return 0, ""
	}
	return c.RoyaltyBps, c.Creator
}

const opListNFT = "list_nft"

type listNFTArgs struct {
	TokenID domain.TokenID `json:"token_id"`
	Price   domain.Amount  `json:"price"`
}

// ListNFT puts a token up for fixed-price sale. Callable by the owner or a
// can-list delegate; the seller of record is always the owner. The fixed
// action fee is charged atomically with listing.
func (e *Engine) ListNFT(ctx context.Context, caller domain.Principal, id domain.TokenID, price domain.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.marketPaused {
		return fmt.Errorf("marketplace paused: %w", domain.ErrNotAuthorized)
	}
	t, err := e.tokenByID(id)
	if err != nil {
		return err
	}
	if caller != t.Owner {
		d := e.delegateFor(t.Owner, caller)
		if d == nil || !d.Rights.Has(domain.DelegateCanList) {
			return fmt.Errorf("%s: %w", id, domain.ErrNotOwner)
		}
	}
	if t.Frozen {
		return fmt.Errorf("%s: %w", id, domain.ErrTokenFrozen)
	}
	if t.State != domain.TokenStateFree {
		return fmt.Errorf("%s is %s: %w", id, t.State, domain.ErrTokenEncumbered)
	}
	if price == 0 {
		return fmt.Errorf("listing price: %w", domain.ErrInvalidPrice)
	}
	if !e.accounts.canSpend(caller, e.cfg.ActionFee) {
		return fmt.Errorf("action fee: %w", domain.ErrInsufficientFunds)
	}

	if err := e.journalAppend(ctx, caller, opListNFT, listNFTArgs{TokenID: id, Price: price}); err != nil {
		return err
	}

	e.chargeFee(caller)
	e.listings[id] = &domain.Listing{
		TokenID: id,
		Seller:  t.Owner,
		Price:   price,
	}
	t.State = domain.TokenStateListed
	e.emit(domain.MarketEvent{
		Type:        domain.EventListingCreated,
		BlockHeight: e.height,
		Actor:       t.Owner,
		TokenID:     &id,
		Amount:      price,
	})
	return nil
}

const opCancelListing = "cancel_listing"

// CancelListing withdraws a listing. Seller-only.
func (e *Engine) CancelListing(ctx context.Context, caller domain.Principal, id domain.TokenID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.listings[id]
	if !ok {
		return fmt.Errorf("listing for %s: %w", id, domain.ErrNotFound)
	}
	if l.Seller != caller {
		return fmt.Errorf("listing for %s: %w", id, domain.ErrSellerOnly)
	}

	if err := e.journalAppend(ctx, caller, opCancelListing, tokenArgs{TokenID: id}); err != nil {
		return err
	}

	delete(e.listings, id)
	if t, ok := e.tokens[id]; ok {
		t.State = domain.TokenStateFree
	}
	e.emit(domain.MarketEvent{
		Type:        domain.EventListingCancelled,
		BlockHeight: e.height,
		Actor:       caller,
		TokenID:     &id,
	})
	return nil
}

const opUpdateListingPrice = "update_listing_price"

// UpdateListingPrice changes the asking price of a listing. Seller-only;
// the new price must be positive.
func (e *Engine) UpdateListingPrice(ctx context.Context, caller domain.Principal, id domain.TokenID, price domain.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.listings[id]
	if !ok {
		return fmt.Errorf("listing for %s: %w", id, domain.ErrNotFound)
	}
	if l.Seller != caller {
		return fmt.Errorf("listing for %s: %w", id, domain.ErrSellerOnly)
	}
	if price == 0 {
		return fmt.Errorf("listing price: %w", domain.ErrInvalidPrice)
	}

	if err := e.journalAppend(ctx, caller, opUpdateListingPrice, listNFTArgs{TokenID: id, Price: price}); err != nil {
		return err
	}

	l.Price = price
	e.emit(domain.MarketEvent{
		Type:        domain.EventListingUpdated,
		BlockHeight: e.height,
		Actor:       caller,
		TokenID:     &id,
		Amount:      price,
	})
	return nil
}

const opBuyNFT = "buy_nft"

// BuyNFT executes a fixed-price sale. The price splits exactly into
// seller, royalty, and marketplace-fee legs; all three transfers and the
// ownership change form one atomic unit. The listing is deleted on
// success.
func (e *Engine) BuyNFT(ctx context.Context, caller domain.Principal, id domain.TokenID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.listings[id]
	if !ok {
		return fmt.Errorf("listing for %s: %w", id, domain.ErrNotFound)
	}
	t, err := e.tokenByID(id)
	if err != nil {
		return err
	}
	if caller == l.Seller {
		return fmt.Errorf("buying own listing: %w", domain.ErrInvalidArgument)
	}
	if !caller.Valid() {
		return fmt.Errorf("caller: %w", domain.ErrInvalidArgument)
	}
	if t.Frozen {
		return fmt.Errorf("%s: %w", id, domain.ErrTokenFrozen)
	}
	if !e.accounts.canSpend(caller, l.Price) {
		return fmt.Errorf("price %d: %w", l.Price, domain.ErrInsufficientFunds)
	}

	if err := e.journalAppend(ctx, caller, opBuyNFT, tokenArgs{TokenID: id}); err != nil {
		return err
	}

	royaltyBps, creator := e.royaltyFor(t)
	split := domain.SplitSale(l.Price, royaltyBps, e.cfg.MarketFeeBps)
	e.feesAccrued += e.accounts.transferSplit(caller, split, l.Seller, creator)

	seller := l.Seller
	delete(e.listings, id)
	t.Owner = caller
	t.Approved = nil
	t.State = domain.TokenStateFree

	e.emit(domain.MarketEvent{
		Type:         domain.EventSaleCompleted,
		BlockHeight:  e.height,
		Actor:        caller,
		Counterparty: &seller,
		TokenID:      &id,
		Amount:       l.Price,
	})
	return nil
}
