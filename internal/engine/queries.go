package engine

import (
	"fmt"

	"github.com/artfolio/chainmarket/internal/domain"
)

// Read-only queries. All return copies; none touch engine state.

// GetToken returns a snapshot of a token
func (e *Engine) GetToken(id domain.TokenID) (*domain.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tokenByID(id)
	if err != nil {
		return nil, err
	}
	cp := *t
	if t.Approved != nil {
		a := *t.Approved
		cp.Approved = &a
	}
	if t.CollectionID != nil {
		c := *t.CollectionID
		cp.CollectionID = &c
	}
	return &cp, nil
}

// GetOwner returns the current owner of a token
func (e *Engine) GetOwner(id domain.TokenID) (domain.Principal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tokenByID(id)
	if err != nil {
		return "", err
	}
	return t.Owner, nil
}

// LastTokenID returns the highest token id minted so far
func (e *Engine) LastTokenID() domain.TokenID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastTokenID
}

// GetCollection returns a snapshot of a collection, including its phases
func (e *Engine) GetCollection(id domain.CollectionID) (*domain.Collection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.collectionByID(id)
	if err != nil {
		return nil, err
	}
	cp := *c
	cp.Phases = make(map[domain.PhaseKind]*domain.MintPhase, len(c.Phases))
	for k, p := range c.Phases {
		pc := *p
		cp.Phases[k] = &pc
	}
	if c.Socials != nil {
		s := *c.Socials
		cp.Socials = &s
	}
	return &cp, nil
}

// AllowlistSpots returns a wallet's remaining allowlist quota for a collection
func (e *Engine) AllowlistSpots(id domain.CollectionID, wallet domain.Principal) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allowlist[allowlistKey{Collection: id, Wallet: wallet}]
}

// GetListing returns the active listing for a token, if any
func (e *Engine) GetListing(id domain.TokenID) (*domain.Listing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing for %s: %w", id, domain.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

// GetOffer returns the outstanding offer on a token from an offerer, if any
func (e *Engine) GetOffer(id domain.TokenID, offerer domain.Principal) (*domain.Offer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.offers[offerKey{Token: id, Offerer: offerer}]
	if !ok {
		return nil, fmt.Errorf("offer on %s by %s: %w", id, offerer, domain.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

// ListOffers returns all outstanding offers on a token
func (e *Engine) ListOffers(id domain.TokenID) []domain.Offer {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.Offer
	for key, o := range e.offers {
		if key.Token == id {
			out = append(out, *o)
		}
	}
	return out
}

// ExpiredOffers returns every offer whose expiry block has passed.
// Used by the sweeper to reclaim abandoned escrow.
func (e *Engine) ExpiredOffers() []domain.Offer {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.Offer
	for _, o := range e.offers {
		if o.Expired(e.height) {
			out = append(out, *o)
		}
	}
	return out
}

// GetAuction returns a snapshot of an auction
func (e *Engine) GetAuction(id domain.AuctionID) (*domain.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.auctionByID(id)
	if err != nil {
		return nil, err
	}
	cp := *a
	if a.HighestBidder != nil {
		b := *a.HighestBidder
		cp.HighestBidder = &b
	}
	return &cp, nil
}

// EndedAuctions returns every auction whose end block has passed and is
// awaiting settlement
func (e *Engine) EndedAuctions() []domain.Auction {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.Auction
	for _, a := range e.auctions {
		if e.height >= a.EndBlock {
			cp := *a
			if a.HighestBidder != nil {
				b := *a.HighestBidder
				cp.HighestBidder = &b
			}
			out = append(out, cp)
		}
	}
	return out
}

// GetBundle returns a snapshot of a bundle
func (e *Engine) GetBundle(id domain.BundleID) (*domain.Bundle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.bundles[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	cp := *b
	cp.TokenIDs = make([]domain.TokenID, len(b.TokenIDs))
	copy(cp.TokenIDs, b.TokenIDs)
	return &cp, nil
}

// GetDelegate returns the grant owner→delegate, if one exists
func (e *Engine) GetDelegate(owner, delegate domain.Principal) (*domain.Delegate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.delegates[delegateKey{Owner: owner, Delegate: delegate}]
	if !ok {
		return nil, fmt.Errorf("delegate grant: %w", domain.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

// GetBalance returns a principal's available (non-escrowed) balance
func (e *Engine) GetBalance(p domain.Principal) domain.Amount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accounts.balance(p)
}

// MintPaused reports the global minting kill switch
func (e *Engine) MintPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mintPaused
}

// MarketplacePaused reports the global marketplace kill switch
func (e *Engine) MarketplacePaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.marketPaused
}

// CheckEscrowInvariant verifies that escrow lines sum to total custody.
// Exposed for tests and health checks.
func (e *Engine) CheckEscrowInvariant() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accounts.checkInvariant()
}
