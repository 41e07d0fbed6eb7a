package engine

import (
	"fmt"

	"github.com/artfolio/chainmarket/internal/domain"
)

// escrowKind distinguishes the two escrow paths. Each escrow record is a
// separate ledger line; funds reserved for one record can never be spent
// by another.
type escrowKind string

const (
	escrowOffer escrowKind = "offer"
	escrowBid   escrowKind = "bid"
)

// escrowRef identifies a single reserved-balance line
type escrowRef struct {
	Kind    escrowKind
	Token   domain.TokenID
	Auction domain.AuctionID
	Party   domain.Principal
}

func offerEscrow(token domain.TokenID, offerer domain.Principal) escrowRef {
	return escrowRef{Kind: escrowOffer, Token: token, Party: offerer}
}

func bidEscrow(auction domain.AuctionID, bidder domain.Principal) escrowRef {
	return escrowRef{Kind: escrowBid, Auction: auction, Party: bidder}
}

// accounts tracks available balances plus per-record escrow lines held in
// engine custody. Invariant: the sum of all escrow lines equals custody;
// escrowed value moves only along its record's accept/cancel/settle path.
type accounts struct {
	balances map[domain.Principal]domain.Amount
	escrows  map[escrowRef]domain.Amount
	custody  domain.Amount
}

func newAccounts() *accounts {
	return &accounts{
		balances: make(map[domain.Principal]domain.Amount),
		escrows:  make(map[escrowRef]domain.Amount),
	}
}

func (a *accounts) balance(p domain.Principal) domain.Amount {
	return a.balances[p]
}

func (a *accounts) credit(p domain.Principal, amount domain.Amount) {
	a.balances[p] += amount
}

// debit removes amount from p's available balance. Callers must have
// validated sufficiency; a shortfall here is a broken invariant.
func (a *accounts) debit(p domain.Principal, amount domain.Amount) {
	bal := a.balances[p]
	if bal < amount {
		panic(fmt.Sprintf("accounts: debit %d exceeds balance %d of %s", amount, bal, p))
	}
	if bal == amount {
		delete(a.balances, p)
	} else {
		a.balances[p] = bal - amount
	}
}

// canSpend reports whether p's available balance covers amount
func (a *accounts) canSpend(p domain.Principal, amount domain.Amount) bool {
	return a.balances[p] >= amount
}

// reserve moves amount from p's available balance into the escrow line ref.
// The line must not already exist.
func (a *accounts) reserve(ref escrowRef, p domain.Principal, amount domain.Amount) {
	if _, ok := a.escrows[ref]; ok {
		panic(fmt.Sprintf("accounts: escrow line already exists: %+v", ref))
	}
	a.debit(p, amount)
	a.escrows[ref] = amount
	a.custody += amount
}

// escrowed returns the amount held for ref, zero if no line exists
func (a *accounts) escrowed(ref escrowRef) domain.Amount {
	return a.escrows[ref]
}

// release returns the full escrow line ref to recipient's available balance
func (a *accounts) release(ref escrowRef, recipient domain.Principal) domain.Amount {
	amount, ok := a.escrows[ref]
	if !ok {
		panic(fmt.Sprintf("accounts: release of missing escrow line: %+v", ref))
	}
	delete(a.escrows, ref)
	a.custody -= amount
	a.balances[recipient] += amount
	return amount
}

// settle distributes the escrow line ref as a sale: seller and creator are
// credited their legs and the fee leg is returned for treasury accrual.
// The split must consume the line exactly.
func (a *accounts) settle(ref escrowRef, split domain.SaleSplit, seller, creator domain.Principal) domain.Amount {
	amount, ok := a.escrows[ref]
	if !ok {
		panic(fmt.Sprintf("accounts: settle of missing escrow line: %+v", ref))
	}
	if split.Total() != amount {
		panic(fmt.Sprintf("accounts: split %d does not conserve escrow %d", split.Total(), amount))
	}
	delete(a.escrows, ref)
	a.custody -= amount
	a.balances[seller] += split.Seller
	if split.Royalty > 0 {
		a.balances[creator] += split.Royalty
	}
	return split.Fee
}

// transferSplit moves a sale price directly from the buyer's available
// balance: seller and creator are credited their legs and the fee leg is
// returned for treasury accrual. Used by sales that do not pass through
// escrow (buy-nft, buy-bundle).
func (a *accounts) transferSplit(buyer domain.Principal, split domain.SaleSplit, seller, creator domain.Principal) domain.Amount {
	a.debit(buyer, split.Total())
	a.balances[seller] += split.Seller
	if split.Royalty > 0 {
		a.balances[creator] += split.Royalty
	}
	return split.Fee
}

// checkInvariant verifies that escrow lines sum to total custody
func (a *accounts) checkInvariant() error {
	var sum domain.Amount
	for _, amt := range a.escrows {
		sum += amt
	}
	if sum != a.custody {
		return fmt.Errorf("escrow lines sum %d != custody %d", sum, a.custody)
	}
	return nil
}
