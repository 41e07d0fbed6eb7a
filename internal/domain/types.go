package domain

import (
	"fmt"
	"strings"
)

// Principal is a ledger account address. Principals are opaque identifiers;
// the engine never interprets them beyond equality checks.
type Principal string

// Valid reports whether a principal is non-empty and printable ASCII
func (p Principal) Valid() bool {
	if len(p) == 0 || len(p) > 128 {
		return false
	}
	for _, r := range p {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}

// Amount is a value amount in micro-units (the smallest indivisible unit)
type Amount uint64

// BlockHeight is the logical clock of the engine. All deadlines (auction
// end, phase windows, delegate expiry) are expressed in block heights so
// settlement is deterministic and replayable.
type BlockHeight uint64

// TokenID identifies a token in the ownership ledger. IDs are assigned
// sequentially starting at 1.
type TokenID uint64

// CollectionID identifies a collection in the registry
type CollectionID uint64

// AuctionID identifies an auction
type AuctionID uint64

// BundleID identifies a bundle
type BundleID uint64

const (
	// MaxURILength bounds metadata URIs. URIs are stored as opaque strings
	// and never fetched or validated beyond this bound.
	MaxURILength = 256

	// MaxRoyaltyBps caps collection royalties at 25%
	MaxRoyaltyBps = 2500

	// BpsDenominator is the basis-point denominator for royalty and fee splits
	BpsDenominator = 10000

	// MinBidIncrementBps is the minimum increase over the current bid (5%)
	MinBidIncrementBps = 500

	// MaxBundleSize bounds the number of tokens in a bundle
	MaxBundleSize = 10
)

// ValidURI reports whether a metadata URI fits the ledger's bounds
func ValidURI(uri string) bool {
	if uri == "" || len(uri) > MaxURILength {
		return false
	}
	return !strings.ContainsRune(uri, 0)
}

// TokenState is the single-state-per-token guard: a token may be at most
// one of listed, under auction, or bundled at any time. Offers do not
// encumber the token since they escrow only the offerer's funds.
type TokenState string

const (
	TokenStateFree      TokenState = "free"
	TokenStateListed    TokenState = "listed"
	TokenStateAuctioned TokenState = "auctioned"
	TokenStateBundled   TokenState = "bundled"
)

// Token is a ledger entry for a single token
type Token struct {
	ID           TokenID
	Owner        Principal
	URI          string
	Frozen       bool
	Approved     *Principal
	CollectionID *CollectionID
	State        TokenState
}

// PhaseKind tags a mint phase as allowlist-gated or open to the public
type PhaseKind string

const (
	PhaseAllowlist PhaseKind = "allowlist"
	PhasePublic    PhaseKind = "public"
)

// Valid reports whether the phase kind is one of the known tags
func (k PhaseKind) Valid() bool {
	return k == PhaseAllowlist || k == PhasePublic
}

// MintPhase is a time-boxed minting configuration for a collection.
// The window is half-open: [StartBlock, EndBlock).
type MintPhase struct {
	Kind         PhaseKind
	StartBlock   BlockHeight
	EndBlock     BlockHeight
	Price        Amount
	MaxPerWallet uint64
}

// CollectionSocials holds the optional metadata of the "full" collection
// creation variant. Stored verbatim, never fetched.
type CollectionSocials struct {
	Description string
	BannerURI   string
	Website     string
	Twitter     string
	Discord     string
}

// Collection is a registry entry governing minting and royalties
type Collection struct {
	ID          CollectionID
	Creator     Principal
	Name        string
	MaxSupply   uint64
	MintedCount uint64
	RoyaltyBps  uint16
	MintPrice   Amount
	Locked      bool
	Socials     *CollectionSocials
	// ActivePhase is the tag of the live phase, or empty when none is active
	ActivePhase PhaseKind
	Phases      map[PhaseKind]*MintPhase
}

// Listing is a standing fixed-price sale offer from the current owner
type Listing struct {
	TokenID TokenID
	Seller  Principal
	Price   Amount
}

// Offer is a buyer-escrowed bid on a token, acceptable at seller discretion
type Offer struct {
	TokenID     TokenID
	Offerer     Principal
	Amount      Amount
	ExpiryBlock BlockHeight
}

// Expired reports whether the offer's escrow is reclaimable at the given height
func (o *Offer) Expired(height BlockHeight) bool {
	return height >= o.ExpiryBlock
}

// Auction is a time-boxed competitive sale with a reserve price
type Auction struct {
	ID            AuctionID
	TokenID       TokenID
	Seller        Principal
	ReservePrice  Amount
	CurrentBid    Amount
	HighestBidder *Principal
	EndBlock      BlockHeight
}

// Ended reports whether bidding has closed at the given height
func (a *Auction) Ended(height BlockHeight) bool {
	return height >= a.EndBlock
}

// Bundle is a group of 1-10 tokens sold as one atomic unit
type Bundle struct {
	ID       BundleID
	TokenIDs []TokenID
	Seller   Principal
	Price    Amount
}

// DelegateRights is the permitted-action bitset of a delegation grant
type DelegateRights uint8

const (
	DelegateCanMint DelegateRights = 1 << iota
	DelegateCanTransfer
	DelegateCanList
)

// Has reports whether the grant includes the given right
func (r DelegateRights) Has(right DelegateRights) bool {
	return r&right != 0
}

func (r DelegateRights) String() string {
	var parts []string
	if r.Has(DelegateCanMint) {
		parts = append(parts, "mint")
	}
	if r.Has(DelegateCanTransfer) {
		parts = append(parts, "transfer")
	}
	if r.Has(DelegateCanList) {
		parts = append(parts, "list")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Delegate is a time-bounded grant of a subset of an owner's rights
type Delegate struct {
	Owner       Principal
	Delegate    Principal
	Rights      DelegateRights
	ExpiryBlock BlockHeight
}

// Active reports whether the grant is usable at the given height
func (d *Delegate) Active(height BlockHeight) bool {
	return height < d.ExpiryBlock
}

// SaleSplit is the exact three-way division of a sale price. The three
// amounts always sum to the price; remainders from floor truncation
// accrue to the seller.
type SaleSplit struct {
	Seller  Amount
	Royalty Amount
	Fee     Amount
}

// Total returns the sum of the three legs
func (s SaleSplit) Total() Amount {
	return s.Seller + s.Royalty + s.Fee
}

// SplitSale computes the royalty/fee split for a sale price. Both cuts are
// floor-truncated; the seller receives the remainder so no value is created
// or destroyed.
func SplitSale(price Amount, royaltyBps, feeBps uint16) SaleSplit {
	royalty := Amount(uint64(price) * uint64(royaltyBps) / BpsDenominator)
	fee := Amount(uint64(price) * uint64(feeBps) / BpsDenominator)
	return SaleSplit{
		Seller:  price - royalty - fee,
		Royalty: royalty,
		Fee:     fee,
	}
}

// MinNextBid returns the smallest acceptable bid after current, applying
// the 5% minimum increment with ceiling rounding so any accepted bid
// strictly exceeds the increment threshold.
func MinNextBid(current Amount) Amount {
	inc := (uint64(current)*MinBidIncrementBps + BpsDenominator - 1) / BpsDenominator
	if inc == 0 {
		inc = 1
	}
	return current + Amount(inc)
}

func (t TokenID) String() string      { return fmt.Sprintf("token:%d", uint64(t)) }
func (c CollectionID) String() string { return fmt.Sprintf("collection:%d", uint64(c)) }
func (a AuctionID) String() string    { return fmt.Sprintf("auction:%d", uint64(a)) }
func (b BundleID) String() string     { return fmt.Sprintf("bundle:%d", uint64(b)) }
