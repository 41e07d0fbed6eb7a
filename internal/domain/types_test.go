package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalValid(t *testing.T) {
	tests := []struct {
		name      string
		principal Principal
		valid     bool
	}{
		{
			name:      "typical address",
			principal: "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7",
			valid:     true,
		},
		{
			name:      "single character",
			principal: "a",
			valid:     true,
		},
		{
			name:      "contract-style principal",
			principal: "SP000000000000000000002Q6VF78.pox",
			valid:     true,
		},
		{
			name:      "empty",
			principal: "",
			valid:     false,
		},
		{
			name:      "embedded space",
			principal: "SP2J6 ZY48",
			valid:     false,
		},
		{
			name:      "control character",
			principal: "SP2J6\x00ZY48",
			valid:     false,
		},
		{
			name:      "non-ascii",
			principal: "SP2J6ZY48é",
			valid:     false,
		},
		{
			name:      "max length",
			principal: Principal(strings.Repeat("a", 128)),
			valid:     true,
		},
		{
			name:      "over max length",
			principal: Principal(strings.Repeat("a", 129)),
			valid:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.principal.Valid())
		})
	}
}

func TestValidURI(t *testing.T) {
	tests := []struct {
		name  string
		uri   string
		valid bool
	}{
		{name: "ipfs uri", uri: "ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", valid: true},
		{name: "https uri", uri: "https://example.com/meta/1.json", valid: true},
		{name: "empty", uri: "", valid: false},
		{name: "max length", uri: strings.Repeat("a", MaxURILength), valid: true},
		{name: "over max length", uri: strings.Repeat("a", MaxURILength+1), valid: false},
		{name: "embedded nul", uri: "ipfs://abc\x00def", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidURI(tt.uri))
		})
	}
}

func TestSplitSale(t *testing.T) {
	tests := []struct {
		name       string
		price      Amount
		royaltyBps uint16
		feeBps     uint16
		want       SaleSplit
	}{
		{
			name:       "ten percent royalty with market fee",
			price:      10_000_000,
			royaltyBps: 1000,
			feeBps:     250,
			want:       SaleSplit{Seller: 8_750_000, Royalty: 1_000_000, Fee: 250_000},
		},
		{
			name:       "no royalty",
			price:      1_000_000,
			royaltyBps: 0,
			feeBps:     250,
			want:       SaleSplit{Seller: 975_000, Royalty: 0, Fee: 25_000},
		},
		{
			name:       "floor truncation favours seller",
			price:      999,
			royaltyBps: 1000,
			feeBps:     250,
			want:       SaleSplit{Seller: 876, Royalty: 99, Fee: 24},
		},
		{
			name:       "price too small for any cut",
			price:      3,
			royaltyBps: 1000,
			feeBps:     250,
			want:       SaleSplit{Seller: 3, Royalty: 0, Fee: 0},
		},
		{
			name:       "max royalty",
			price:      10_000,
			royaltyBps: MaxRoyaltyBps,
			feeBps:     250,
			want:       SaleSplit{Seller: 7_250, Royalty: 2_500, Fee: 250},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSale(tt.price, tt.royaltyBps, tt.feeBps)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.price, got.Total(), "split must conserve the price exactly")
		})
	}
}

func TestSplitSaleConservation(t *testing.T) {
	// Awkward prices where both cuts truncate.
	prices := []Amount{1, 7, 39, 101, 9_999, 123_457, 10_000_001}
	for _, price := range prices {
		for _, royalty := range []uint16{0, 1, 333, 1000, MaxRoyaltyBps} {
			split := SplitSale(price, royalty, 250)
			require.Equal(t, price, split.Total(), "price=%d royalty=%d", price, royalty)
		}
	}
}

func TestMinNextBid(t *testing.T) {
	tests := []struct {
		name    string
		current Amount
		want    Amount
	}{
		{name: "round increment", current: 1_000_000, want: 1_050_000},
		{name: "ceiling rounding", current: 999, want: 1_049},
		{name: "tiny bid still moves", current: 1, want: 2},
		{name: "ten units", current: 10, want: 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MinNextBid(tt.current))
		})
	}
}

func TestOfferExpired(t *testing.T) {
	o := Offer{TokenID: 1, Offerer: "buyer", Amount: 100, ExpiryBlock: 50}
	assert.False(t, o.Expired(49))
	assert.True(t, o.Expired(50))
	assert.True(t, o.Expired(51))
}

func TestAuctionEnded(t *testing.T) {
	a := Auction{ID: 1, EndBlock: 100}
	assert.False(t, a.Ended(99))
	assert.True(t, a.Ended(100))
	assert.True(t, a.Ended(101))
}

func TestDelegateActive(t *testing.T) {
	d := Delegate{Owner: "owner", Delegate: "op", Rights: DelegateCanMint, ExpiryBlock: 20}
	assert.True(t, d.Active(19))
	assert.False(t, d.Active(20))
}

func TestDelegateRights(t *testing.T) {
	all := DelegateCanMint | DelegateCanTransfer | DelegateCanList
	assert.True(t, all.Has(DelegateCanMint))
	assert.True(t, all.Has(DelegateCanTransfer))
	assert.True(t, all.Has(DelegateCanList))
	assert.Equal(t, "mint|transfer|list", all.String())

	assert.Equal(t, "none", DelegateRights(0).String())
	assert.Equal(t, "transfer", DelegateCanTransfer.String())
	assert.False(t, DelegateCanMint.Has(DelegateCanList))
}

func TestPhaseKindValid(t *testing.T) {
	assert.True(t, PhaseAllowlist.Valid())
	assert.True(t, PhasePublic.Valid())
	assert.False(t, PhaseKind("").Valid())
	assert.False(t, PhaseKind("presale").Valid())
}

func TestIDStrings(t *testing.T) {
	assert.Equal(t, "token:7", TokenID(7).String())
	assert.Equal(t, "collection:3", CollectionID(3).String())
	assert.Equal(t, "auction:12", AuctionID(12).String())
	assert.Equal(t, "bundle:1", BundleID(1).String())
}
