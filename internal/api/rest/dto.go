package rest

import (
	"errors"

	"github.com/artfolio/chainmarket/internal/domain"
)

// Request bodies. Validation here covers shape only; authorization and state
// checks belong to the engine, which reports marketplace error codes.

type MintRequest struct {
	URI string `json:"uri" binding:"required"`
}

type BatchMintRequest struct {
	URIs []string `json:"uris" binding:"required"`
}

type TransferRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

type ApproveRequest struct {
	Spender string `json:"spender" binding:"required"`
}

type AddDelegateRequest struct {
	Delegate    string   `json:"delegate" binding:"required"`
	Rights      []string `json:"rights" binding:"required"`
	ExpiryBlock uint64   `json:"expiry_block" binding:"required"`
}

// ParseRights converts the wire rights list into the bitset form
func (r *AddDelegateRequest) ParseRights() (domain.DelegateRights, error) {
	var rights domain.DelegateRights
	for _, s := range r.Rights {
		switch s {
		case "mint":
			rights |= domain.DelegateCanMint
		case "transfer":
			rights |= domain.DelegateCanTransfer
		case "list":
			rights |= domain.DelegateCanList
		default:
			return 0, errors.New("unknown right: " + s)
		}
	}
	return rights, nil
}

type CreateCollectionRequest struct {
	Name       string `json:"name" binding:"required"`
	MaxSupply  uint64 `json:"max_supply" binding:"required"`
	RoyaltyBps uint16 `json:"royalty_bps"`
	MintPrice  uint64 `json:"mint_price"`

	// Optional socials; presence of any switches to the full variant
	Description string `json:"description"`
	BannerURI   string `json:"banner_uri"`
	Website     string `json:"website"`
	Twitter     string `json:"twitter"`
	Discord     string `json:"discord"`
}

// HasSocials reports whether any optional metadata field is set
func (r *CreateCollectionRequest) HasSocials() bool {
	return r.Description != "" || r.BannerURI != "" || r.Website != "" ||
		r.Twitter != "" || r.Discord != ""
}

type SetMintPhaseRequest struct {
	Kind         string `json:"kind" binding:"required"`
	StartBlock   uint64 `json:"start_block"`
	EndBlock     uint64 `json:"end_block" binding:"required"`
	Price        uint64 `json:"price"`
	MaxPerWallet uint64 `json:"max_per_wallet" binding:"required"`
}

type AllowlistRequest struct {
	Wallet string `json:"wallet" binding:"required"`
	Spots  uint64 `json:"spots" binding:"required"`
}

type AirdropRequest struct {
	Recipients []string `json:"recipients" binding:"required"`
}

type ListTokenRequest struct {
	TokenID uint64 `json:"token_id" binding:"required"`
	Price   uint64 `json:"price" binding:"required"`
}

type UpdatePriceRequest struct {
	Price uint64 `json:"price" binding:"required"`
}

type MakeOfferRequest struct {
	TokenID      uint64 `json:"token_id" binding:"required"`
	Amount       uint64 `json:"amount" binding:"required"`
	ExpiryBlocks uint64 `json:"expiry_blocks" binding:"required"`
}

type OffererRequest struct {
	Offerer string `json:"offerer" binding:"required"`
}

type CreateAuctionRequest struct {
	TokenID      uint64 `json:"token_id" binding:"required"`
	ReservePrice uint64 `json:"reserve_price" binding:"required"`
	Duration     uint64 `json:"duration" binding:"required"`
}

type PlaceBidRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

type CreateBundleRequest struct {
	TokenIDs []uint64 `json:"token_ids" binding:"required"`
	Price    uint64   `json:"price" binding:"required"`
}

type AdvanceBlockRequest struct {
	Blocks uint64 `json:"blocks"`
}

type PauseRequest struct {
	Paused bool `json:"paused"`
}

type CreditBalanceRequest struct {
	Principal string `json:"principal" binding:"required"`
	Amount    uint64 `json:"amount" binding:"required"`
}

// Response bodies

type TokenResponse struct {
	ID           uint64  `json:"id"`
	Owner        string  `json:"owner"`
	URI          string  `json:"uri"`
	Frozen       bool    `json:"frozen"`
	Approved     *string `json:"approved,omitempty"`
	CollectionID *uint64 `json:"collection_id,omitempty"`
	State        string  `json:"state"`
}

func NewTokenResponse(t *domain.Token) TokenResponse {
	resp := TokenResponse{
		ID:     uint64(t.ID),
		Owner:  string(t.Owner),
		URI:    t.URI,
		Frozen: t.Frozen,
		State:  string(t.State),
	}
	if t.Approved != nil {
		s := string(*t.Approved)
		resp.Approved = &s
	}
	if t.CollectionID != nil {
		id := uint64(*t.CollectionID)
		resp.CollectionID = &id
	}
	return resp
}

type MintPhaseResponse struct {
	Kind         string `json:"kind"`
	StartBlock   uint64 `json:"start_block"`
	EndBlock     uint64 `json:"end_block"`
	Price        uint64 `json:"price"`
	MaxPerWallet uint64 `json:"max_per_wallet"`
}

type CollectionResponse struct {
	ID          uint64              `json:"id"`
	Creator     string              `json:"creator"`
	Name        string              `json:"name"`
	MaxSupply   uint64              `json:"max_supply"`
	MintedCount uint64              `json:"minted_count"`
	RoyaltyBps  uint16              `json:"royalty_bps"`
	MintPrice   uint64              `json:"mint_price"`
	Locked      bool                `json:"locked"`
	ActivePhase string              `json:"active_phase,omitempty"`
	Phases      []MintPhaseResponse `json:"phases,omitempty"`
	Description string              `json:"description,omitempty"`
	BannerURI   string              `json:"banner_uri,omitempty"`
	Website     string              `json:"website,omitempty"`
	Twitter     string              `json:"twitter,omitempty"`
	Discord     string              `json:"discord,omitempty"`
}

func NewCollectionResponse(c *domain.Collection) CollectionResponse {
	resp := CollectionResponse{
		ID:          uint64(c.ID),
		Creator:     string(c.Creator),
		Name:        c.Name,
		MaxSupply:   c.MaxSupply,
		MintedCount: c.MintedCount,
		RoyaltyBps:  c.RoyaltyBps,
		MintPrice:   uint64(c.MintPrice),
		Locked:      c.Locked,
		ActivePhase: string(c.ActivePhase),
	}
	for _, kind := range []domain.PhaseKind{domain.PhaseAllowlist, domain.PhasePublic} {
		if p, ok := c.Phases[kind]; ok {
			resp.Phases = append(resp.Phases, MintPhaseResponse{
				Kind:         string(p.Kind),
				StartBlock:   uint64(p.StartBlock),
				EndBlock:     uint64(p.EndBlock),
				Price:        uint64(p.Price),
				MaxPerWallet: p.MaxPerWallet,
			})
		}
	}
	if c.Socials != nil {
		resp.Description = c.Socials.Description
		resp.BannerURI = c.Socials.BannerURI
		resp.Website = c.Socials.Website
		resp.Twitter = c.Socials.Twitter
		resp.Discord = c.Socials.Discord
	}
	return resp
}

type ListingResponse struct {
	TokenID uint64 `json:"token_id"`
	Seller  string `json:"seller"`
	Price   uint64 `json:"price"`
}

func NewListingResponse(l *domain.Listing) ListingResponse {
	return ListingResponse{
		TokenID: uint64(l.TokenID),
		Seller:  string(l.Seller),
		Price:   uint64(l.Price),
	}
}

type OfferResponse struct {
	TokenID     uint64 `json:"token_id"`
	Offerer     string `json:"offerer"`
	Amount      uint64 `json:"amount"`
	ExpiryBlock uint64 `json:"expiry_block"`
}

func NewOfferResponse(o *domain.Offer) OfferResponse {
	return OfferResponse{
		TokenID:     uint64(o.TokenID),
		Offerer:     string(o.Offerer),
		Amount:      uint64(o.Amount),
		ExpiryBlock: uint64(o.ExpiryBlock),
	}
}

type AuctionResponse struct {
	ID            uint64  `json:"id"`
	TokenID       uint64  `json:"token_id"`
	Seller        string  `json:"seller"`
	ReservePrice  uint64  `json:"reserve_price"`
	CurrentBid    uint64  `json:"current_bid"`
	HighestBidder *string `json:"highest_bidder,omitempty"`
	EndBlock      uint64  `json:"end_block"`
	MinNextBid    uint64  `json:"min_next_bid"`
}

func NewAuctionResponse(a *domain.Auction) AuctionResponse {
	resp := AuctionResponse{
		ID:           uint64(a.ID),
		TokenID:      uint64(a.TokenID),
		Seller:       string(a.Seller),
		ReservePrice: uint64(a.ReservePrice),
		CurrentBid:   uint64(a.CurrentBid),
		EndBlock:     uint64(a.EndBlock),
	}
	if a.HighestBidder != nil {
		s := string(*a.HighestBidder)
		resp.HighestBidder = &s
		resp.MinNextBid = uint64(domain.MinNextBid(a.CurrentBid))
	} else {
		resp.MinNextBid = uint64(a.ReservePrice)
	}
	return resp
}

type BundleResponse struct {
	ID       uint64   `json:"id"`
	TokenIDs []uint64 `json:"token_ids"`
	Seller   string   `json:"seller"`
	Price    uint64   `json:"price"`
}

func NewBundleResponse(b *domain.Bundle) BundleResponse {
	ids := make([]uint64, len(b.TokenIDs))
	for i, id := range b.TokenIDs {
		ids[i] = uint64(id)
	}
	return BundleResponse{
		ID:       uint64(b.ID),
		TokenIDs: ids,
		Seller:   string(b.Seller),
		Price:    uint64(b.Price),
	}
}

type StatusResponse struct {
	BlockHeight       uint64 `json:"block_height"`
	MintPaused        bool   `json:"mint_paused"`
	MarketplacePaused bool   `json:"marketplace_paused"`
	FeesAccrued       uint64 `json:"fees_accrued"`
	LastTokenID       uint64 `json:"last_token_id"`
}
