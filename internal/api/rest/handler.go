package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/artfolio/chainmarket/internal/api/middleware"
	apierrors "github.com/artfolio/chainmarket/internal/api/shared/errors"
	"github.com/artfolio/chainmarket/internal/domain"
	"github.com/artfolio/chainmarket/internal/engine"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// Ledger
	MintToken(c *gin.Context)          // POST /api/v1/tokens/mint
	BatchMintTokens(c *gin.Context)    // POST /api/v1/tokens/mint-batch
	TransferToken(c *gin.Context)      // POST /api/v1/tokens/:id/transfer
	BurnToken(c *gin.Context)          // POST /api/v1/tokens/:id/burn
	FreezeToken(c *gin.Context)        // POST /api/v1/tokens/:id/freeze
	UnfreezeToken(c *gin.Context)      // POST /api/v1/tokens/:id/unfreeze (admin)
	ApproveToken(c *gin.Context)       // POST /api/v1/tokens/:id/approve
	RevokeTokenApproval(c *gin.Context) // DELETE /api/v1/tokens/:id/approve
	AddDelegate(c *gin.Context)        // POST /api/v1/delegates
	RemoveDelegate(c *gin.Context)     // DELETE /api/v1/delegates/:delegate

	// Collections
	CreateCollection(c *gin.Context)   // POST /api/v1/collections
	SetMintPhase(c *gin.Context)       // PUT /api/v1/collections/:id/phases
	ActivatePhase(c *gin.Context)      // POST /api/v1/collections/:id/phases/:kind/activate
	AddToAllowlist(c *gin.Context)     // POST /api/v1/collections/:id/allowlist
	MintFromCollection(c *gin.Context) // POST /api/v1/collections/:id/mint
	Airdrop(c *gin.Context)            // POST /api/v1/collections/:id/airdrop
	LockCollection(c *gin.Context)     // POST /api/v1/collections/:id/lock

	// Marketplace
	CreateListing(c *gin.Context)      // POST /api/v1/listings
	CancelListing(c *gin.Context)      // DELETE /api/v1/listings/:id
	UpdateListingPrice(c *gin.Context) // PATCH /api/v1/listings/:id
	BuyListing(c *gin.Context)         // POST /api/v1/listings/:id/buy

	// Offers
	MakeOffer(c *gin.Context)   // POST /api/v1/offers
	CancelOffer(c *gin.Context) // DELETE /api/v1/offers/:id
	AcceptOffer(c *gin.Context) // POST /api/v1/offers/:id/accept
	ExpireOffer(c *gin.Context) // POST /api/v1/offers/:id/expire

	// Auctions
	CreateAuction(c *gin.Context) // POST /api/v1/auctions
	PlaceBid(c *gin.Context)      // POST /api/v1/auctions/:id/bids
	SettleAuction(c *gin.Context) // POST /api/v1/auctions/:id/settle
	CancelAuction(c *gin.Context) // DELETE /api/v1/auctions/:id

	// Bundles
	CreateBundle(c *gin.Context) // POST /api/v1/bundles
	BuyBundle(c *gin.Context)    // POST /api/v1/bundles/:id/buy
	CancelBundle(c *gin.Context) // DELETE /api/v1/bundles/:id

	// Admin
	AdvanceBlock(c *gin.Context)         // POST /api/v1/admin/advance-block
	SetMintPaused(c *gin.Context)        // POST /api/v1/admin/mint-pause
	SetMarketplacePaused(c *gin.Context) // POST /api/v1/admin/marketplace-pause
	CreditBalance(c *gin.Context)        // POST /api/v1/admin/credit-balance
	ClaimFees(c *gin.Context)            // POST /api/v1/admin/claim-fees

	// Reads
	GetToken(c *gin.Context)          // GET /api/v1/tokens/:id
	GetTokenOwner(c *gin.Context)     // GET /api/v1/tokens/:id/owner
	GetCollection(c *gin.Context)     // GET /api/v1/collections/:id
	GetAllowlistSpots(c *gin.Context) // GET /api/v1/collections/:id/allowlist/:wallet
	GetListing(c *gin.Context)        // GET /api/v1/listings/:id
	ListTokenOffers(c *gin.Context)   // GET /api/v1/offers/:id
	GetAuction(c *gin.Context)        // GET /api/v1/auctions/:id
	GetBundle(c *gin.Context)         // GET /api/v1/bundles/:id
	GetDelegate(c *gin.Context)       // GET /api/v1/delegates/:owner/:delegate
	GetBalance(c *gin.Context)        // GET /api/v1/balances/:principal
	GetStatus(c *gin.Context)         // GET /api/v1/status
	HealthCheck(c *gin.Context)       // GET /health
}

// handler implements the Handler interface on top of the marketplace engine
type handler struct {
	engine *engine.Engine
	// admin is the principal used as caller for API-key-authenticated
	// admin endpoints
	admin domain.Principal
}

// NewHandler creates a new REST API handler
func NewHandler(eng *engine.Engine, admin domain.Principal) Handler {
	return &handler{
		engine: eng,
		admin:  admin,
	}
}

// caller extracts the caller principal from the JWT subject. The auth
// middleware guarantees the subject is set for bearer tokens.
func (h *handler) caller(c *gin.Context) (domain.Principal, bool) {
	subject := c.GetString(middleware.AUTH_SUBJECT_KEY)
	p := domain.Principal(subject)
	if !p.Valid() {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			apierrors.NewUnauthorizedError("Caller principal required", "bearer token with subject claim required"))
		return "", false
	}
	return p, true
}

// pathID parses a numeric path parameter
func pathID(c *gin.Context, name string) (uint64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, fmt.Sprintf("Invalid %s: %q", name, raw))
		return 0, false
	}
	return id, true
}

// pathPrincipal parses a principal path parameter
func pathPrincipal(c *gin.Context, name string) (domain.Principal, bool) {
	p := domain.Principal(c.Param(name))
	if !p.Valid() {
		respondBadRequest(c, fmt.Sprintf("Invalid %s principal", name))
		return "", false
	}
	return p, true
}

// MintToken mints a standalone token to the caller
func (h *handler) MintToken(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	id, err := h.engine.Mint(c.Request.Context(), caller, req.URI)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token_id": uint64(id)})
}

// BatchMintTokens mints multiple tokens to the caller in one atomic batch
func (h *handler) BatchMintTokens(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req BatchMintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	lastID, err := h.engine.BatchMint(c.Request.Context(), caller, req.URIs)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"last_token_id": uint64(lastID),
		"count":         len(req.URIs),
	})
}

// TransferToken moves a token between principals
func (h *handler) TransferToken(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	err := h.engine.Transfer(c.Request.Context(), caller, domain.TokenID(id),
		domain.Principal(req.From), domain.Principal(req.To))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token_id": id, "owner": req.To})
}

// BurnToken permanently destroys a token
func (h *handler) BurnToken(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.Burn(c.Request.Context(), caller, domain.TokenID(id)); err != nil {
		respondEngineError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// FreezeToken freezes a token against transfers and sales
func (h *handler) FreezeToken(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.Freeze(c.Request.Context(), caller, domain.TokenID(id)); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token_id": id, "frozen": true})
}

// UnfreezeToken lifts a freeze. Reachable only through the admin route group.
func (h *handler) UnfreezeToken(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.Unfreeze(c.Request.Context(), h.admin, domain.TokenID(id)); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token_id": id, "frozen": false})
}

// ApproveToken grants a one-token transfer approval
func (h *handler) ApproveToken(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	err := h.engine.Approve(c.Request.Context(), caller, domain.TokenID(id), domain.Principal(req.Spender))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token_id": id, "approved": req.Spender})
}

// RevokeTokenApproval clears a token's approval
func (h *handler) RevokeTokenApproval(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.RevokeApproval(c.Request.Context(), caller, domain.TokenID(id)); err != nil {
		respondEngineError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AddDelegate grants a time-bounded rights delegation from the caller
func (h *handler) AddDelegate(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req AddDelegateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	rights, err := req.ParseRights()
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	err = h.engine.AddDelegate(c.Request.Context(), caller, domain.Principal(req.Delegate),
		rights, domain.BlockHeight(req.ExpiryBlock))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"owner":        string(caller),
		"delegate":     req.Delegate,
		"rights":       rights.String(),
		"expiry_block": req.ExpiryBlock,
	})
}

// RemoveDelegate revokes a delegation grant from the caller
func (h *handler) RemoveDelegate(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	delegate, ok := pathPrincipal(c, "delegate")
	if !ok {
		return
	}

	if err := h.engine.RemoveDelegate(c.Request.Context(), caller, delegate); err != nil {
		respondEngineError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateCollection registers a new collection with the caller as creator
func (h *handler) CreateCollection(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	var (
		id  domain.CollectionID
		err error
	)
	if req.HasSocials() {
		id, err = h.engine.CreateCollectionFull(c.Request.Context(), caller, req.Name,
			req.MaxSupply, req.RoyaltyBps, domain.Amount(req.MintPrice),
			domain.CollectionSocials{
				Description: req.Description,
				BannerURI:   req.BannerURI,
				Website:     req.Website,
				Twitter:     req.Twitter,
				Discord:     req.Discord,
			})
	} else {
		id, err = h.engine.CreateCollection(c.Request.Context(), caller, req.Name,
			req.MaxSupply, req.RoyaltyBps, domain.Amount(req.MintPrice))
	}
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"collection_id": uint64(id)})
}

// SetMintPhase creates or replaces a mint phase on a collection
func (h *handler) SetMintPhase(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req SetMintPhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	phase := domain.MintPhase{
		Kind:         domain.PhaseKind(req.Kind),
		StartBlock:   domain.BlockHeight(req.StartBlock),
		EndBlock:     domain.BlockHeight(req.EndBlock),
		Price:        domain.Amount(req.Price),
		MaxPerWallet: req.MaxPerWallet,
	}
	if err := h.engine.SetMintPhase(c.Request.Context(), caller, domain.CollectionID(id), phase); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"collection_id": id, "kind": req.Kind})
}

// ActivatePhase makes a configured phase the live one
func (h *handler) ActivatePhase(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	kind := domain.PhaseKind(c.Param("kind"))
	if !kind.Valid() {
		respondBadRequest(c, fmt.Sprintf("Invalid phase kind: %q", c.Param("kind")))
		return
	}

	if err := h.engine.ActivatePhase(c.Request.Context(), caller, domain.CollectionID(id), kind); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"collection_id": id, "active_phase": string(kind)})
}

// AddToAllowlist grants mint spots to a wallet
func (h *handler) AddToAllowlist(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req AllowlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	err := h.engine.AddToAllowlist(c.Request.Context(), caller, domain.CollectionID(id),
		domain.Principal(req.Wallet), req.Spots)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	spots := h.engine.AllowlistSpots(domain.CollectionID(id), domain.Principal(req.Wallet))
	c.JSON(http.StatusOK, gin.H{"collection_id": id, "wallet": req.Wallet, "spots": spots})
}

// MintFromCollection mints the next token of a collection to the caller
func (h *handler) MintFromCollection(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	tokenID, err := h.engine.MintFromCollection(c.Request.Context(), caller, domain.CollectionID(id))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token_id": uint64(tokenID), "collection_id": id})
}

// Airdrop mints one token of the collection to each recipient
func (h *handler) Airdrop(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req AirdropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	recipients := make([]domain.Principal, len(req.Recipients))
	for i, r := range req.Recipients {
		recipients[i] = domain.Principal(r)
	}

	count, err := h.engine.Airdrop(c.Request.Context(), caller, domain.CollectionID(id), recipients)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"collection_id": id, "minted": count})
}

// LockCollection permanently closes a collection to further minting
func (h *handler) LockCollection(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.LockCollection(c.Request.Context(), caller, domain.CollectionID(id)); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"collection_id": id, "locked": true})
}

// CreateListing lists a token at a fixed price
func (h *handler) CreateListing(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req ListTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	err := h.engine.ListNFT(c.Request.Context(), caller, domain.TokenID(req.TokenID), domain.Amount(req.Price))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token_id": req.TokenID, "price": req.Price})
}

// CancelListing removes a listing
func (h *handler) CancelListing(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.CancelListing(c.Request.Context(), caller, domain.TokenID(id)); err != nil {
		respondEngineError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UpdateListingPrice changes the price of a standing listing
func (h *handler) UpdateListingPrice(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	err := h.engine.UpdateListingPrice(c.Request.Context(), caller, domain.TokenID(id), domain.Amount(req.Price))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token_id": id, "price": req.Price})
}

// BuyListing purchases a listed token at the listed price
func (h *handler) BuyListing(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.BuyNFT(c.Request.Context(), caller, domain.TokenID(id)); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token_id": id, "owner": string(caller)})
}

// MakeOffer escrows funds against a token the caller wants to buy
func (h *handler) MakeOffer(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req MakeOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	err := h.engine.MakeOffer(c.Request.Context(), caller, domain.TokenID(req.TokenID),
		domain.Amount(req.Amount), domain.BlockHeight(req.ExpiryBlocks))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token_id": req.TokenID, "offerer": string(caller), "amount": req.Amount})
}

// CancelOffer withdraws the caller's offer and refunds the escrow
func (h *handler) CancelOffer(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.CancelOffer(c.Request.Context(), caller, domain.TokenID(id)); err != nil {
		respondEngineError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AcceptOffer sells the token to the named offerer at the escrowed amount
func (h *handler) AcceptOffer(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req OffererRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	err := h.engine.AcceptOffer(c.Request.Context(), caller, domain.TokenID(id), domain.Principal(req.Offerer))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token_id": id, "owner": req.Offerer})
}

// ExpireOffer reclaims the escrow of an expired offer. Callable by anyone.
func (h *handler) ExpireOffer(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req OffererRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	err := h.engine.ExpireOffer(c.Request.Context(), caller, domain.TokenID(id), domain.Principal(req.Offerer))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateAuction opens a time-boxed auction for a token
func (h *handler) CreateAuction(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	id, err := h.engine.CreateAuction(c.Request.Context(), caller, domain.TokenID(req.TokenID),
		domain.Amount(req.ReservePrice), domain.BlockHeight(req.Duration))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"auction_id": uint64(id), "token_id": req.TokenID})
}

// PlaceBid escrows a bid on a live auction
func (h *handler) PlaceBid(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	err := h.engine.PlaceBid(c.Request.Context(), caller, domain.AuctionID(id), domain.Amount(req.Amount))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auction_id": id, "bidder": string(caller), "amount": req.Amount})
}

// SettleAuction finalizes an ended auction. Callable by anyone once the
// end block is reached.
func (h *handler) SettleAuction(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.SettleAuction(c.Request.Context(), caller, domain.AuctionID(id)); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auction_id": id, "settled": true})
}

// CancelAuction cancels a bidless auction
func (h *handler) CancelAuction(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.CancelAuction(c.Request.Context(), caller, domain.AuctionID(id)); err != nil {
		respondEngineError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateBundle groups tokens into one fixed-price atomic sale
func (h *handler) CreateBundle(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req CreateBundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	tokenIDs := make([]domain.TokenID, len(req.TokenIDs))
	for i, id := range req.TokenIDs {
		tokenIDs[i] = domain.TokenID(id)
	}

	id, err := h.engine.CreateBundle(c.Request.Context(), caller, tokenIDs, domain.Amount(req.Price))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"bundle_id": uint64(id)})
}

// BuyBundle purchases all tokens in a bundle atomically
func (h *handler) BuyBundle(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.BuyBundle(c.Request.Context(), caller, domain.BundleID(id)); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bundle_id": id, "owner": string(caller)})
}

// CancelBundle dissolves a bundle without a sale
func (h *handler) CancelBundle(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.CancelBundle(c.Request.Context(), caller, domain.BundleID(id)); err != nil {
		respondEngineError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AdvanceBlock moves the logical clock forward
func (h *handler) AdvanceBlock(c *gin.Context) {
	var req AdvanceBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Blocks == 0 {
		req.Blocks = 1
	}

	height, err := h.engine.AdvanceBlock(c.Request.Context(), h.admin, req.Blocks)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"block_height": uint64(height)})
}

// SetMintPaused toggles the mint circuit breaker
func (h *handler) SetMintPaused(c *gin.Context) {
	var req PauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if err := h.engine.SetMintPaused(c.Request.Context(), h.admin, req.Paused); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"mint_paused": req.Paused})
}

// SetMarketplacePaused toggles the marketplace circuit breaker
func (h *handler) SetMarketplacePaused(c *gin.Context) {
	var req PauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if err := h.engine.SetMarketplacePaused(c.Request.Context(), h.admin, req.Paused); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marketplace_paused": req.Paused})
}

// CreditBalance credits a principal's spendable balance
func (h *handler) CreditBalance(c *gin.Context) {
	var req CreditBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	err := h.engine.CreditBalance(c.Request.Context(), h.admin,
		domain.Principal(req.Principal), domain.Amount(req.Amount))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	balance := h.engine.GetBalance(domain.Principal(req.Principal))
	c.JSON(http.StatusOK, gin.H{"principal": req.Principal, "balance": uint64(balance)})
}

// ClaimFees transfers accrued marketplace fees to the admin
func (h *handler) ClaimFees(c *gin.Context) {
	amount, err := h.engine.ClaimFees(c.Request.Context(), h.admin)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"claimed": uint64(amount)})
}

// GetToken retrieves a token by ID
func (h *handler) GetToken(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	token, err := h.engine.GetToken(domain.TokenID(id))
	if err != nil {
		respondNotFound(c, "Token not found")
		return
	}

	c.JSON(http.StatusOK, NewTokenResponse(token))
}

// GetTokenOwner retrieves just the owner of a token
func (h *handler) GetTokenOwner(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	owner, err := h.engine.GetOwner(domain.TokenID(id))
	if err != nil {
		respondNotFound(c, "Token not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token_id": id, "owner": string(owner)})
}

// GetCollection retrieves a collection by ID
func (h *handler) GetCollection(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	collection, err := h.engine.GetCollection(domain.CollectionID(id))
	if err != nil {
		respondNotFound(c, "Collection not found")
		return
	}

	c.JSON(http.StatusOK, NewCollectionResponse(collection))
}

// GetAllowlistSpots retrieves a wallet's remaining allowlist spots
func (h *handler) GetAllowlistSpots(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	wallet, ok := pathPrincipal(c, "wallet")
	if !ok {
		return
	}

	spots := h.engine.AllowlistSpots(domain.CollectionID(id), wallet)
	c.JSON(http.StatusOK, gin.H{"collection_id": id, "wallet": string(wallet), "spots": spots})
}

// GetListing retrieves the listing of a token
func (h *handler) GetListing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	listing, err := h.engine.GetListing(domain.TokenID(id))
	if err != nil {
		respondNotFound(c, "Listing not found")
		return
	}

	c.JSON(http.StatusOK, NewListingResponse(listing))
}

// ListTokenOffers retrieves all standing offers on a token
func (h *handler) ListTokenOffers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	offers := h.engine.ListOffers(domain.TokenID(id))
	resp := make([]OfferResponse, len(offers))
	for i := range offers {
		resp[i] = NewOfferResponse(&offers[i])
	}

	c.JSON(http.StatusOK, gin.H{"token_id": id, "offers": resp})
}

// GetAuction retrieves an auction by ID
func (h *handler) GetAuction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	auction, err := h.engine.GetAuction(domain.AuctionID(id))
	if err != nil {
		respondNotFound(c, "Auction not found")
		return
	}

	c.JSON(http.StatusOK, NewAuctionResponse(auction))
}

// GetBundle retrieves a bundle by ID
func (h *handler) GetBundle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	bundle, err := h.engine.GetBundle(domain.BundleID(id))
	if err != nil {
		respondNotFound(c, "Bundle not found")
		return
	}

	c.JSON(http.StatusOK, NewBundleResponse(bundle))
}

// GetDelegate retrieves a delegation grant
func (h *handler) GetDelegate(c *gin.Context) {
	owner, ok := pathPrincipal(c, "owner")
	if !ok {
		return
	}
	delegate, ok := pathPrincipal(c, "delegate")
	if !ok {
		return
	}

	grant, err := h.engine.GetDelegate(owner, delegate)
	if err != nil {
		respondNotFound(c, "Delegate not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"owner":        string(grant.Owner),
		"delegate":     string(grant.Delegate),
		"rights":       grant.Rights.String(),
		"expiry_block": uint64(grant.ExpiryBlock),
		"active":       grant.Active(h.engine.Height()),
	})
}

// GetBalance retrieves a principal's spendable balance
func (h *handler) GetBalance(c *gin.Context) {
	principal, ok := pathPrincipal(c, "principal")
	if !ok {
		return
	}

	balance := h.engine.GetBalance(principal)
	c.JSON(http.StatusOK, gin.H{"principal": string(principal), "balance": uint64(balance)})
}

// GetStatus returns the engine's clock and circuit-breaker state
func (h *handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		BlockHeight:       uint64(h.engine.Height()),
		MintPaused:        h.engine.MintPaused(),
		MarketplacePaused: h.engine.MarketplacePaused(),
		FeesAccrued:       uint64(h.engine.FeesAccrued()),
		LastTokenID:       uint64(h.engine.LastTokenID()),
	})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "chainmarket-api",
	})
}
