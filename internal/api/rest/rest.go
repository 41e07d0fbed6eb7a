package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/artfolio/chainmarket/internal/api/middleware"
)

// SetupRoutes configures all REST API routes. Reads are public; writes
// require a bearer token whose subject is the caller principal; admin
// operations require an API key.
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")

	// Public reads
	v1.GET("/status", handler.GetStatus)
	v1.GET("/tokens/:id", handler.GetToken)
	v1.GET("/tokens/:id/owner", handler.GetTokenOwner)
	v1.GET("/collections/:id", handler.GetCollection)
	v1.GET("/collections/:id/allowlist/:wallet", handler.GetAllowlistSpots)
	v1.GET("/listings/:id", handler.GetListing)
	v1.GET("/offers/:id", handler.ListTokenOffers)
	v1.GET("/auctions/:id", handler.GetAuction)
	v1.GET("/bundles/:id", handler.GetBundle)
	v1.GET("/delegates/:owner/:delegate", handler.GetDelegate)
	v1.GET("/balances/:principal", handler.GetBalance)

	// Authenticated writes
	auth := v1.Group("", middleware.Auth(authCfg))
	{
		auth.POST("/tokens/mint", handler.MintToken)
		auth.POST("/tokens/mint-batch", handler.BatchMintTokens)
		auth.POST("/tokens/:id/transfer", handler.TransferToken)
		auth.POST("/tokens/:id/burn", handler.BurnToken)
		auth.POST("/tokens/:id/freeze", handler.FreezeToken)
		auth.POST("/tokens/:id/approve", handler.ApproveToken)
		auth.DELETE("/tokens/:id/approve", handler.RevokeTokenApproval)

		auth.POST("/delegates", handler.AddDelegate)
		auth.DELETE("/delegates/:delegate", handler.RemoveDelegate)

		auth.POST("/collections", handler.CreateCollection)
		auth.PUT("/collections/:id/phases", handler.SetMintPhase)
		auth.POST("/collections/:id/phases/:kind/activate", handler.ActivatePhase)
		auth.POST("/collections/:id/allowlist", handler.AddToAllowlist)
		auth.POST("/collections/:id/mint", handler.MintFromCollection)
		auth.POST("/collections/:id/airdrop", handler.Airdrop)
		auth.POST("/collections/:id/lock", handler.LockCollection)

		auth.POST("/listings", handler.CreateListing)
		auth.DELETE("/listings/:id", handler.CancelListing)
		auth.PATCH("/listings/:id", handler.UpdateListingPrice)
		auth.POST("/listings/:id/buy", handler.BuyListing)

		auth.POST("/offers", handler.MakeOffer)
		auth.DELETE("/offers/:id", handler.CancelOffer)
		auth.POST("/offers/:id/accept", handler.AcceptOffer)
		auth.POST("/offers/:id/expire", handler.ExpireOffer)

		auth.POST("/auctions", handler.CreateAuction)
		auth.POST("/auctions/:id/bids", handler.PlaceBid)
		auth.POST("/auctions/:id/settle", handler.SettleAuction)
		auth.DELETE("/auctions/:id", handler.CancelAuction)

		auth.POST("/bundles", handler.CreateBundle)
		auth.POST("/bundles/:id/buy", handler.BuyBundle)
		auth.DELETE("/bundles/:id", handler.CancelBundle)
	}

	// Admin operations (API key only)
	admin := v1.Group("/admin", middleware.APIKeyAuth(authCfg))
	{
		admin.POST("/advance-block", handler.AdvanceBlock)
		admin.POST("/mint-pause", handler.SetMintPaused)
		admin.POST("/marketplace-pause", handler.SetMarketplacePaused)
		admin.POST("/credit-balance", handler.CreditBalance)
		admin.POST("/claim-fees", handler.ClaimFees)
		admin.POST("/tokens/:id/unfreeze", handler.UnfreezeToken)
	}
}
