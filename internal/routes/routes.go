package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tresora/backend/internal/handlers"
	"github.com/tresora/backend/internal/middleware"
)

// SetupRoutes registers every route on the router
func SetupRoutes(
	router *gin.Engine,
	loyaltyHandler *handlers.LoyaltyHandler,
	adminHandler *handlers.AdminLoyaltyHandler,
	eventHandler *handlers.EventHandler,
	rateLimiter *middleware.RateLimiter,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Storefront event intake. Authenticated by HMAC signature, not JWT.
	webhooks := router.Group("/api/webhooks")
	webhooks.Use(rateLimiter.IPRateLimiterMiddleware())
	{
		webhooks.POST("/orders", eventHandler.OrderPlaced)
		webhooks.POST("/customers", eventHandler.CustomerCreated)
	}

	// Customer-facing loyalty surface.
	loyaltyGroup := router.Group("/api/loyalty")
	loyaltyGroup.Use(rateLimiter.IPRateLimiterMiddleware(), middleware.AuthMiddleware())
	{
		loyaltyGroup.GET("/summary", loyaltyHandler.GetSummary)
		loyaltyGroup.GET("/history", loyaltyHandler.GetTransactionHistory)
		loyaltyGroup.POST("/checkout/quote", loyaltyHandler.QuoteCheckout)
		loyaltyGroup.POST("/checkout/spend", loyaltyHandler.SpendOnOrder)
		loyaltyGroup.POST("/referral/redeem", loyaltyHandler.RedeemReferral)
	}

	// Operator surface.
	adminGroup := router.Group("/api/admin/loyalty")
	adminGroup.Use(rateLimiter.IPRateLimiterMiddleware(), middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		adminGroup.GET("/accounts/:customerId", adminHandler.GetAccount)
		adminGroup.POST("/accounts/:customerId/adjust", adminHandler.AdjustPoints)
		adminGroup.PUT("/accounts/:customerId/enabled", adminHandler.SetAccountEnabled)
		adminGroup.GET("/settings", adminHandler.GetSettings)
		adminGroup.PUT("/settings", adminHandler.UpdateSettings)
	}
}
