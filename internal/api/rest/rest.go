package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/qiongbi/card-ledger/internal/adapter"
	"github.com/qiongbi/card-ledger/internal/api/middleware"
)

// RouteConfig holds per-route middleware settings
type RouteConfig struct {
	// APITokens guards the ingest endpoint
	APITokens []string
	// RateLimiter limits ingest requests per client IP; nil disables limiting
	RateLimiter adapter.RedisRateLimiter
	// IngestRatePerMinute is the per-IP ingest budget
	IngestRatePerMinute int
}

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, cfg RouteConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Ingest endpoint (requires API token; rate limited when Redis is configured)
		ingest := []gin.HandlerFunc{middleware.APITokenAuth(cfg.APITokens)}
		if cfg.RateLimiter != nil {
			ingest = append(ingest, middleware.RateLimit(cfg.RateLimiter, cfg.IngestRatePerMinute))
		}
		v1.POST("/offers", append(ingest, handler.IngestOffers)...)

		// Offer endpoints (public read access)
		v1.GET("/offers", handler.ListOffers)
		v1.GET("/offers/:id/buttons", handler.GetOrderButtons)
		v1.GET("/history", handler.ListHistory)

		// Statistics endpoints (open; written by the display layer)
		v1.POST("/stats/visit", handler.RecordVisit)
		v1.POST("/stats/order", handler.RecordOrder)
		v1.GET("/stats", handler.GetStats)
	}
}
