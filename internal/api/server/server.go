package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qiongbi/card-ledger/internal/adapter"
	"github.com/qiongbi/card-ledger/internal/api/middleware"
	"github.com/qiongbi/card-ledger/internal/api/rest"
	"github.com/qiongbi/card-ledger/internal/buttons"
	"github.com/qiongbi/card-ledger/internal/cache"
	"github.com/qiongbi/card-ledger/internal/events"
	"github.com/qiongbi/card-ledger/internal/ledger"
	"github.com/qiongbi/card-ledger/internal/logger"
	"github.com/qiongbi/card-ledger/internal/store"
)

// Config holds the server configuration
type Config struct {
	Debug               bool
	Host                string
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
	APITokens           []string
	IngestRatePerMinute int
	CacheTTLs           rest.CacheTTLs
}

// Server wraps the HTTP server
type Server struct {
	config     Config
	store      store.Store
	ledger     *ledger.Ledger
	buttons    *buttons.Service
	cache      cache.Cache
	recorder   *events.Recorder
	limiter    adapter.RedisRateLimiter
	httpServer *http.Server
}

// New creates a new API server. The limiter may be nil when Redis is not
// configured; the ingest endpoint then runs unthrottled.
func New(cfg Config, s store.Store, l *ledger.Ledger, b *buttons.Service, ca cache.Cache, rec *events.Recorder, limiter adapter.RedisRateLimiter) *Server {
	return &Server{
		config:   cfg,
		store:    s,
		ledger:   l,
		buttons:  b,
		cache:    ca,
		recorder: rec,
		limiter:  limiter,
	}
}

// Start initializes and starts the HTTP server
func (s *Server) Start() error {
	// Set Gin mode based on debug flag
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Setup middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.SetupCORS())

	// Create REST handler
	restHandler := rest.NewHandler(s.ledger, s.store, s.buttons, s.cache, s.config.CacheTTLs, s.recorder)

	// Setup REST routes
	rest.SetupRoutes(router, restHandler, rest.RouteConfig{
		APITokens:           s.config.APITokens,
		RateLimiter:         s.limiter,
		IngestRatePerMinute: s.config.IngestRatePerMinute,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	logger.Info("Starting API server",
		zap.String("address", addr),
	)

	// Start server
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down API server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	return nil
}
