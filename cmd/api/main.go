package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/qiongbi/card-ledger/internal/adapter"
	"github.com/qiongbi/card-ledger/internal/api/rest"
	"github.com/qiongbi/card-ledger/internal/api/server"
	"github.com/qiongbi/card-ledger/internal/buttons"
	"github.com/qiongbi/card-ledger/internal/cache"
	"github.com/qiongbi/card-ledger/internal/config"
	"github.com/qiongbi/card-ledger/internal/events"
	"github.com/qiongbi/card-ledger/internal/ledger"
	"github.com/qiongbi/card-ledger/internal/logger"
	"github.com/qiongbi/card-ledger/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "api-server",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Card Ledger API")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.Fatal("Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Connect to Redis when configured. The service degrades without it:
	// no response cache and no ingest rate limiting.
	var (
		responseCache = cache.NewNoopCache()
		rateLimiter   adapter.RedisRateLimiter
		redisClient   adapter.RedisClient
	)
	if cfg.Redis.Addr != "" {
		redisClient = adapter.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error(err)
			}
		}()
		responseCache = cache.NewRedisCache(redisClient)
		rateLimiter = redisClient.NewRateLimiter()
		logger.InfoCtx(ctx, "Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.WarnCtx(ctx, "Redis not configured, caching and rate limiting disabled")
	}

	// Load button registry
	var buttonRegistry buttons.Registry
	if cfg.Buttons.ConfigPath != "" {
		buttonRegistry, err = buttons.LoadRegistry(cfg.Buttons.ConfigPath)
		if err != nil {
			logger.WarnCtx(ctx, "Failed to load button config, all offers get the default button",
				zap.Error(err),
				zap.String("path", cfg.Buttons.ConfigPath))
			buttonRegistry = nil
		} else {
			logger.InfoCtx(ctx, "Loaded button config", zap.String("path", cfg.Buttons.ConfigPath))
		}
	}
	buttonService := buttons.NewService(dataStore, buttonRegistry)

	// Initialize ingest pipeline and event recorder
	ledgerService := ledger.New(dataStore, ledger.Config{
		MaxRetries: cfg.Ingest.MaxRetries,
		Timeout:    cfg.Ingest.Timeout,
		PoolSize:   cfg.Ingest.PoolSize,
		QueueSize:  cfg.Ingest.QueueSize,
	})
	defer ledgerService.Close()

	recorder := events.NewRecorder(dataStore, events.Config{
		PoolSize:     cfg.Events.PoolSize,
		QueueSize:    cfg.Events.QueueSize,
		WriteTimeout: cfg.Events.WriteTimeout,
	})
	defer recorder.Close()

	// Create server config
	serverConfig := server.Config{
		Debug:               cfg.Debug,
		Host:                cfg.Server.Host,
		Port:                cfg.Server.Port,
		ReadTimeout:         time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:        time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:         time.Duration(cfg.Server.IdleTimeout) * time.Second,
		APITokens:           cfg.Auth.APITokens,
		IngestRatePerMinute: cfg.Ingest.RatePerMinute,
		CacheTTLs: rest.CacheTTLs{
			Offers:  cfg.Cache.OffersTTL,
			Buttons: cfg.Cache.ButtonsTTL,
			Stats:   cfg.Cache.StatsTTL,
		},
	}

	// Create and start server
	srv := server.New(serverConfig, dataStore, ledgerService, buttonService, responseCache, recorder, rateLimiter)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}
