package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bimakw/nexus-orchestrator/internal/application/services"
	"github.com/bimakw/nexus-orchestrator/internal/config"
	"github.com/bimakw/nexus-orchestrator/internal/domain/repositories"
	"github.com/bimakw/nexus-orchestrator/internal/infrastructure/cache"
	"github.com/bimakw/nexus-orchestrator/internal/infrastructure/database"
	"github.com/bimakw/nexus-orchestrator/internal/infrastructure/ethereum"
	"github.com/bimakw/nexus-orchestrator/internal/infrastructure/simulated"
	"github.com/bimakw/nexus-orchestrator/internal/presentation/handlers"
	"github.com/bimakw/nexus-orchestrator/internal/presentation/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	logger.Info("Starting nexus-orchestrator API",
		zap.Int("port", cfg.API.Port),
		zap.String("balance_source", cfg.Nexus.BalanceSource),
	)

	gasFee, ok := new(big.Int).SetString(cfg.Nexus.GasFeeWei, 10)
	if !ok || gasFee.Sign() < 0 {
		logger.Fatal("Invalid gas fee", zap.String("gas_fee_wei", cfg.Nexus.GasFeeWei))
	}

	// Connect to Redis cache (optional)
	var redisCache *cache.RedisCache
	redisCache, err = cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, logger)
	if err != nil {
		logger.Warn("Failed to connect to Redis, running without cache", zap.Error(err))
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Connect to the intent journal (optional)
	var journal repositories.IntentJournal
	var journalChecker handlers.HealthChecker
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := database.OpenJournal(dbCtx, cfg.Database, logger)
	dbCancel()
	if err != nil {
		logger.Warn("Intent journal unavailable, running without intent archive", zap.Error(err))
	} else {
		defer db.Close()
		journal = db.Journal()
		journalChecker = db
	}

	// Backends. Writes stay simulated in rpc mode: the service holds no signing key.
	network := simulated.NewNetwork(cfg.Nexus.Delays, logger)

	var balanceSource repositories.BalanceSource = network
	var allowanceRead repositories.AllowanceSource = network
	chains := cfg.Nexus.SupportedChains

	if cfg.Nexus.BalanceSource == "rpc" {
		multi, err := ethereum.DialAll(cfg.Ethereum, logger)
		if err != nil {
			logger.Fatal("Failed to connect to RPC endpoints", zap.Error(err))
		}
		defer multi.Close()

		covered, missing := multi.Covering(chains)
		if len(covered) == 0 {
			logger.Fatal("No supported chain has an RPC endpoint", zap.Int64s("supported_chains", chains))
		}
		if len(missing) > 0 {
			logger.Warn("Supported chains without an RPC endpoint are skipped", zap.Int64s("chain_ids", missing))
		}
		chains = covered
		reader := ethereum.NewBalanceReader(multi, logger)
		balanceSource = reader
		allowanceRead = reader

		verifyCtx, cancel := context.WithTimeout(context.Background(), cfg.Ethereum.RequestTimeout)
		if mismatches := ethereum.NewMetadataFetcher(multi, logger).VerifyRegistry(verifyCtx, chains); len(mismatches) > 0 {
			logger.Warn("Token registry has mismatches", zap.Int("count", len(mismatches)))
		}
		cancel()
	}

	// Create services
	aggregator := services.NewBalanceAggregator(balanceSource, redisCache, logger,
		services.WithChains(chains),
		services.WithBridgeTokens(cfg.Nexus.BridgeTokens),
		services.WithWorkers(cfg.Nexus.WorkerCount),
	)
	engine := services.NewIntentEngine(network, journal, cfg.Nexus.BridgeFeeBps, gasFee, chains, logger)
	pipeline := services.NewOperationPipeline(engine, network, logger)
	manager := services.NewSessionManager(
		aggregator,
		allowanceRead,
		network,
		engine,
		cfg.Nexus.SpenderAddress,
		cfg.Nexus.Delays.Init,
		logger,
	)

	refresher := services.NewBalanceRefresher(manager, cfg.Nexus.RefreshInterval, cfg.Nexus.WorkerCount, logger)
	refresher.Start(context.Background())
	defer refresher.Stop()

	// Create handlers
	sessionHandler := handlers.NewSessionHandler(manager, engine, pipeline, cfg.Nexus.EventBuffer, logger)

	var cacheChecker handlers.HealthChecker
	if redisCache != nil {
		cacheChecker = redisCache
	}
	healthHandler := handlers.NewHealthHandler(journalChecker, cacheChecker, manager)

	// Setup router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)

	// Health endpoints (no rate limiting)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimiter(cfg.API.RateLimitRPS))
		sessionHandler.RegisterRoutes(r)
	})

	// Start server. WriteTimeout is left unset so event streams stay open.
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: cfg.API.ReadTimeout,
	}

	// Run server in goroutine
	go func() {
		logger.Info("API server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	// closing sessions first ends open event streams
	manager.CloseAll(ctx)

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func setupLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoding := "json"
	encoderConfig := zap.NewProductionEncoderConfig()
	if format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := config.Build()
	return logger
}
