package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shalconnects/balanze-ledger-go/internal/config"
	"github.com/shalconnects/balanze-ledger-go/internal/domain"
	"github.com/shalconnects/balanze-ledger-go/internal/handler"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/cache"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/observability"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/resilience"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/supabase"
	"github.com/shalconnects/balanze-ledger-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("import_batch_size", cfg.ImportBatchSize),
	)

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		logger.Fatal("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required")
	}
	if cfg.SupabaseJWTSecret == "" {
		logger.Fatal("SUPABASE_JWT_SECRET is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "balanze-ledger")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Caches ---
	state := service.NewStateCache(
		cache.New[[]domain.Transaction](cfg.CacheTTL),
		cache.New[[]domain.Account](cfg.CacheTTL),
		cache.New[[]domain.Purchase](cfg.CacheTTL),
	)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	// --- Supabase client + storage ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		metrics,
		logger,
	)
	store.SetFetchLimits(supabase.FetchLimits{
		Transactions: cfg.TransactionFetchLimit,
		Purchases:    cfg.PurchaseFetchLimit,
		Accounts:     cfg.AccountFetchLimit,
	})
	storage := supabase.NewStorage(store, cfg.StorageBucket)

	// --- Services ---
	ledgerSvc := service.NewLedgerService(store, store, store, store, storage, store, state, metrics, logger, cfg.ImportBatchSize)
	transferSvc := service.NewTransferService(store, store, store, state, metrics, logger)
	purchaseSvc := service.NewPurchaseService(store, store, store, store, storage, store, state, metrics, logger)
	accountSvc := service.NewAccountService(store, store, state, metrics, logger)
	donationSvc := service.NewDonationService(store, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Ledger:    ledgerSvc,
		Transfers: transferSvc,
		Purchases: purchaseSvc,
		Accounts:  accountSvc,
		Donations: donationSvc,
	}, cfg.SupabaseJWTSecret, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
