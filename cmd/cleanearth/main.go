package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cleanearth/cleanearth-bff-go/internal/config"
	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/handler"
	"github.com/cleanearth/cleanearth-bff-go/internal/infra/cache"
	"github.com/cleanearth/cleanearth-bff-go/internal/infra/memstore"
	"github.com/cleanearth/cleanearth-bff-go/internal/infra/observability"
	"github.com/cleanearth/cleanearth-bff-go/internal/infra/resilience"
	"github.com/cleanearth/cleanearth-bff-go/internal/infra/supabase"
	"github.com/cleanearth/cleanearth-bff-go/internal/port"
	"github.com/cleanearth/cleanearth-bff-go/internal/service"
	"github.com/cleanearth/cleanearth-bff-go/internal/session"

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
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Bool("dev_mode", cfg.DevMode),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Duration("jwt_refresh_ttl", cfg.JWTRefreshTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "cleanearth-bff")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Caches ---
	userProfileCache := cache.NewWithSweep[*domain.UserProfile](cfg.CacheTTL, cfg.CacheSweepInterval)
	collectorProfileCache := cache.NewWithSweep[*domain.CollectorProfile](cfg.CacheTTL, cfg.CacheSweepInterval)

	// --- Backing store ---
	var (
		auth         port.AuthProvider
		profiles     port.ProfileStore
		pickups      port.PickupStore
		transactions port.TransactionStore
		recycling    port.RecyclingStore
	)

	if cfg.UseSupabase && cfg.SupabaseURL != "" {
		logger.Info("using Supabase as data backend",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		resilienceCfg := resilience.Config{
			MaxRetries:          cfg.MaxRetries,
			InitialBackoff:      cfg.InitialBackoff,
			MaxConcurrency:      cfg.MaxConcurrency,
			BreakerMinRequests:  uint32(cfg.BreakerMinRequests),
			BreakerFailureRatio: cfg.BreakerFailureRatio,
			BreakerCooldown:     cfg.BreakerCooldown,
		}
		cb := resilience.NewCircuitBreaker("supabase", resilienceCfg)
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

		sb := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cb,
			resilienceCfg,
			metrics,
			logger,
		)
		auth, profiles, pickups, transactions, recycling = sb, sb, sb, sb, sb
	} else {
		logger.Warn("Supabase not configured, using the in-memory store")
		mem := memstore.New(cfg.SupabaseJWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, logger)
		auth, profiles, pickups, transactions, recycling = mem, mem, mem, mem, mem
	}

	// --- Sessions ---
	resolver := session.NewRoleResolver(profiles)
	sessions := session.NewManager(resolver, auth, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go sessions.Run(ctx)

	// --- Services ---
	authSvc := service.NewAuthService(auth, profiles, sessions, cfg.SupabaseJWTSecret, logger)
	dashboardSvc := service.NewDashboardService(
		profiles, pickups, transactions,
		userProfileCache, collectorProfileCache,
		cfg.UpcomingPickupsLimit, cfg.CollectorPickupsLimit, cfg.RecentTransactionsLimit,
		metrics, logger,
	)
	bookingSvc := service.NewBookingService(pickups, metrics, logger)
	walletSvc := service.NewWalletService(profiles, transactions, collectorProfileCache, metrics, logger)
	recyclingSvc := service.NewRecyclingService(recycling, profiles, userProfileCache, logger)
	guideSvc := service.NewGuideService(profiles)

	// --- Router ---
	router := handler.NewRouter(handler.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		Sessions:     sessions,
		Auth:         authSvc,
		Dashboard:    dashboardSvc,
		Booking:      bookingSvc,
		Wallet:       walletSvc,
		Recycling:    recyclingSvc,
		Guide:        guideSvc,
		Profiles:     profiles,
		Transactions: transactions,
	})

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

	<-ctx.Done()

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
