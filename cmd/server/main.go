package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/mcoot/playerhub/internal/api"
	"github.com/mcoot/playerhub/internal/api/middleware"
	"github.com/mcoot/playerhub/internal/config"
	"github.com/mcoot/playerhub/internal/factory"
	"github.com/mcoot/playerhub/internal/metrics"
	"github.com/mcoot/playerhub/internal/services/catalog"
	"github.com/mcoot/playerhub/internal/services/identity"
	postgresstorage "github.com/mcoot/playerhub/internal/storage/postgres"
	redisstorage "github.com/mcoot/playerhub/internal/storage/redis"
)

const hubCleanupInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Build factory config from environment
	factoryCfg := factory.Config{
		Logger:          logger,
		StorageType:     cfg.StorageType,
		IdentityConfig:  identity.Config{SessionDuration: cfg.SessionDuration},
		ProviderSecrets: cfg.ProviderSecrets(),
		ProviderIssuer:  cfg.ProviderIssuer,
	}

	switch cfg.StorageType {
	case config.StorageRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	case config.StoragePostgres:
		pgCfg := postgresstorage.DefaultConfig()
		pgCfg.URL = cfg.PostgresURL
		factoryCfg.PostgresConfig = &pgCfg
	}

	if cfg.EconomyConfigPath != "" {
		factoryCfg.EconomySource = catalog.FileSource{Path: cfg.EconomyConfigPath}
	}

	if len(factoryCfg.ProviderSecrets) == 0 {
		logger.Warn("no provider secrets configured, only anonymous sign-in is available")
	}

	// Create application factory
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	app, err := factory.New(startCtx, factoryCfg)
	cancelStart()
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()

	var limiter *middleware.RateLimiter
	if cfg.AuthRateLimit > 0 {
		limiterCfg := middleware.DefaultRateLimiterConfig()
		limiterCfg.Rate = rate.Limit(cfg.AuthRateLimit)
		limiterCfg.Burst = cfg.AuthRateBurst
		limiterCfg.TrustForwardedFor = cfg.TrustProxyHeaders
		limiter = middleware.NewRateLimiter(limiterCfg, logger)
		defer limiter.Stop()
	}

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:           logger,
		IdentityService:  app.IdentityService,
		BootstrapService: app.BootstrapService,
		PurchaseService:  app.PurchaseService,
		Ledger:           app.Ledger,
		Catalog:          app.Catalog,
		HubManager:       app.HubManager,
		Metrics:          app.Metrics,
		MetricsHandler:   metrics.Handler(app.Registry),
		RateLimiter:      limiter,
		StorageType:      app.StorageType,
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Addr = cfg.Addr()
	server := api.NewServer(router, serverConfig, logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go cleanupHubs(ctx, app, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", app.StorageType),
	)

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

// cleanupHubs removes event hubs whose players have disconnected
func cleanupHubs(ctx context.Context, app *factory.App, logger *slog.Logger) {
	ticker := time.NewTicker(hubCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := app.HubManager.CleanupEmptyHubs(); n > 0 {
				logger.Debug("removed idle event hubs", slog.Int("count", n))
			}
		}
	}
}
