package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mcoot/playerhub/internal/dependencies/clock"
	"github.com/mcoot/playerhub/internal/dependencies/random"
	"github.com/mcoot/playerhub/internal/metrics"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/services/bootstrap"
	"github.com/mcoot/playerhub/internal/services/catalog"
	"github.com/mcoot/playerhub/internal/services/identity"
	"github.com/mcoot/playerhub/internal/services/ledger"
	"github.com/mcoot/playerhub/internal/services/purchase"
	"github.com/mcoot/playerhub/internal/sse"
	"github.com/mcoot/playerhub/internal/storage"
	"github.com/mcoot/playerhub/internal/storage/memory"
	postgresstorage "github.com/mcoot/playerhub/internal/storage/postgres"
	redisstorage "github.com/mcoot/playerhub/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage     storage.Storage
	StorageType string

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Catalog          *catalog.Store
	Ledger           *ledger.Ledger
	IdentityService  *identity.Service
	BootstrapService *bootstrap.Service
	PurchaseService  *purchase.Service
	HubManager       *sse.HubManager

	// Observability
	Metrics  *metrics.Collector
	Registry *prometheus.Registry

	unsubscribe []func()
	closeStore  func() error
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds Postgres connection settings (required if StorageType is "postgres")
	PostgresConfig *postgresstorage.Config
	// IdentityConfig holds session settings; zero values fall back to identity.DefaultConfig()
	IdentityConfig identity.Config
	// BootstrapConfig holds the starter grant (optional)
	BootstrapConfig *bootstrap.Config
	// EconomySource supplies the economy configuration
	// If nil, catalog.DefaultConfig() is served
	EconomySource catalog.Source
	// ProviderSecrets holds the token signing secret per provider kind.
	// Provider kinds without a secret cannot be used to sign in or link.
	ProviderSecrets map[model.ProviderKind][]byte
	// ProviderIssuer is the required token issuer; empty accepts any
	ProviderIssuer string
}

// New creates a new application with all dependencies wired and the economy catalog synced
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, closeStore, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	clk := clock.New()
	verifiers := identity.Verifiers{}
	for kind, secret := range cfg.ProviderSecrets {
		verifiers[kind] = identity.NewJWTVerifier(secret, cfg.ProviderIssuer, clk)
	}

	source := cfg.EconomySource
	if source == nil {
		source = catalog.StaticSource{Config: catalog.DefaultConfig()}
	}

	bootstrapCfg := bootstrap.DefaultConfig()
	if cfg.BootstrapConfig != nil {
		bootstrapCfg = *cfg.BootstrapConfig
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := newWithDependencies(dependencies{
		store:       store,
		storageType: storageTypeOrDefault(cfg.StorageType),
		clock:       clk,
		random:      random.New(),
		verifiers:   verifiers,
		source:      source,
		identityCfg: cfg.IdentityConfig,
		bootstrap:   bootstrapCfg,
		registry:    registry,
		logger:      logger,
	})
	app.closeStore = closeStore

	if err := app.Catalog.Sync(ctx); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("sync economy config: %w", err)
	}
	return app, nil
}

func storageTypeOrDefault(storageType string) string {
	if storageType == "" {
		return StorageTypeMemory
	}
	return storageType
}

func newStorage(ctx context.Context, cfg Config) (storage.Storage, func() error, error) {
	switch storageTypeOrDefault(cfg.StorageType) {
	case StorageTypeMemory:
		return memory.New(), func() error { return nil }, nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, nil, err
		}
		return redisStore, redisStore.Close, nil
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		pgStore, err := postgresstorage.New(ctx, *cfg.PostgresConfig)
		if err != nil {
			return nil, nil, err
		}
		return pgStore, pgStore.Close, nil
	default:
		return nil, nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}
}

type dependencies struct {
	store       storage.Storage
	storageType string
	clock       clock.Clock
	random      random.Random
	verifiers   identity.Verifiers
	source      catalog.Source
	identityCfg identity.Config
	bootstrap   bootstrap.Config
	registry    *prometheus.Registry
	logger      *slog.Logger
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(deps dependencies) *App {
	collector := metrics.NewCollector(deps.registry)

	catalogStore := catalog.New(deps.source, deps.clock, deps.logger)
	economyLedger := ledger.New(deps.store, catalogStore, deps.clock, deps.logger)
	identityService := identity.New(deps.store, deps.clock, deps.random, deps.verifiers, collector, deps.identityCfg, deps.logger)
	bootstrapService := bootstrap.New(deps.store, economyLedger, collector, deps.bootstrap, deps.logger)
	purchaseService := purchase.New(catalogStore, economyLedger, collector, deps.logger)
	hubManager := sse.NewHubManager(deps.logger)
	broadcaster := sse.NewBroadcaster(hubManager, deps.logger)

	app := &App{
		Storage:          deps.store,
		StorageType:      deps.storageType,
		Clock:            deps.clock,
		Random:           deps.random,
		Catalog:          catalogStore,
		Ledger:           economyLedger,
		IdentityService:  identityService,
		BootstrapService: bootstrapService,
		PurchaseService:  purchaseService,
		HubManager:       hubManager,
		Metrics:          collector,
		Registry:         deps.registry,
		closeStore:       func() error { return nil },
	}
	app.unsubscribe = append(app.unsubscribe, economyLedger.OnUpdate(broadcaster.HandleEconomyUpdate))
	return app
}

// Close releases observers, event streams and the storage connection
func (a *App) Close() error {
	for _, unsubscribe := range a.unsubscribe {
		unsubscribe()
	}
	a.unsubscribe = nil
	a.HubManager.Close()
	return a.closeStore()
}
