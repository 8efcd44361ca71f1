// Package catalog holds the synced economy configuration: currencies and purchase definitions.
package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/playerhub/internal/dependencies/clock"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/notify"
)

// Synced is delivered to observers after each successful sync
type Synced struct {
	Config   model.EconomyConfig
	SyncedAt time.Time
}

// Store caches the economy configuration.
// Sync is the only writer; lookups are safe from any goroutine.
type Store struct {
	source Source
	clock  clock.Clock
	logger *slog.Logger

	syncMu sync.Mutex // serializes Sync calls

	mu        sync.RWMutex
	config    model.EconomyConfig
	purchases map[string]model.PurchaseDefinition
	syncedAt  time.Time
	synced    bool

	onSynced notify.Registry[Synced]
}

// New creates an unsynced Store reading from source
func New(source Source, clk clock.Clock, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Store{
		source: source,
		clock:  clk,
		logger: logger,
	}
}

// Sync loads the configuration from the source and replaces the cached copy.
// Observers are notified once the new configuration is visible to readers.
func (s *Store) Sync(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	cfg, err := s.source.Load(ctx)
	if err != nil {
		s.logger.Error("economy config sync failed", slog.String("error", err.Error()))
		return fmt.Errorf("sync economy config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		s.logger.Error("economy config rejected", slog.String("error", err.Error()))
		return fmt.Errorf("sync economy config: %w", err)
	}

	purchases := make(map[string]model.PurchaseDefinition, len(cfg.Purchases))
	for _, p := range cfg.Purchases {
		purchases[p.ID] = p
	}
	now := s.clock.Now()

	s.mu.Lock()
	s.config = cfg
	s.purchases = purchases
	s.syncedAt = now
	s.synced = true
	s.mu.Unlock()

	s.logger.Info("economy config synced",
		slog.Int("currencies", len(cfg.Currencies)),
		slog.Int("purchases", len(cfg.Purchases)),
	)

	s.onSynced.Publish(ctx, Synced{Config: cfg, SyncedAt: now})
	return nil
}

// IsSynced reports whether at least one sync has completed
func (s *Store) IsSynced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

// Purchase returns the definition for a purchase id
func (s *Store) Purchase(id string) (model.PurchaseDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.synced {
		return model.PurchaseDefinition{}, model.ErrConfigNotSynced
	}
	def, ok := s.purchases[id]
	if !ok {
		return model.PurchaseDefinition{}, fmt.Errorf("%w: %s", model.ErrUnknownPurchase, id)
	}
	return def, nil
}

// Config returns a copy of the current configuration
func (s *Store) Config() (model.EconomyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.synced {
		return model.EconomyConfig{}, model.ErrConfigNotSynced
	}
	return model.EconomyConfig{
		Currencies: slices.Clone(s.config.Currencies),
		Purchases:  slices.Clone(s.config.Purchases),
	}, nil
}

// InitialBalances returns the starting balance for each currency
func (s *Store) InitialBalances() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.synced {
		return nil, model.ErrConfigNotSynced
	}
	return s.config.InitialBalances(), nil
}

// SyncedAt returns the time of the last successful sync
func (s *Store) SyncedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncedAt
}

// OnSynced registers an observer of completed syncs
func (s *Store) OnSynced(h func(ctx context.Context, ev Synced)) (unsubscribe func()) {
	return s.onSynced.Subscribe(h)
}
