// Package game ties the client together: the consolidation engine drives the bootstrap
// call, and economy responses are mirrored into the local cache.
package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/mcoot/playerhub/internal/client/consolidation"
	"github.com/mcoot/playerhub/internal/client/economycache"
	"github.com/mcoot/playerhub/internal/dependencies/random"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/services/catalog"
)

// Backend is the player and economy remote procedure surface
type Backend interface {
	HandlePlayerSignIn(ctx context.Context, sessionToken string) (model.SignInOutcome, error)
	HandleNewPlayerNameEntry(ctx context.Context, sessionToken, name string) (model.PlayerProfile, error)
	GetPlayerEconomyData(ctx context.Context, sessionToken string) (model.EconomySnapshot, error)
	VirtualPurchase(ctx context.Context, sessionToken, purchaseID, idempotencyKey string) (model.EconomySnapshot, error)
}

// Streamer pushes economy updates for the session's player
type Streamer interface {
	StreamEconomy(ctx context.Context, sessionToken string, fn func(model.EconomyUpdate)) error
}

// Session is a signed-in game client
type Session struct {
	engine  *consolidation.Engine
	backend Backend
	catalog *catalog.Store
	cache   *economycache.Cache
	random  random.Random
	logger  *slog.Logger

	mu           sync.Mutex
	profile      *model.PlayerProfile
	isNewPlayer  bool
	bootstrapErr error

	unsubscribe []func()
}

// New creates a Session and subscribes it to the engine's sign-in events
func New(engine *consolidation.Engine, backend Backend, cat *catalog.Store, cache *economycache.Cache, rnd random.Random, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Session{
		engine:  engine,
		backend: backend,
		catalog: cat,
		cache:   cache,
		random:  rnd,
		logger:  logger,
	}
	s.unsubscribe = []func(){
		engine.OnSignedIn(s.handleSignedIn),
		engine.OnSignedOut(s.handleSignedOut),
	}
	return s
}

// Close unregisters from the engine
func (s *Session) Close() {
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil
}

// Engine returns the consolidation engine
func (s *Session) Engine() *consolidation.Engine {
	return s.engine
}

// Cache returns the local economy mirror
func (s *Session) Cache() *economycache.Cache {
	return s.cache
}

// Profile returns the profile from the last bootstrap
func (s *Session) Profile() (model.PlayerProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return model.PlayerProfile{}, false
	}
	return *s.profile, true
}

// IsNewPlayer reports whether the last bootstrap created the player
func (s *Session) IsNewPlayer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isNewPlayer
}

// BootstrapErr returns the error from the last automatic bootstrap, if it failed
func (s *Session) BootstrapErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bootstrapErr
}

func (s *Session) handleSignedIn(ctx context.Context, ev consolidation.SignedIn) {
	if _, err := s.bootstrap(ctx, ev.Identity.SessionToken); err != nil {
		s.logger.Error("player bootstrap failed",
			slog.String("player_id", string(ev.Identity.PlayerID)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Session) handleSignedOut(_ context.Context, _ consolidation.SignedOut) {
	s.mu.Lock()
	s.profile = nil
	s.isNewPlayer = false
	s.bootstrapErr = nil
	s.mu.Unlock()
	s.cache.Clear()
}

// Bootstrap runs the sign-in bootstrap for the current player. It runs automatically after
// every sign-in; calling it again is safe and takes the returning player path.
func (s *Session) Bootstrap(ctx context.Context) (model.SignInOutcome, error) {
	token, err := s.sessionToken()
	if err != nil {
		return model.SignInOutcome{}, err
	}
	return s.bootstrap(ctx, token)
}

func (s *Session) bootstrap(ctx context.Context, token string) (model.SignInOutcome, error) {
	outcome, err := s.backend.HandlePlayerSignIn(ctx, token)

	s.mu.Lock()
	s.bootstrapErr = err
	if err == nil {
		profile := outcome.Profile
		s.profile = &profile
		s.isNewPlayer = outcome.IsNewPlayer
	}
	s.mu.Unlock()

	if err != nil {
		return model.SignInOutcome{}, err
	}

	if !s.catalog.IsSynced() {
		if err := s.catalog.Sync(ctx); err != nil {
			s.logger.Warn("economy config sync failed", slog.String("error", err.Error()))
		}
	}

	s.cache.Replace(ctx, outcome.Economy)
	return outcome, nil
}

// Rename sets the display name. Invalid names are rejected locally.
func (s *Session) Rename(ctx context.Context, name string) (model.PlayerProfile, error) {
	if err := model.ValidateDisplayName(name); err != nil {
		return model.PlayerProfile{}, err
	}
	token, err := s.sessionToken()
	if err != nil {
		return model.PlayerProfile{}, err
	}

	profile, err := s.backend.HandleNewPlayerNameEntry(ctx, token, name)
	if err != nil {
		return model.PlayerProfile{}, err
	}

	s.mu.Lock()
	s.profile = &profile
	s.mu.Unlock()
	return profile, nil
}

// CanAfford checks a purchase against the cached balances
func (s *Session) CanAfford(purchaseID string) (bool, error) {
	def, err := s.catalog.Purchase(purchaseID)
	if err != nil {
		return false, err
	}
	return s.cache.CanAfford(def), nil
}

// Purchase performs a virtual purchase. Purchases the cached balances cannot cover fail
// with model.ErrInsufficientFunds without calling the server.
func (s *Session) Purchase(ctx context.Context, purchaseID string) (model.EconomySnapshot, error) {
	token, err := s.sessionToken()
	if err != nil {
		return model.EconomySnapshot{}, err
	}
	affordable, err := s.CanAfford(purchaseID)
	if err != nil {
		return model.EconomySnapshot{}, err
	}
	if !affordable {
		return model.EconomySnapshot{}, model.ErrInsufficientFunds
	}

	snapshot, err := s.backend.VirtualPurchase(ctx, token, purchaseID, s.random.ID())
	if err != nil {
		if errors.Is(err, model.ErrInsufficientFunds) {
			// The cache was stale
			if _, refreshErr := s.Refresh(ctx); refreshErr != nil {
				s.logger.Warn("economy refresh failed", slog.String("error", refreshErr.Error()))
			}
		}
		return model.EconomySnapshot{}, err
	}

	s.cache.Replace(ctx, snapshot)
	return snapshot, nil
}

// Refresh reloads the economy from the server into the cache
func (s *Session) Refresh(ctx context.Context) (model.EconomySnapshot, error) {
	token, err := s.sessionToken()
	if err != nil {
		return model.EconomySnapshot{}, err
	}
	snapshot, err := s.backend.GetPlayerEconomyData(ctx, token)
	if err != nil {
		return model.EconomySnapshot{}, err
	}
	s.cache.Replace(ctx, snapshot)
	return snapshot, nil
}

// Watch applies pushed economy updates to the cache until ctx is done.
// The backend must implement Streamer.
func (s *Session) Watch(ctx context.Context) error {
	streamer, ok := s.backend.(Streamer)
	if !ok {
		return errors.New("backend does not support economy push")
	}
	token, err := s.sessionToken()
	if err != nil {
		return err
	}
	return streamer.StreamEconomy(ctx, token, func(update model.EconomyUpdate) {
		s.cache.Replace(ctx, update.Snapshot)
	})
}

func (s *Session) sessionToken() (string, error) {
	status := s.engine.Status()
	if !status.Authenticated() {
		return "", model.ErrNotAuthenticated
	}
	return status.Identity.SessionToken, nil
}
