// Package bootstrap creates a player's profile and starting economy on first sign-in
// and loads them on every later sign-in.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/playerhub/internal/metrics"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/services/catalog"
	"github.com/mcoot/playerhub/internal/services/ledger"
	"github.com/mcoot/playerhub/internal/storage"
)

// StarterGrantID identifies the one-time starter inventory grant
const StarterGrantID = "starter-grant"

// Config holds configuration for the bootstrap service
type Config struct {
	// StarterItems is granted once to every new player
	StarterItems map[string]int64
}

// DefaultConfig returns the default starter grant of three health potions
func DefaultConfig() Config {
	return Config{
		StarterItems: map[string]int64{catalog.ItemHealthPotion: 3},
	}
}

// Service handles player sign-in bootstrap and profile changes
type Service struct {
	storage storage.Storage
	ledger  *ledger.Ledger
	metrics metrics.Recorder
	logger  *slog.Logger
	cfg     Config
}

// New creates a new bootstrap Service
func New(store storage.Storage, l *ledger.Ledger, rec metrics.Recorder, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if cfg.StarterItems == nil {
		cfg.StarterItems = DefaultConfig().StarterItems
	}
	return &Service{
		storage: store,
		ledger:  l,
		metrics: rec,
		logger:  logger,
		cfg:     cfg,
	}
}

// HandleSignIn loads or creates the player's profile and economy.
//
// It is safe to call repeatedly and concurrently for the same player: only the caller that
// creates the profile reports a new player, and the starter grant is applied at most once.
func (s *Service) HandleSignIn(ctx context.Context, playerID model.PlayerID) (*model.SignInOutcome, error) {
	log := s.logger.With(slog.String("player_id", string(playerID)))

	profile, found, err := s.loadProfile(ctx, playerID)
	if err != nil {
		log.Error("failed to load player profile", slog.String("error", err.Error()))
		return nil, err
	}
	if found {
		return s.returning(ctx, playerID, profile)
	}

	profile = model.NewPlayerProfile()
	encoded, err := json.Marshal(profile)
	if err != nil {
		return nil, err
	}

	created, err := s.storage.SetDataIfAbsent(ctx, playerID, storage.KeyPlayerData, string(encoded))
	if err != nil {
		log.Error("failed to save new player profile", slog.String("error", err.Error()))
		return nil, err
	}
	if !created {
		// A concurrent sign-in created the profile first
		profile, _, err = s.loadProfile(ctx, playerID)
		if err != nil {
			return nil, err
		}
		return s.returning(ctx, playerID, profile)
	}

	if err := s.storage.SetData(ctx, playerID, storage.KeyPlayerName, profile.DisplayName); err != nil {
		log.Warn("failed to save legacy player name", slog.String("error", err.Error()))
	}

	economy, err := s.seed(ctx, playerID)
	if err != nil {
		log.Error("failed to seed starter inventory", slog.String("error", err.Error()))
		s.metrics.SeedFailed()
		// The profile stays; the grant is retried on the next sign-in
		economy, err = s.ledger.Snapshot(ctx, playerID)
		if err != nil {
			return nil, err
		}
	}

	log.Info("new player bootstrapped")
	s.metrics.Bootstrapped(true)

	return &model.SignInOutcome{
		Profile:     profile,
		Economy:     economy,
		IsNewPlayer: true,
	}, nil
}

// returning completes a sign-in for a player whose profile exists
func (s *Service) returning(ctx context.Context, playerID model.PlayerID, profile model.PlayerProfile) (*model.SignInOutcome, error) {
	// Re-attempting the grant repairs a seed that failed on an earlier sign-in; it never duplicates
	economy, err := s.seed(ctx, playerID)
	if err != nil {
		return nil, err
	}

	s.metrics.Bootstrapped(false)
	return &model.SignInOutcome{
		Profile:     profile,
		Economy:     economy,
		IsNewPlayer: false,
	}, nil
}

func (s *Service) seed(ctx context.Context, playerID model.PlayerID) (model.EconomySnapshot, error) {
	snapshot, _, err := s.ledger.Grant(ctx, playerID, StarterGrantID, s.cfg.StarterItems)
	return snapshot, err
}

// GetProfile returns the player's profile
func (s *Service) GetProfile(ctx context.Context, playerID model.PlayerID) (model.PlayerProfile, error) {
	profile, found, err := s.loadProfile(ctx, playerID)
	if err != nil {
		return model.PlayerProfile{}, err
	}
	if !found {
		return model.PlayerProfile{}, model.ErrPlayerNotFound
	}
	return profile, nil
}

// HandleNewPlayerNameEntry validates and stores a new display name
func (s *Service) HandleNewPlayerNameEntry(ctx context.Context, playerID model.PlayerID, newName string) (string, error) {
	if err := model.ValidateDisplayName(newName); err != nil {
		return "", err
	}

	_, err := s.storage.UpdateData(ctx, playerID, storage.KeyPlayerData, func(current string, found bool) (string, error) {
		if !found {
			return "", model.ErrPlayerNotFound
		}
		profile, err := decodeProfile(current)
		if err != nil {
			return "", err
		}
		profile.DisplayName = newName
		encoded, err := json.Marshal(profile)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	})
	if err != nil {
		return "", err
	}

	if err := s.storage.SetData(ctx, playerID, storage.KeyPlayerName, newName); err != nil {
		s.logger.Warn("failed to save legacy player name",
			slog.String("player_id", string(playerID)),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("player renamed", slog.String("player_id", string(playerID)))
	return newName, nil
}

// loadProfile distinguishes a missing profile (found=false) from one that cannot be read (error)
func (s *Service) loadProfile(ctx context.Context, playerID model.PlayerID) (model.PlayerProfile, bool, error) {
	value, found, err := s.storage.TryGetData(ctx, playerID, storage.KeyPlayerData)
	if err != nil {
		return model.PlayerProfile{}, false, err
	}
	if !found {
		return model.PlayerProfile{}, false, nil
	}
	profile, err := decodeProfile(value)
	if err != nil {
		return model.PlayerProfile{}, false, err
	}
	return profile, true, nil
}

func decodeProfile(value string) (model.PlayerProfile, error) {
	var profile model.PlayerProfile
	if err := json.Unmarshal([]byte(value), &profile); err != nil {
		return model.PlayerProfile{}, &model.DataFailure{Key: storage.KeyPlayerData, Err: err}
	}
	if profile.Experience < 0 {
		return model.PlayerProfile{}, &model.DataFailure{
			Key: storage.KeyPlayerData,
			Err: fmt.Errorf("negative experience %d", profile.Experience),
		}
	}
	return profile, nil
}
