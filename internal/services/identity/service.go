// Package identity is the backing identity system: anonymous and provider sign-in,
// provider linking, and session management.
package identity

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/mcoot/playerhub/internal/dependencies/clock"
	"github.com/mcoot/playerhub/internal/dependencies/random"
	"github.com/mcoot/playerhub/internal/metrics"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/storage"
)

// Result is an authenticated account with a freshly issued session token
type Result struct {
	Account      *model.Account
	SessionToken string
	Session      *model.Session
	Created      bool // true when the account was created by this call
}

// Config holds configuration for the identity service
type Config struct {
	SessionDuration time.Duration
	TokenBytes      int
}

// DefaultConfig returns default identity configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 30 * 24 * time.Hour,
		TokenBytes:      32,
	}
}

// Service handles accounts, provider links and sessions
type Service struct {
	storage   storage.Storage
	clock     clock.Clock
	random    random.Random
	verifiers Verifiers
	metrics   metrics.Recorder
	logger    *slog.Logger

	sessionDuration time.Duration
	tokenBytes      int
}

// New creates a new identity Service
func New(store storage.Storage, clk clock.Clock, rnd random.Random, verifiers Verifiers, rec metrics.Recorder, cfg Config, logger *slog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = defaults.SessionDuration
	}
	if cfg.TokenBytes == 0 {
		cfg.TokenBytes = defaults.TokenBytes
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		storage:         store,
		clock:           clk,
		random:          rnd,
		verifiers:       verifiers,
		metrics:         rec,
		logger:          logger,
		sessionDuration: cfg.SessionDuration,
		tokenBytes:      cfg.TokenBytes,
	}
}

// SignInAnonymously creates a new account with no durable identity
func (s *Service) SignInAnonymously(ctx context.Context) (*Result, error) {
	now := s.clock.Now()
	account := &model.Account{
		ID:        model.PlayerID(s.random.ID()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.SaveAccount(ctx, account); err != nil {
		s.metrics.SignIn(string(model.ProviderAnonymous), metrics.ResultFailure)
		return nil, err
	}

	result, err := s.createSession(ctx, account)
	if err != nil {
		return nil, err
	}
	result.Created = true

	s.logger.Info("anonymous account created", slog.String("player_id", string(account.ID)))
	s.metrics.SignIn(string(model.ProviderAnonymous), metrics.ResultSuccess)
	return result, nil
}

// ResumeSession validates a session token and replaces it with a new one
func (s *Service) ResumeSession(ctx context.Context, token string) (*Result, error) {
	session, account, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := s.storage.DeleteSession(ctx, session.TokenHash); err != nil {
		return nil, err
	}
	return s.createSession(ctx, account)
}

// SignInWithProvider signs in with a provider access token, creating a durable account
// when the provider identity has never been seen
func (s *Service) SignInWithProvider(ctx context.Context, kind model.ProviderKind, accessToken string) (*Result, error) {
	result, err := s.signInWithProvider(ctx, kind, accessToken)
	if err != nil {
		s.metrics.SignIn(string(kind), metrics.ResultFailure)
		return nil, err
	}
	s.metrics.SignIn(string(kind), metrics.ResultSuccess)
	return result, nil
}

func (s *Service) signInWithProvider(ctx context.Context, kind model.ProviderKind, accessToken string) (*Result, error) {
	subject, err := s.verify(ctx, kind, accessToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accountForProvider(ctx, kind, subject)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return s.createSession(ctx, account)
	}

	now := s.clock.Now()
	account = &model.Account{
		ID:        model.PlayerID(s.random.ID()),
		Links:     []model.ProviderLink{{Kind: kind, Subject: subject, LinkedAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.BindProvider(ctx, kind, subject, account.ID); err != nil {
		if !errors.Is(err, model.ErrAlreadyLinked) {
			return nil, err
		}
		// Another sign-in with the same provider identity won the race; use its account
		winner, err := s.accountForProvider(ctx, kind, subject)
		if err != nil {
			return nil, err
		}
		if winner == nil {
			return nil, fmt.Errorf("provider %s bound without an account: %w", kind, model.ErrAccountNotFound)
		}
		return s.createSession(ctx, winner)
	}

	if err := s.storage.SaveAccount(ctx, account); err != nil {
		s.unbind(ctx, kind, subject)
		return nil, err
	}

	result, err := s.createSession(ctx, account)
	if err != nil {
		return nil, err
	}
	result.Created = true

	s.logger.Info("account created from provider",
		slog.String("player_id", string(account.ID)),
		slog.String("provider", string(kind)),
	)
	return result, nil
}

// accountForProvider returns the account bound to a provider identity, or nil if there is none.
// Index entries whose account no longer carries the link are cleaned up.
func (s *Service) accountForProvider(ctx context.Context, kind model.ProviderKind, subject string) (*model.Account, error) {
	playerID, err := s.storage.LookupProvider(ctx, kind, subject)
	if errors.Is(err, model.ErrProviderNotLinked) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	account, err := s.storage.GetAccount(ctx, playerID)
	if err != nil && !errors.Is(err, model.ErrAccountNotFound) {
		return nil, err
	}
	if err == nil {
		if link := account.Link(kind); link != nil && link.Subject == subject {
			return account, nil
		}
	}

	s.logger.Warn("removing stale provider binding",
		slog.String("provider", string(kind)),
		slog.String("player_id", string(playerID)),
	)
	s.unbind(ctx, kind, subject)
	return nil, nil
}

// LinkProvider attaches a provider identity to an existing account.
// Linking an identity that already belongs to another player fails with model.ErrAlreadyLinked
// and changes nothing.
func (s *Service) LinkProvider(ctx context.Context, playerID model.PlayerID, kind model.ProviderKind, accessToken string) (*model.Account, error) {
	if !kind.IsDurable() {
		return nil, fmt.Errorf("%w: %s cannot be linked", model.ErrInvalidProvider, kind)
	}

	subject, err := s.verify(ctx, kind, accessToken)
	if err != nil {
		return nil, err
	}

	account, err := s.storage.GetAccount(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if existing := account.Link(kind); existing != nil {
		if existing.Subject == subject {
			return account, nil
		}
		return nil, model.ErrProviderKindLinked
	}

	if err := s.storage.BindProvider(ctx, kind, subject, playerID); err != nil {
		if errors.Is(err, model.ErrAlreadyLinked) {
			s.metrics.LinkConflict(string(kind))
			s.logger.Info("link rejected, identity belongs to another player",
				slog.String("player_id", string(playerID)),
				slog.String("provider", string(kind)),
			)
		}
		return nil, err
	}

	now := s.clock.Now()
	account, err = s.storage.UpdateAccount(ctx, playerID, func(a *model.Account) error {
		if err := a.AddLink(model.ProviderLink{Kind: kind, Subject: subject, LinkedAt: now}); err != nil {
			return err
		}
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.releaseBinding(ctx, playerID, kind, subject)
		return nil, err
	}

	s.logger.Info("provider linked",
		slog.String("player_id", string(playerID)),
		slog.String("provider", string(kind)),
	)
	return account, nil
}

// UnlinkProvider detaches a provider from the account. The player id never changes;
// removing the last durable provider leaves an anonymous-only account.
func (s *Service) UnlinkProvider(ctx context.Context, playerID model.PlayerID, kind model.ProviderKind) (*model.Account, error) {
	var removed model.ProviderLink
	account, err := s.storage.UpdateAccount(ctx, playerID, func(a *model.Account) error {
		link, err := a.RemoveLink(kind)
		if err != nil {
			return err
		}
		removed = link
		a.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.unbind(ctx, kind, removed.Subject)

	s.logger.Info("provider unlinked",
		slog.String("player_id", string(playerID)),
		slog.String("provider", string(kind)),
		slog.Bool("has_primary_id", account.HasPrimaryID()),
	)
	return account, nil
}

// ValidateSession checks a session token and returns the session
func (s *Service) ValidateSession(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, model.ErrSessionNotFound
	}
	hash := HashToken(token)
	session, err := s.storage.GetSession(ctx, hash)
	if err != nil {
		return nil, err
	}

	if session.Expired(s.clock.Now()) {
		_ = s.storage.DeleteSession(ctx, hash)
		return nil, model.ErrSessionExpired
	}
	return session, nil
}

// Authenticate validates a session token and loads its account.
// A session outliving its account (deleted from another device) is removed and rejected.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Session, *model.Account, error) {
	session, err := s.ValidateSession(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	account, err := s.storage.GetAccount(ctx, session.PlayerID)
	if errors.Is(err, model.ErrAccountNotFound) {
		_ = s.storage.DeleteSession(ctx, session.TokenHash)
		return nil, nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return session, account, nil
}

// SignOut invalidates a session token
func (s *Service) SignOut(ctx context.Context, token string) error {
	return s.storage.DeleteSession(ctx, HashToken(token))
}

// GetAccount returns an account by player id
func (s *Service) GetAccount(ctx context.Context, playerID model.PlayerID) (*model.Account, error) {
	return s.storage.GetAccount(ctx, playerID)
}

// DeleteAccount removes the account, its provider bindings, its player data and the given session
func (s *Service) DeleteAccount(ctx context.Context, playerID model.PlayerID, token string) error {
	account, err := s.storage.GetAccount(ctx, playerID)
	if err != nil {
		return err
	}

	for _, link := range account.Links {
		if err := s.storage.UnbindProvider(ctx, link.Kind, link.Subject); err != nil {
			return err
		}
	}
	if err := s.storage.DeletePlayerData(ctx, playerID); err != nil {
		return err
	}
	if err := s.storage.DeleteAccount(ctx, playerID); err != nil {
		return err
	}
	if token != "" {
		_ = s.storage.DeleteSession(ctx, HashToken(token))
	}

	s.logger.Info("account deleted", slog.String("player_id", string(playerID)))
	return nil
}

// createSession issues a new session token for an account
func (s *Service) createSession(ctx context.Context, account *model.Account) (*Result, error) {
	token := s.random.Token(s.tokenBytes)
	now := s.clock.Now()

	session := &model.Session{
		TokenHash: HashToken(token),
		PlayerID:  account.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}
	if err := s.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	return &Result{
		Account:      account,
		SessionToken: token,
		Session:      session,
	}, nil
}

func (s *Service) verify(ctx context.Context, kind model.ProviderKind, accessToken string) (string, error) {
	verifier, ok := s.verifiers[kind]
	if !ok || !kind.IsDurable() {
		return "", fmt.Errorf("%w: %s", model.ErrInvalidProvider, kind)
	}
	return verifier.Verify(ctx, accessToken)
}

// releaseBinding undoes a binding made for a link that was not stored,
// unless the account carries that link after all (a concurrent identical link)
func (s *Service) releaseBinding(ctx context.Context, playerID model.PlayerID, kind model.ProviderKind, subject string) {
	account, err := s.storage.GetAccount(ctx, playerID)
	if err == nil {
		if link := account.Link(kind); link != nil && link.Subject == subject {
			return
		}
	}
	s.unbind(ctx, kind, subject)
}

// unbind removes an index entry on a best-effort basis
func (s *Service) unbind(ctx context.Context, kind model.ProviderKind, subject string) {
	if err := s.storage.UnbindProvider(ctx, kind, subject); err != nil {
		s.logger.Error("failed to remove provider binding",
			slog.String("provider", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}

// HashToken returns the storage key for a session token
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
