// Package consolidation owns the client's authentication state machine and decides
// whether a provider signs in fresh or links to the current player.
package consolidation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/mcoot/playerhub/internal/client/session"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/notify"
)

// Engine is the identity consolidation engine.
//
// Provider and backend calls are made without holding the engine lock. Every state change
// bumps a version; a call's result is committed only if the version it started from is
// still current, or if the result belongs to the player that is now signed in. Otherwise the
// call fails with model.ErrStateChanged and the state is left alone.
type Engine struct {
	backend Backend
	store   session.Store
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	provider model.ProviderKind
	identity model.PlayerIdentity
	version  uint64

	signedIn  notify.Registry[SignedIn]
	signedOut notify.Registry[SignedOut]
}

// New creates an engine in the Unauthenticated state
func New(backend Backend, store session.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		backend: backend,
		store:   store,
		logger:  logger,
	}
}

// Status returns the current state
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	return Status{State: e.state, Provider: e.provider, Identity: e.identity}
}

// OnSignedIn registers fn to be called after each transition out of Unauthenticated
func (e *Engine) OnSignedIn(fn func(ctx context.Context, ev SignedIn)) (unsubscribe func()) {
	return e.signedIn.Subscribe(fn)
}

// OnSignedOut registers fn to be called after each transition back to Unauthenticated
func (e *Engine) OnSignedOut(fn func(ctx context.Context, ev SignedOut)) (unsubscribe func()) {
	return e.signedOut.Subscribe(fn)
}

// Start silently resumes the persisted session, if there is one.
// It reports false with no error when there is nothing to resume. A session the backend
// rejects is cleared from the store and its error returned.
func (e *Engine) Start(ctx context.Context) (bool, error) {
	status, version := e.snapshot()
	if status.Authenticated() {
		return false, model.ErrAlreadyAuthenticated
	}

	rec := e.loadSession()
	if rec == nil {
		return false, nil
	}

	result, err := e.backend.ResumeSession(ctx, rec.SessionToken)
	if err != nil {
		if isSessionRejected(err) {
			e.logger.Info("persisted session rejected, clearing", slog.String("player_id", string(rec.PlayerID)))
			e.clearStore()
		}
		return false, err
	}

	if err := e.commitSignIn(ctx, version, result, "", true); err != nil {
		return false, err
	}
	return true, nil
}

// SignInAnonymously signs in without a durable identity.
// A persisted anonymous session is resumed rather than creating a second account; a persisted
// durable session fails with model.ErrDurableIdentityExists.
func (e *Engine) SignInAnonymously(ctx context.Context) (model.PlayerIdentity, error) {
	status, version := e.snapshot()
	if status.Authenticated() {
		return model.PlayerIdentity{}, model.ErrAlreadyAuthenticated
	}

	if rec := e.loadSession(); rec != nil {
		if rec.HasPrimaryID {
			return model.PlayerIdentity{}, model.ErrDurableIdentityExists
		}

		result, err := e.backend.ResumeSession(ctx, rec.SessionToken)
		switch {
		case err == nil:
			if err := e.commitSignIn(ctx, version, result, "", true); err != nil {
				return model.PlayerIdentity{}, err
			}
			return result, nil
		case isSessionRejected(err):
			e.logger.Info("persisted anonymous session rejected, creating a new account")
			e.clearStore()
		default:
			return model.PlayerIdentity{}, err
		}
	}

	result, err := e.backend.SignInAnonymously(ctx)
	if err != nil {
		return model.PlayerIdentity{}, err
	}
	if err := e.commitSignIn(ctx, version, result, "", false); err != nil {
		return model.PlayerIdentity{}, err
	}
	return result, nil
}

// SignInOrLinkWithProvider signs in with p when unauthenticated, links p to the current
// player when it is not linked yet, and otherwise does nothing.
// A link conflict (model.ErrAlreadyLinked) leaves the state unchanged.
func (e *Engine) SignInOrLinkWithProvider(ctx context.Context, p Provider) (Outcome, error) {
	status, version := e.snapshot()
	kind := p.Kind()

	switch {
	case !status.Authenticated():
		result, err := p.SignIn(ctx)
		if err != nil {
			return 0, err
		}
		if err := e.commitSignIn(ctx, version, result, kind, false); err != nil {
			return 0, err
		}
		return OutcomeSignedIn, nil

	case !status.Identity.IsLinked(kind):
		result, err := p.Link(ctx, status.Identity.SessionToken)
		if err != nil {
			if errors.Is(err, model.ErrAlreadyLinked) {
				e.logger.Warn("provider identity belongs to another player",
					slog.String("player_id", string(status.Identity.PlayerID)),
					slog.String("provider", string(kind)),
				)
			}
			return 0, err
		}
		if err := e.commitUpdate(version, result, func(current Status) (State, model.ProviderKind) {
			return FullyConsolidated, current.Provider
		}); err != nil {
			return 0, err
		}
		return OutcomeLinked, nil

	default:
		return OutcomeAlreadyConsolidated, nil
	}
}

// UnlinkProvider removes p from the current player. The player id is kept; once no durable
// provider remains the session is anonymous again.
func (e *Engine) UnlinkProvider(ctx context.Context, p Provider) (model.PlayerIdentity, error) {
	status, version := e.snapshot()
	if !status.Authenticated() {
		return model.PlayerIdentity{}, model.ErrNotAuthenticated
	}
	kind := p.Kind()
	if !status.Identity.IsLinked(kind) {
		return model.PlayerIdentity{}, model.ErrProviderNotLinked
	}

	result, err := p.Unlink(ctx, status.Identity.SessionToken)
	if err != nil {
		return model.PlayerIdentity{}, err
	}

	err = e.commitUpdate(version, result, func(current Status) (State, model.ProviderKind) {
		switch {
		case !result.HasPrimaryID:
			return AnonymousSession, ""
		case current.State == ProviderLinked && current.Provider == kind:
			return FullyConsolidated, ""
		default:
			return current.State, current.Provider
		}
	})
	if err != nil {
		return model.PlayerIdentity{}, err
	}
	return e.Status().Identity, nil
}

// SignOut returns to Unauthenticated. With clearSession the persisted session is discarded
// and the session is also ended on the backend; without it the session can be resumed later.
// The local state is signed out even when ending the backend session fails.
func (e *Engine) SignOut(ctx context.Context, clearSession bool) error {
	e.mu.Lock()
	status := e.statusLocked()
	if status.Authenticated() {
		e.resetLocked()
	}
	if clearSession {
		e.clearStoreLocked()
	}
	e.mu.Unlock()

	if !status.Authenticated() {
		return nil
	}

	e.logger.Info("signed out",
		slog.String("player_id", string(status.Identity.PlayerID)),
		slog.Bool("cleared_session", clearSession),
	)
	e.signedOut.Publish(ctx, SignedOut{PlayerID: status.Identity.PlayerID})

	if clearSession {
		return e.backend.SignOut(ctx, status.Identity.SessionToken)
	}
	return nil
}

// DeleteAccount deletes the signed-in player on the backend, then signs out and clears the
// persisted session. On failure the state is unchanged.
func (e *Engine) DeleteAccount(ctx context.Context) error {
	status, version := e.snapshot()
	if !status.Authenticated() {
		return model.ErrNotAuthenticated
	}

	if err := e.backend.DeleteAccount(ctx, status.Identity.SessionToken); err != nil {
		return err
	}

	e.mu.Lock()
	if e.version == version || e.identity.PlayerID == status.Identity.PlayerID {
		e.resetLocked()
	}
	e.clearStoreLocked()
	e.mu.Unlock()

	e.logger.Info("account deleted", slog.String("player_id", string(status.Identity.PlayerID)))
	e.signedOut.Publish(ctx, SignedOut{PlayerID: status.Identity.PlayerID, Deleted: true})
	return nil
}

// ClearSessionToken discards the persisted session. Only valid while signed out.
func (e *Engine) ClearSessionToken() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Unauthenticated {
		return model.ErrAlreadyAuthenticated
	}
	e.clearStoreLocked()
	return nil
}

func (e *Engine) snapshot() (Status, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked(), e.version
}

// commitSignIn applies the result of a sign-in or resume. kind is empty for anonymous sessions.
func (e *Engine) commitSignIn(ctx context.Context, version uint64, result model.PlayerIdentity, kind model.ProviderKind, resumed bool) error {
	e.mu.Lock()
	if e.version != version && e.identity.PlayerID != result.PlayerID {
		e.mu.Unlock()
		e.logger.Warn("discarding sign-in that raced a state change", slog.String("player_id", string(result.PlayerID)))
		if err := e.backend.SignOut(ctx, result.SessionToken); err != nil {
			e.logger.Warn("failed to end discarded session", slog.String("error", err.Error()))
		}
		return model.ErrStateChanged
	}

	wasSignedOut := e.state == Unauthenticated
	if wasSignedOut {
		e.state, e.provider = signInState(kind, result)
	}
	e.identity = result
	e.version++
	e.saveStoreLocked()
	status := e.statusLocked()
	e.mu.Unlock()

	if !wasSignedOut {
		return nil
	}

	e.logger.Info("signed in",
		slog.String("player_id", string(result.PlayerID)),
		slog.String("state", status.State.String()),
		slog.String("provider", string(kind)),
		slog.Bool("resumed", resumed),
	)
	e.signedIn.Publish(ctx, SignedIn{Identity: result, Provider: kind, Resumed: resumed})
	return nil
}

// commitUpdate applies a link or unlink result for the signed-in player.
// Link operations do not issue tokens, so the current session token is kept.
func (e *Engine) commitUpdate(version uint64, result model.PlayerIdentity, next func(Status) (State, model.ProviderKind)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Unauthenticated || e.identity.PlayerID != result.PlayerID {
		return model.ErrStateChanged
	}
	if e.version != version {
		e.logger.Debug("applying result for the same player after a state change",
			slog.String("player_id", string(result.PlayerID)))
	}

	e.state, e.provider = next(e.statusLocked())
	e.identity = model.NewPlayerIdentity(result.PlayerID, e.identity.SessionToken, result.LinkedProviders)
	e.version++
	e.saveStoreLocked()
	return nil
}

func signInState(kind model.ProviderKind, result model.PlayerIdentity) (State, model.ProviderKind) {
	switch {
	case kind != "":
		return ProviderLinked, kind
	case result.HasPrimaryID:
		return FullyConsolidated, ""
	default:
		return AnonymousSession, ""
	}
}

func (e *Engine) resetLocked() {
	e.state = Unauthenticated
	e.provider = ""
	e.identity = model.PlayerIdentity{}
	e.version++
}

func (e *Engine) loadSession() *session.Record {
	rec, err := e.store.Load()
	if err != nil {
		var dataErr *model.DataFailure
		if errors.As(err, &dataErr) {
			e.logger.Warn("persisted session is unreadable, clearing", slog.String("error", err.Error()))
			e.clearStore()
		} else {
			e.logger.Warn("failed to load persisted session", slog.String("error", err.Error()))
		}
		return nil
	}
	if rec == nil || rec.SessionToken == "" {
		return nil
	}
	return rec
}

func (e *Engine) saveStoreLocked() {
	if err := e.store.Save(session.RecordFromIdentity(e.identity)); err != nil {
		e.logger.Warn("failed to persist session", slog.String("error", err.Error()))
	}
}

func (e *Engine) clearStore() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearStoreLocked()
}

func (e *Engine) clearStoreLocked() {
	if err := e.store.Clear(); err != nil {
		e.logger.Warn("failed to clear persisted session", slog.String("error", err.Error()))
	}
}

func isSessionRejected(err error) bool {
	return errors.Is(err, model.ErrSessionNotFound) ||
		errors.Is(err, model.ErrSessionExpired) ||
		errors.Is(err, model.ErrPlayerNotFound) ||
		errors.Is(err, model.ErrAccountNotFound)
}
