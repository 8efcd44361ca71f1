package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mcoot/playerhub/internal/client/consolidation"
	"github.com/mcoot/playerhub/internal/client/economycache"
	"github.com/mcoot/playerhub/internal/client/game"
	"github.com/mcoot/playerhub/internal/client/provider"
	"github.com/mcoot/playerhub/internal/client/remote"
	"github.com/mcoot/playerhub/internal/client/session"
	"github.com/mcoot/playerhub/internal/dependencies/clock"
	"github.com/mcoot/playerhub/internal/dependencies/random"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/services/catalog"
)

// runtime is the client stack for one command invocation
type runtime struct {
	client  *remote.Client
	store   *session.FileStore
	engine  *consolidation.Engine
	session *game.Session
	logger  *slog.Logger
}

func newRuntime(cfg *Config, stderr io.Writer) *runtime {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	client := remote.New(cfg.ServerURL)
	store := session.NewFileStore(cfg.SessionFile)
	engine := consolidation.New(client, store, logger)
	cat := catalog.New(client, clock.New(), logger)

	return &runtime{
		client:  client,
		store:   store,
		engine:  engine,
		session: game.New(engine, client, cat, economycache.New(), random.New(), logger),
		logger:  logger,
	}
}

func (r *runtime) Close() {
	r.session.Close()
}

// resume restores the saved session. A saved session the server rejects is treated as absent.
func (r *runtime) resume(ctx context.Context) error {
	_, err := r.engine.Start(ctx)
	if err != nil && (errors.Is(err, model.ErrSessionNotFound) || errors.Is(err, model.ErrSessionExpired)) {
		r.logger.Info("saved session is no longer valid")
		return nil
	}
	return err
}

// requireSession restores the saved session and fails if there is none
func (r *runtime) requireSession(ctx context.Context) error {
	if err := r.resume(ctx); err != nil {
		return err
	}
	if !r.engine.Status().Authenticated() {
		return errNotSignedIn
	}
	return r.session.BootstrapErr()
}

// gateway builds the provider gateway for kind with the given token, falling back to the
// provider's environment variable
func (r *runtime) gateway(kind model.ProviderKind, token string) (*provider.Gateway, error) {
	if token == "" {
		token = os.Getenv(providerTokenEnv(kind))
	}
	return provider.New(kind, provider.StaticCredentials{Token: token}, r.client)
}

var errNotSignedIn = fmt.Errorf("%w: run 'playerhub auth anonymous' or 'playerhub auth provider <kind>'", model.ErrNotAuthenticated)
