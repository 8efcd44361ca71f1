// Package provider adapts identity providers to the consolidation engine.
package provider

import (
	"context"
	"fmt"

	"github.com/mcoot/playerhub/internal/model"
)

// Credentials is the vendor SDK side of a provider: it knows whether the user has
// signed in with the provider and can produce an access token
type Credentials interface {
	IsAuthenticated(ctx context.Context) bool
	Login(ctx context.Context) (string, error)
}

// Backend is the backing identity system
type Backend interface {
	SignInWithProvider(ctx context.Context, kind model.ProviderKind, accessToken string) (model.PlayerIdentity, error)
	LinkProvider(ctx context.Context, sessionToken string, kind model.ProviderKind, accessToken string) (model.PlayerIdentity, error)
	UnlinkProvider(ctx context.Context, sessionToken string, kind model.ProviderKind) (model.PlayerIdentity, error)
}

// Gateway is a durable identity provider
type Gateway struct {
	kind    model.ProviderKind
	creds   Credentials
	backend Backend
}

// New creates a gateway for a durable provider kind
func New(kind model.ProviderKind, creds Credentials, backend Backend) (*Gateway, error) {
	if !kind.IsDurable() {
		return nil, fmt.Errorf("%w: %s is not a durable provider", model.ErrInvalidProvider, kind)
	}
	return &Gateway{kind: kind, creds: creds, backend: backend}, nil
}

// NewPlatformAccount creates the platform account gateway
func NewPlatformAccount(creds Credentials, backend Backend) *Gateway {
	return &Gateway{kind: model.ProviderPlatformAccount, creds: creds, backend: backend}
}

// NewSocial creates the social login gateway
func NewSocial(creds Credentials, backend Backend) *Gateway {
	return &Gateway{kind: model.ProviderSocial, creds: creds, backend: backend}
}

// NewConsoleStore creates the console/store gateway
func NewConsoleStore(creds Credentials, backend Backend) *Gateway {
	return &Gateway{kind: model.ProviderConsoleStore, creds: creds, backend: backend}
}

func (g *Gateway) Kind() model.ProviderKind {
	return g.kind
}

func (g *Gateway) IsAuthenticated(ctx context.Context) bool {
	return g.creds.IsAuthenticated(ctx)
}

// AccessToken returns the provider access token, logging in with the provider if needed
func (g *Gateway) AccessToken(ctx context.Context) (string, error) {
	return g.creds.Login(ctx)
}

// SignIn signs in to the backing system with this provider's identity
func (g *Gateway) SignIn(ctx context.Context) (model.PlayerIdentity, error) {
	token, err := g.AccessToken(ctx)
	if err != nil {
		return model.PlayerIdentity{}, err
	}
	return g.backend.SignInWithProvider(ctx, g.kind, token)
}

// Link attaches this provider's identity to the session's player
func (g *Gateway) Link(ctx context.Context, sessionToken string) (model.PlayerIdentity, error) {
	token, err := g.AccessToken(ctx)
	if err != nil {
		return model.PlayerIdentity{}, err
	}
	return g.backend.LinkProvider(ctx, sessionToken, g.kind, token)
}

// Unlink removes this provider from the session's player
func (g *Gateway) Unlink(ctx context.Context, sessionToken string) (model.PlayerIdentity, error) {
	return g.backend.UnlinkProvider(ctx, sessionToken, g.kind)
}
