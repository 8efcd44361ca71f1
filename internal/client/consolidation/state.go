package consolidation

import (
	"context"

	"github.com/mcoot/playerhub/internal/model"
)

// State is the player's authentication state
type State int

const (
	Unauthenticated State = iota
	AnonymousSession
	ProviderLinked
	FullyConsolidated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AnonymousSession:
		return "anonymous_session"
	case ProviderLinked:
		return "provider_linked"
	case FullyConsolidated:
		return "fully_consolidated"
	default:
		return "unknown"
	}
}

// Outcome is the branch taken by SignInOrLinkWithProvider
type Outcome int

const (
	OutcomeSignedIn Outcome = iota + 1
	OutcomeLinked
	OutcomeAlreadyConsolidated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSignedIn:
		return "signed_in"
	case OutcomeLinked:
		return "linked"
	case OutcomeAlreadyConsolidated:
		return "already_consolidated"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the engine.
// Provider is the provider the session was signed in with, empty for anonymous sessions.
type Status struct {
	State    State
	Provider model.ProviderKind
	Identity model.PlayerIdentity
}

// Authenticated reports whether there is a signed-in player
func (s Status) Authenticated() bool {
	return s.State != Unauthenticated
}

// SignedIn is published when the engine leaves Unauthenticated
type SignedIn struct {
	Identity model.PlayerIdentity
	Provider model.ProviderKind
	Resumed  bool
}

// SignedOut is published when the engine returns to Unauthenticated
type SignedOut struct {
	PlayerID model.PlayerID
	Deleted  bool
}

// Provider is the capability a durable identity provider supplies to the engine
type Provider interface {
	Kind() model.ProviderKind
	IsAuthenticated(ctx context.Context) bool
	AccessToken(ctx context.Context) (string, error)
	SignIn(ctx context.Context) (model.PlayerIdentity, error)
	Link(ctx context.Context, sessionToken string) (model.PlayerIdentity, error)
	Unlink(ctx context.Context, sessionToken string) (model.PlayerIdentity, error)
}

// Backend is the session side of the backing identity system
type Backend interface {
	SignInAnonymously(ctx context.Context) (model.PlayerIdentity, error)
	ResumeSession(ctx context.Context, sessionToken string) (model.PlayerIdentity, error)
	SignOut(ctx context.Context, sessionToken string) error
	DeleteAccount(ctx context.Context, sessionToken string) error
}
