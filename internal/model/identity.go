package model

import (
	"fmt"
	"slices"
	"time"
)

// PlayerID uniquely identifies a player across the system
type PlayerID string

// ProviderKind identifies an external identity provider
type ProviderKind string

const (
	ProviderAnonymous       ProviderKind = "anonymous"
	ProviderPlatformAccount ProviderKind = "platform_account"
	ProviderSocial          ProviderKind = "social"
	ProviderConsoleStore    ProviderKind = "console_store"
)

// DurableProviders lists every provider kind that yields a durable identity
var DurableProviders = []ProviderKind{
	ProviderPlatformAccount,
	ProviderSocial,
	ProviderConsoleStore,
}

// ParseProviderKind converts a wire value into a ProviderKind
func ParseProviderKind(s string) (ProviderKind, error) {
	kind := ProviderKind(s)
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidProvider, s)
	}
	return kind, nil
}

// Valid reports whether the kind is one of the known providers
func (k ProviderKind) Valid() bool {
	return k == ProviderAnonymous || k.IsDurable()
}

// IsDurable is true for every provider except the anonymous session
func (k ProviderKind) IsDurable() bool {
	return slices.Contains(DurableProviders, k)
}

// ProviderLink binds one external provider identity to an account
type ProviderLink struct {
	Kind     ProviderKind `json:"kind"`
	Subject  string       `json:"subject"` // provider-side user id
	LinkedAt time.Time    `json:"linked_at"`
}

// Account is the backing identity system's record of a player
type Account struct {
	ID        PlayerID       `json:"id"`
	Links     []ProviderLink `json:"links"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Link returns the link for the given kind, or nil
func (a *Account) Link(kind ProviderKind) *ProviderLink {
	for i := range a.Links {
		if a.Links[i].Kind == kind {
			return &a.Links[i]
		}
	}
	return nil
}

// AddLink attaches a provider link. Each kind may be linked at most once.
func (a *Account) AddLink(link ProviderLink) error {
	if existing := a.Link(link.Kind); existing != nil {
		if existing.Subject == link.Subject {
			return nil
		}
		return ErrProviderKindLinked
	}
	a.Links = append(a.Links, link)
	return nil
}

// RemoveLink detaches the link of the given kind and returns it
func (a *Account) RemoveLink(kind ProviderKind) (ProviderLink, error) {
	for i, link := range a.Links {
		if link.Kind == kind {
			a.Links = slices.Delete(a.Links, i, i+1)
			return link, nil
		}
	}
	return ProviderLink{}, ErrProviderNotLinked
}

// LinkedProviders returns the sorted set of linked provider kinds
func (a *Account) LinkedProviders() []ProviderKind {
	kinds := make([]ProviderKind, 0, len(a.Links))
	for _, link := range a.Links {
		if !slices.Contains(kinds, link.Kind) {
			kinds = append(kinds, link.Kind)
		}
	}
	slices.Sort(kinds)
	return kinds
}

// HasPrimaryID is true iff at least one durable provider is linked
func (a *Account) HasPrimaryID() bool {
	return hasDurable(a.LinkedProviders())
}

// Clone returns a deep copy of the account
func (a *Account) Clone() *Account {
	clone := *a
	clone.Links = slices.Clone(a.Links)
	return &clone
}

// PlayerIdentity is the client-side view of an authenticated player
type PlayerIdentity struct {
	PlayerID        PlayerID
	SessionToken    string
	LinkedProviders []ProviderKind
	HasPrimaryID    bool
}

// NewPlayerIdentity builds an identity, normalising the provider set
func NewPlayerIdentity(id PlayerID, sessionToken string, providers []ProviderKind) PlayerIdentity {
	kinds := slices.Clone(providers)
	slices.Sort(kinds)
	kinds = slices.Compact(kinds)
	return PlayerIdentity{
		PlayerID:        id,
		SessionToken:    sessionToken,
		LinkedProviders: kinds,
		HasPrimaryID:    hasDurable(kinds),
	}
}

// IdentityFromAccount builds the client view of an account
func IdentityFromAccount(a *Account, sessionToken string) PlayerIdentity {
	return NewPlayerIdentity(a.ID, sessionToken, a.LinkedProviders())
}

// IsLinked reports whether the provider kind is linked to this identity
func (p PlayerIdentity) IsLinked(kind ProviderKind) bool {
	return slices.Contains(p.LinkedProviders, kind)
}

// Equal compares identities including the provider set
func (p PlayerIdentity) Equal(other PlayerIdentity) bool {
	return p.PlayerID == other.PlayerID &&
		p.SessionToken == other.SessionToken &&
		p.HasPrimaryID == other.HasPrimaryID &&
		slices.Equal(p.LinkedProviders, other.LinkedProviders)
}

func hasDurable(kinds []ProviderKind) bool {
	for _, k := range kinds {
		if k.IsDurable() {
			return true
		}
	}
	return false
}

// Session is a server-side authenticated session.
// Only the hash of the token is stored.
type Session struct {
	TokenHash string    `json:"token_hash"`
	PlayerID  PlayerID  `json:"player_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at the given time
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
