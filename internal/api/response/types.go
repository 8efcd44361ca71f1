package response

import (
	"time"

	"github.com/mcoot/playerhub/internal/model"
)

// Identity is the authenticated player's identity
type Identity struct {
	PlayerID        string   `json:"player_id"`
	LinkedProviders []string `json:"linked_providers"`
	HasPrimaryID    bool     `json:"has_primary_id"`
}

// IdentityFromAccount converts a model.Account
func IdentityFromAccount(a *model.Account) Identity {
	kinds := a.LinkedProviders()
	providers := make([]string, len(kinds))
	for i, k := range kinds {
		providers[i] = string(k)
	}
	return Identity{
		PlayerID:        string(a.ID),
		LinkedProviders: providers,
		HasPrimaryID:    a.HasPrimaryID(),
	}
}

// ToModel converts to a model.PlayerIdentity carrying the given session token
func (i Identity) ToModel(sessionToken string) model.PlayerIdentity {
	kinds := make([]model.ProviderKind, len(i.LinkedProviders))
	for j, p := range i.LinkedProviders {
		kinds[j] = model.ProviderKind(p)
	}
	return model.NewPlayerIdentity(model.PlayerID(i.PlayerID), sessionToken, kinds)
}

// AuthResponse is the response for endpoints that issue a session
type AuthResponse struct {
	Identity     Identity  `json:"identity"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Created      bool      `json:"created"`
}

// Profile is a player's profile
type Profile struct {
	DisplayName string `json:"display_name"`
	Experience  int    `json:"experience"`
}

// ProfileFromModel converts a model.PlayerProfile
func ProfileFromModel(p model.PlayerProfile) Profile {
	return Profile{DisplayName: p.DisplayName, Experience: p.Experience}
}

// ToModel converts to a model.PlayerProfile
func (p Profile) ToModel() model.PlayerProfile {
	return model.PlayerProfile{DisplayName: p.DisplayName, Experience: p.Experience}
}

// Economy is a player's currency balances and inventory
type Economy struct {
	Currencies map[string]int64 `json:"currencies"`
	Inventory  map[string]int64 `json:"inventory"`
}

// EconomyFromModel converts a model.EconomySnapshot
func EconomyFromModel(s model.EconomySnapshot) Economy {
	return Economy{Currencies: s.Currencies(), Inventory: s.Inventory()}
}

// ToModel converts to a model.EconomySnapshot
func (e Economy) ToModel() model.EconomySnapshot {
	return model.NewEconomySnapshot(e.Currencies, e.Inventory)
}

// SignInResponse is the result of the bootstrap sign-in
type SignInResponse struct {
	Profile     Profile `json:"profile"`
	Economy     Economy `json:"economy"`
	IsNewPlayer bool    `json:"is_new_player"`
}

// SignInResponseFromModel converts a model.SignInOutcome
func SignInResponseFromModel(o model.SignInOutcome) SignInResponse {
	return SignInResponse{
		Profile:     ProfileFromModel(o.Profile),
		Economy:     EconomyFromModel(o.Economy),
		IsNewPlayer: o.IsNewPlayer,
	}
}

// ToModel converts to a model.SignInOutcome
func (r SignInResponse) ToModel() model.SignInOutcome {
	return model.SignInOutcome{
		Profile:     r.Profile.ToModel(),
		Economy:     r.Economy.ToModel(),
		IsNewPlayer: r.IsNewPlayer,
	}
}

// EconomyEvent is pushed on the economy event stream
type EconomyEvent struct {
	Reason    string    `json:"reason"`
	Economy   Economy   `json:"economy"`
	Timestamp time.Time `json:"timestamp"`
}

// EconomyEventFromModel converts a model.EconomyUpdate
func EconomyEventFromModel(u model.EconomyUpdate) EconomyEvent {
	return EconomyEvent{
		Reason:    string(u.Reason),
		Economy:   EconomyFromModel(u.Snapshot),
		Timestamp: u.Timestamp,
	}
}

// EconomyConfig is the economy configuration served to clients
type EconomyConfig struct {
	Config   model.EconomyConfig `json:"config"`
	SyncedAt time.Time           `json:"synced_at"`
}

// Health is the health check response
type Health struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}
