package storage

import (
	"context"

	"github.com/mcoot/playerhub/internal/model"
)

// Well-known per-player data keys
const (
	KeyPlayerData = "PLAYER_DATA"
	KeyPlayerName = "PLAYER_NAME"
	KeyEconomy    = "ECONOMY"
)

// UpdateFunc computes the new value for a key from its current value.
// Returning an error aborts the update without writing.
type UpdateFunc func(current string, found bool) (string, error)

// AccountUpdateFunc mutates an account in place.
// Returning an error aborts the update without writing.
type AccountUpdateFunc func(account *model.Account) error

// Storage defines the interface for data persistence.
// Backend infrastructure errors are returned as *model.StoreFailure.
type Storage interface {
	// Account operations
	SaveAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id model.PlayerID) (*model.Account, error)
	DeleteAccount(ctx context.Context, id model.PlayerID) error
	// UpdateAccount is an atomic read-modify-write of an existing account.
	// A missing account fails with model.ErrAccountNotFound.
	UpdateAccount(ctx context.Context, id model.PlayerID, fn AccountUpdateFunc) (*model.Account, error)

	// Provider link index. BindProvider is atomic: binding a subject already
	// bound to a different player fails with model.ErrAlreadyLinked.
	BindProvider(ctx context.Context, kind model.ProviderKind, subject string, playerID model.PlayerID) error
	LookupProvider(ctx context.Context, kind model.ProviderKind, subject string) (model.PlayerID, error)
	UnbindProvider(ctx context.Context, kind model.ProviderKind, subject string) error

	// Session operations, keyed by token hash
	SaveSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, tokenHash string) (*model.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error

	// Player data operations (per-player key-value store)
	TryGetData(ctx context.Context, playerID model.PlayerID, key string) (string, bool, error)
	SetData(ctx context.Context, playerID model.PlayerID, key, value string) error
	SetDataIfAbsent(ctx context.Context, playerID model.PlayerID, key, value string) (bool, error)
	UpdateData(ctx context.Context, playerID model.PlayerID, key string, fn UpdateFunc) (string, error)
	DeletePlayerData(ctx context.Context, playerID model.PlayerID) error
}
