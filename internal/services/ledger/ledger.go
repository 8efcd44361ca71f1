// Package ledger is the authoritative store of each player's currency balances and item counts.
//
// The whole economy of a player is one record in the backing store, so every change is a single
// atomic read-modify-write. Reads are available to any caller through Reader; writes go through
// Apply and Grant, which only the bootstrap and purchase services use.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/mcoot/playerhub/internal/dependencies/clock"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/notify"
	"github.com/mcoot/playerhub/internal/storage"
)

// ErrNoChange may be returned from an Apply function to finish without writing
var ErrNoChange = errors.New("no change")

// errSkipWrite aborts the storage update when the function reported ErrNoChange
var errSkipWrite = errors.New("skip write")

// maxTransactionHistory bounds the remembered idempotency keys per player
const maxTransactionHistory = 256

// Reader is the read-only view of the ledger
type Reader interface {
	Snapshot(ctx context.Context, playerID model.PlayerID) (model.EconomySnapshot, error)
	GetCurrency(ctx context.Context, playerID model.PlayerID, key string) (int64, error)
	GetInventory(ctx context.Context, playerID model.PlayerID) (map[string]int64, error)
}

// BalanceSource provides the balances a player starts with
type BalanceSource interface {
	InitialBalances() (map[string]int64, error)
}

// Ledger implements Reader plus the server-side write operations
type Ledger struct {
	storage  storage.Storage
	balances BalanceSource
	clock    clock.Clock
	logger   *slog.Logger

	updates notify.Registry[model.EconomyUpdate]
}

// Ensure Ledger implements Reader
var _ Reader = (*Ledger)(nil)

// New creates a Ledger on top of the player data store
func New(store storage.Storage, balances BalanceSource, clk clock.Clock, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Ledger{
		storage:  store,
		balances: balances,
		clock:    clk,
		logger:   logger,
	}
}

// record is the persisted form of a player's economy
type record struct {
	Currencies   map[string]int64 `json:"currencies"`
	Items        map[string]int64 `json:"itemInventory"`
	Grants       []string         `json:"grants,omitempty"`
	Transactions []string         `json:"transactions,omitempty"`
}

func (r *record) snapshot() model.EconomySnapshot {
	return model.NewEconomySnapshot(r.Currencies, r.Items)
}

func (r *record) prune() {
	for id, qty := range r.Items {
		if qty == 0 {
			delete(r.Items, id)
		}
	}
	if over := len(r.Transactions) - maxTransactionHistory; over > 0 {
		r.Transactions = r.Transactions[over:]
	}
}

// load decodes a stored record, filling in currencies the player has never touched
func (l *Ledger) load(value string, found bool) (*record, error) {
	initial, err := l.balances.InitialBalances()
	if err != nil {
		return nil, err
	}

	rec := &record{}
	if found {
		if err := json.Unmarshal([]byte(value), rec); err != nil {
			return nil, &model.DataFailure{Key: storage.KeyEconomy, Err: err}
		}
	}
	if rec.Currencies == nil {
		rec.Currencies = make(map[string]int64, len(initial))
	}
	if rec.Items == nil {
		rec.Items = make(map[string]int64)
	}
	for key, amount := range initial {
		if _, ok := rec.Currencies[key]; !ok {
			rec.Currencies[key] = amount
		}
	}
	return rec, nil
}

// Snapshot returns the player's current economy
func (l *Ledger) Snapshot(ctx context.Context, playerID model.PlayerID) (model.EconomySnapshot, error) {
	value, found, err := l.storage.TryGetData(ctx, playerID, storage.KeyEconomy)
	if err != nil {
		return model.EconomySnapshot{}, err
	}
	rec, err := l.load(value, found)
	if err != nil {
		return model.EconomySnapshot{}, err
	}
	return rec.snapshot(), nil
}

// GetCurrency returns the balance of one currency, 0 if the player has none
func (l *Ledger) GetCurrency(ctx context.Context, playerID model.PlayerID, key string) (int64, error) {
	snapshot, err := l.Snapshot(ctx, playerID)
	if err != nil {
		return 0, err
	}
	return snapshot.Currency(key), nil
}

// GetInventory returns the player's items; items with zero quantity are never included
func (l *Ledger) GetInventory(ctx context.Context, playerID model.PlayerID) (map[string]int64, error) {
	snapshot, err := l.Snapshot(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return snapshot.Inventory(), nil
}

// Apply runs fn against the player's record as one atomic change.
// If fn returns an error nothing is written; ErrNoChange is not reported as a failure.
// fn may run more than once when the backing store retries, so it must only act through tx.
func (l *Ledger) Apply(ctx context.Context, playerID model.PlayerID, reason model.EconomyUpdateReason, fn func(tx *Tx) error) (model.EconomySnapshot, error) {
	var snapshot model.EconomySnapshot

	_, err := l.storage.UpdateData(ctx, playerID, storage.KeyEconomy, func(current string, found bool) (string, error) {
		rec, err := l.load(current, found)
		if err != nil {
			return "", err
		}

		if err := fn(&Tx{rec: rec}); err != nil {
			if errors.Is(err, ErrNoChange) {
				snapshot = rec.snapshot()
				return "", errSkipWrite
			}
			return "", err
		}

		rec.prune()
		encoded, err := json.Marshal(rec)
		if err != nil {
			return "", err
		}
		snapshot = rec.snapshot()
		return string(encoded), nil
	})
	if errors.Is(err, errSkipWrite) {
		return snapshot, nil
	}
	if err != nil {
		return model.EconomySnapshot{}, err
	}

	l.updates.Publish(ctx, model.EconomyUpdate{
		PlayerID:  playerID,
		Reason:    reason,
		Snapshot:  snapshot,
		Timestamp: l.clock.Now(),
	})
	return snapshot, nil
}

// Grant credits items once per grant id. It reports whether this call applied the grant.
func (l *Ledger) Grant(ctx context.Context, playerID model.PlayerID, grantID string, items map[string]int64) (model.EconomySnapshot, bool, error) {
	applied := false
	snapshot, err := l.Apply(ctx, playerID, model.EconomyUpdateGrant, func(tx *Tx) error {
		applied = false
		for _, id := range tx.rec.Grants {
			if id == grantID {
				return ErrNoChange
			}
		}
		for itemID, qty := range items {
			if err := tx.AddItem(itemID, qty); err != nil {
				return err
			}
		}
		tx.rec.Grants = append(tx.rec.Grants, grantID)
		applied = true
		return nil
	})
	if err != nil {
		return model.EconomySnapshot{}, false, err
	}

	if applied {
		l.logger.Info("grant applied",
			slog.String("player_id", string(playerID)),
			slog.String("grant_id", grantID),
		)
	}
	return snapshot, applied, nil
}

// HasGrant reports whether a grant has been applied to the player
func (l *Ledger) HasGrant(ctx context.Context, playerID model.PlayerID, grantID string) (bool, error) {
	value, found, err := l.storage.TryGetData(ctx, playerID, storage.KeyEconomy)
	if err != nil || !found {
		return false, err
	}
	rec, err := l.load(value, found)
	if err != nil {
		return false, err
	}
	for _, id := range rec.Grants {
		if id == grantID {
			return true, nil
		}
	}
	return false, nil
}

// OnUpdate registers an observer of committed changes
func (l *Ledger) OnUpdate(h func(ctx context.Context, update model.EconomyUpdate)) (unsubscribe func()) {
	return l.updates.Subscribe(h)
}
