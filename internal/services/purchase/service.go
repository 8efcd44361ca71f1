// Package purchase processes virtual purchases against the economy ledger.
package purchase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"

	"github.com/mcoot/playerhub/internal/metrics"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/services/ledger"
)

// Catalog resolves purchase definitions
type Catalog interface {
	Purchase(id string) (model.PurchaseDefinition, error)
}

// Service is the server-authoritative purchase processor
type Service struct {
	catalog Catalog
	ledger  *ledger.Ledger
	metrics metrics.Recorder
	logger  *slog.Logger
}

// New creates a new purchase Service
func New(catalog Catalog, l *ledger.Ledger, rec metrics.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		catalog: catalog,
		ledger:  l,
		metrics: rec,
		logger:  logger,
	}
}

// Purchase debits the cost of purchaseID and credits its reward as one ledger transaction.
//
// idempotencyKey is optional. When set, a retry of an already-applied purchase returns the
// current economy without charging again. Keys are scoped to purchaseID.
func (s *Service) Purchase(ctx context.Context, playerID model.PlayerID, purchaseID, idempotencyKey string) (model.EconomySnapshot, error) {
	log := s.logger.With(
		slog.String("player_id", string(playerID)),
		slog.String("purchase_id", purchaseID),
	)

	def, err := s.catalog.Purchase(purchaseID)
	if err != nil {
		if errors.Is(err, model.ErrConfigNotSynced) {
			s.metrics.Purchase(purchaseID, "config_not_synced")
		} else {
			s.metrics.Purchase(purchaseID, "unknown_purchase")
		}
		return model.EconomySnapshot{}, err
	}

	costs := def.TotalCosts()
	currencies := make([]string, 0, len(costs))
	for key := range costs {
		currencies = append(currencies, key)
	}
	slices.Sort(currencies)

	// A key only deduplicates retries of the same purchase
	appliedKey := ""
	if idempotencyKey != "" {
		appliedKey = purchaseID + ":" + idempotencyKey
	}

	replayed := false
	snapshot, err := s.ledger.Apply(ctx, playerID, model.EconomyUpdatePurchase, func(tx *ledger.Tx) error {
		replayed = false
		if appliedKey != "" && tx.HasApplied(appliedKey) {
			replayed = true
			return ledger.ErrNoChange
		}

		// Check every currency before touching any balance
		for _, key := range currencies {
			if tx.Balance(key) < costs[key] {
				return tx.Debit(key, costs[key])
			}
		}
		for _, key := range currencies {
			if err := tx.Debit(key, costs[key]); err != nil {
				return err
			}
		}
		if err := tx.AddItem(def.Reward.ItemID, def.Reward.Quantity); err != nil {
			return err
		}
		if appliedKey != "" {
			tx.MarkApplied(appliedKey)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrInsufficientFunds) {
			log.Info("purchase rejected", slog.String("error", err.Error()))
			s.metrics.Purchase(purchaseID, "insufficient_funds")
			return model.EconomySnapshot{}, err
		}
		log.Error("purchase failed", slog.String("error", err.Error()))
		s.metrics.Purchase(purchaseID, metrics.ResultFailure)
		return model.EconomySnapshot{}, &model.TransactionFailure{PurchaseID: purchaseID, Err: err}
	}

	if replayed {
		log.Info("purchase already applied", slog.String("idempotency_key", idempotencyKey))
		s.metrics.Purchase(purchaseID, "replayed")
		return snapshot, nil
	}

	log.Info("purchase completed")
	s.metrics.Purchase(purchaseID, metrics.ResultSuccess)
	return snapshot, nil
}
