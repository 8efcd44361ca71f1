package sse

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mcoot/playerhub/internal/api/response"
	"github.com/mcoot/playerhub/internal/model"
)

// Event names
const (
	EventConnected = "connected"
	EventEconomy   = "economy"
)

// Broadcaster forwards committed economy updates to the owning player's hub
type Broadcaster struct {
	hubManager *HubManager
	logger     *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hubManager *HubManager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubManager: hubManager,
		logger:     logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// HandleEconomyUpdate is a ledger update handler. Players without an open stream are skipped.
func (b *Broadcaster) HandleEconomyUpdate(_ context.Context, update model.EconomyUpdate) {
	hub := b.hubManager.GetHub(update.PlayerID)
	if hub == nil {
		return
	}

	data, err := json.Marshal(response.EconomyEventFromModel(update))
	if err != nil {
		b.logger.Error("sse failed to encode economy update",
			slog.String("player_id", string(update.PlayerID)),
			slog.Any("error", err))
		return
	}
	hub.BroadcastEvent(EventEconomy, string(data))
}
