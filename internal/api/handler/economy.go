package handler

import (
	"net/http"
	"strings"

	"github.com/mcoot/playerhub/internal/api/middleware"
	"github.com/mcoot/playerhub/internal/api/request"
	"github.com/mcoot/playerhub/internal/api/response"
	"github.com/mcoot/playerhub/internal/services/catalog"
	"github.com/mcoot/playerhub/internal/services/ledger"
	"github.com/mcoot/playerhub/internal/services/purchase"
	"github.com/mcoot/playerhub/internal/sse"
)

// EconomyHandler handles economy endpoints
type EconomyHandler struct {
	ledger     ledger.Reader
	purchases  *purchase.Service
	catalog    *catalog.Store
	hubManager *sse.HubManager
}

// NewEconomyHandler creates a new economy handler
func NewEconomyHandler(reader ledger.Reader, purchases *purchase.Service, store *catalog.Store, hubManager *sse.HubManager) *EconomyHandler {
	return &EconomyHandler{
		ledger:     reader,
		purchases:  purchases,
		catalog:    store,
		hubManager: hubManager,
	}
}

// Get handles GET /api/v1/economy
func (h *EconomyHandler) Get(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())

	snapshot, err := h.ledger.Snapshot(r.Context(), account.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.EconomyFromModel(snapshot))
}

// Purchase handles POST /api/v1/economy/purchases
func (h *EconomyHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())
	var req request.PurchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PurchaseID == "" {
		WriteError(w, NewInvalidRequestError("purchase_id is required"))
		return
	}
	key := strings.TrimSpace(r.Header.Get(request.IdempotencyKeyHeader))

	snapshot, err := h.purchases.Purchase(r.Context(), account.ID, req.PurchaseID, key)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.EconomyFromModel(snapshot))
}

// Config handles GET /api/v1/config/economy
func (h *EconomyHandler) Config(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.catalog.Config()
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.EconomyConfig{Config: cfg, SyncedAt: h.catalog.SyncedAt()})
}

// Events handles GET /api/v1/economy/events
func (h *EconomyHandler) Events(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())
	hub := h.hubManager.GetOrCreateHub(account.ID)
	sse.ServeSSE(w, r, hub, account.ID)
}
