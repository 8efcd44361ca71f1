package handler

import (
	"net/http"

	"github.com/mcoot/playerhub/internal/api/middleware"
	"github.com/mcoot/playerhub/internal/api/request"
	"github.com/mcoot/playerhub/internal/api/response"
	"github.com/mcoot/playerhub/internal/services/bootstrap"
)

// PlayerHandler handles player profile endpoints
type PlayerHandler struct {
	bootstrap *bootstrap.Service
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(bootstrapService *bootstrap.Service) *PlayerHandler {
	return &PlayerHandler{bootstrap: bootstrapService}
}

// SignIn handles POST /api/v1/player/sign-in
func (h *PlayerHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())

	outcome, err := h.bootstrap.HandleSignIn(r.Context(), account.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.SignInResponseFromModel(*outcome))
}

// GetProfile handles GET /api/v1/player
func (h *PlayerHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())

	profile, err := h.bootstrap.GetProfile(r.Context(), account.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.ProfileFromModel(profile))
}

// SetName handles PUT /api/v1/player/name
func (h *PlayerHandler) SetName(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())
	var req request.SetNameRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if _, err := h.bootstrap.HandleNewPlayerNameEntry(r.Context(), account.ID, req.DisplayName); err != nil {
		WriteError(w, err)
		return
	}

	profile, err := h.bootstrap.GetProfile(r.Context(), account.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.ProfileFromModel(profile))
}
