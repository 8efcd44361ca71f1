package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/playerhub/internal/api/middleware"
	"github.com/mcoot/playerhub/internal/api/request"
	"github.com/mcoot/playerhub/internal/api/response"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/services/identity"
)

// AuthHandler handles identity endpoints
type AuthHandler struct {
	identity *identity.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(identityService *identity.Service) *AuthHandler {
	return &AuthHandler{identity: identityService}
}

// SignInAnonymously handles POST /api/v1/auth/anonymous
func (h *AuthHandler) SignInAnonymously(w http.ResponseWriter, r *http.Request) {
	result, err := h.identity.SignInAnonymously(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, authResponse(result))
}

// ResumeSession handles POST /api/v1/auth/session
func (h *AuthHandler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	var req request.ResumeSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionToken == "" {
		WriteError(w, NewInvalidRequestError("session_token is required"))
		return
	}

	result, err := h.identity.ResumeSession(r.Context(), req.SessionToken)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, authResponse(result))
}

// SignInWithProvider handles POST /api/v1/auth/providers/{provider}/sign-in
func (h *AuthHandler) SignInWithProvider(w http.ResponseWriter, r *http.Request) {
	kind, ok := providerFromPath(w, r)
	if !ok {
		return
	}
	var req request.ProviderTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.identity.SignInWithProvider(r.Context(), kind, req.AccessToken)
	if err != nil {
		WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.JSON(w, status, authResponse(result))
}

// LinkProvider handles POST /api/v1/auth/providers/{provider}/link
func (h *AuthHandler) LinkProvider(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())
	kind, ok := providerFromPath(w, r)
	if !ok {
		return
	}
	var req request.ProviderTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updated, err := h.identity.LinkProvider(r.Context(), account.ID, kind, req.AccessToken)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.IdentityFromAccount(updated))
}

// UnlinkProvider handles DELETE /api/v1/auth/providers/{provider}
func (h *AuthHandler) UnlinkProvider(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())
	kind, ok := providerFromPath(w, r)
	if !ok {
		return
	}

	updated, err := h.identity.UnlinkProvider(r.Context(), account.ID, kind)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.IdentityFromAccount(updated))
}

// SignOut handles POST /api/v1/auth/sign-out
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.SignOut(r.Context(), middleware.GetToken(r.Context())); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// GetMe handles GET /api/v1/auth/me
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())
	response.JSON(w, http.StatusOK, response.IdentityFromAccount(account))
}

// DeleteMe handles DELETE /api/v1/auth/me
func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())
	if err := h.identity.DeleteAccount(r.Context(), account.ID, middleware.GetToken(r.Context())); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

func providerFromPath(w http.ResponseWriter, r *http.Request) (model.ProviderKind, bool) {
	kind, err := model.ParseProviderKind(mux.Vars(r)["provider"])
	if err != nil {
		WriteError(w, err)
		return "", false
	}
	return kind, true
}

func authResponse(result *identity.Result) response.AuthResponse {
	return response.AuthResponse{
		Identity:     response.IdentityFromAccount(result.Account),
		SessionToken: result.SessionToken,
		ExpiresAt:    result.Session.ExpiresAt,
		Created:      result.Created,
	}
}
