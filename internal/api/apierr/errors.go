package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/services/ledger"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Reason carries the provider-specific code of an AUTH_FAILED error
	Reason string `json:"reason,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeAuthFailed         = "AUTH_FAILED"
	CodeInvalidProvider    = "INVALID_PROVIDER"
	CodeAlreadyLinked      = "ALREADY_LINKED"
	CodeProviderKindLinked = "PROVIDER_KIND_LINKED"
	CodeProviderNotLinked  = "PROVIDER_NOT_LINKED"
	CodePlayerNotFound     = "PLAYER_NOT_FOUND"
	CodeInvalidName        = "INVALID_NAME"
	CodeUnknownPurchase    = "UNKNOWN_PURCHASE"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeTransactionFailed  = "TRANSACTION_FAILED"
	CodeConfigNotSynced    = "CONFIG_NOT_SYNCED"
	CodeDataFailure        = "DATA_FAILURE"
	CodeStoreFailure       = "STORE_FAILURE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status code an error is written with
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var authErr *model.AuthFailure
	if errors.As(err, &authErr) {
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeAuthFailed, Message: authErr.Message, Reason: authErr.Code}}
	}

	// Transaction failures wrap the underlying cause, so they are matched before it
	var txErr *model.TransactionFailure
	if errors.As(err, &txErr) {
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeTransactionFailed, Message: "Purchase could not be completed"}}
	}

	var dataErr *model.DataFailure
	if errors.As(err, &dataErr) {
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeDataFailure, Message: "Stored player data is unreadable"}}
	}

	var storeErr *model.StoreFailure
	if errors.As(err, &storeErr) {
		return &httpError{http.StatusServiceUnavailable, APIError{Code: CodeStoreFailure, Message: "Storage temporarily unavailable"}}
	}

	switch {
	case errors.Is(err, model.ErrSessionNotFound), errors.Is(err, model.ErrNotAuthenticated):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeUnauthorized, Message: "Invalid session"}}
	case errors.Is(err, model.ErrSessionExpired):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeSessionExpired, Message: "Session expired"}}
	case errors.Is(err, model.ErrInvalidProvider):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidProvider, Message: err.Error()}}
	case errors.Is(err, model.ErrAlreadyLinked):
		return &httpError{http.StatusConflict, APIError{Code: CodeAlreadyLinked, Message: "Provider identity is already linked to another player"}}
	case errors.Is(err, model.ErrProviderKindLinked):
		return &httpError{http.StatusConflict, APIError{Code: CodeProviderKindLinked, Message: "A different identity of this provider is already linked"}}
	case errors.Is(err, model.ErrProviderNotLinked):
		return &httpError{http.StatusNotFound, APIError{Code: CodeProviderNotLinked, Message: "Provider is not linked"}}
	case errors.Is(err, model.ErrPlayerNotFound), errors.Is(err, model.ErrAccountNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodePlayerNotFound, Message: "Player not found"}}
	case errors.Is(err, model.ErrInvalidDisplayName):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidName, Message: err.Error()}}
	case errors.Is(err, model.ErrUnknownPurchase):
		return &httpError{http.StatusNotFound, APIError{Code: CodeUnknownPurchase, Message: "Unknown purchase"}}
	case errors.Is(err, model.ErrInsufficientFunds), errors.Is(err, ledger.ErrInsufficientItems):
		return &httpError{http.StatusConflict, APIError{Code: CodeInsufficientFunds, Message: "Insufficient funds"}}
	case errors.Is(err, model.ErrConfigNotSynced):
		return &httpError{http.StatusServiceUnavailable, APIError{Code: CodeConfigNotSynced, Message: "Economy configuration unavailable"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{Code: CodeUnauthorized, Message: "Authentication required"}}
}

// NewRateLimitedError creates a too many requests error
func NewRateLimitedError() error {
	return &httpError{http.StatusTooManyRequests, APIError{Code: CodeRateLimited, Message: "Too many requests"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
}
