package remote

import (
	"errors"
	"fmt"

	"github.com/mcoot/playerhub/internal/api/apierr"
	"github.com/mcoot/playerhub/internal/model"
)

// Error is an error response returned by the server.
// It unwraps to the matching model error so callers can use errors.Is and errors.As.
type Error struct {
	Status  int
	Code    string
	Reason  string
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

// newError maps an error code back to the model error taxonomy
func newError(status int, apiErr apierr.APIError) *Error {
	code, message := apiErr.Code, apiErr.Message
	e := &Error{Status: status, Code: code, Reason: apiErr.Reason, Message: message}
	detail := errors.New(message)

	switch code {
	case apierr.CodeAuthFailed:
		reason := apiErr.Reason
		if reason == "" {
			reason = code
		}
		e.cause = &model.AuthFailure{Code: reason, Message: message}
	case apierr.CodeUnauthorized:
		e.cause = model.ErrSessionNotFound
	case apierr.CodeSessionExpired:
		e.cause = model.ErrSessionExpired
	case apierr.CodeInvalidProvider:
		e.cause = model.ErrInvalidProvider
	case apierr.CodeAlreadyLinked:
		e.cause = model.ErrAlreadyLinked
	case apierr.CodeProviderKindLinked:
		e.cause = model.ErrProviderKindLinked
	case apierr.CodeProviderNotLinked:
		e.cause = model.ErrProviderNotLinked
	case apierr.CodePlayerNotFound:
		e.cause = model.ErrPlayerNotFound
	case apierr.CodeInvalidName:
		e.cause = model.ErrInvalidDisplayName
	case apierr.CodeUnknownPurchase:
		e.cause = model.ErrUnknownPurchase
	case apierr.CodeInsufficientFunds:
		e.cause = model.ErrInsufficientFunds
	case apierr.CodeConfigNotSynced:
		e.cause = model.ErrConfigNotSynced
	case apierr.CodeTransactionFailed:
		e.cause = &model.TransactionFailure{Err: detail}
	case apierr.CodeDataFailure:
		e.cause = &model.DataFailure{Err: detail}
	case apierr.CodeStoreFailure:
		e.cause = &model.StoreFailure{Op: "remote", Err: detail}
	}
	return e
}
