package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound     = errors.New("player not found")
	ErrInvalidDisplayName = errors.New("invalid display name")

	// Identity errors
	ErrAccountNotFound       = errors.New("account not found")
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionExpired        = errors.New("session expired")
	ErrInvalidProvider       = errors.New("invalid provider")
	ErrAlreadyLinked         = errors.New("provider identity is already linked to another player")
	ErrProviderKindLinked    = errors.New("a different identity of this provider is already linked")
	ErrProviderNotLinked     = errors.New("provider is not linked")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrAlreadyAuthenticated  = errors.New("already authenticated")
	ErrDurableIdentityExists = errors.New("a durable identity already exists on this device")
	ErrStateChanged          = errors.New("authentication state changed while the request was in flight")

	// Economy errors
	ErrUnknownPurchase   = errors.New("unknown purchase")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConfigNotSynced   = errors.New("economy configuration has not been synced")
)

// AuthFailure is a credential or token rejected by a provider or the identity backend
type AuthFailure struct {
	Code    string
	Message string
}

func (e *AuthFailure) Error() string {
	return fmt.Sprintf("auth failure (%s): %s", e.Code, e.Message)
}

// TransportFailure is a network-level failure talking to a remote service
type TransportFailure struct {
	Message string
	Err     error
}

func (e *TransportFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport failure: %s: %v", e.Message, e.Err)
	}
	return "transport failure: " + e.Message
}

func (e *TransportFailure) Unwrap() error { return e.Err }

// StoreFailure is an infrastructure failure of the backing store
type StoreFailure struct {
	Op  string
	Err error
}

func (e *StoreFailure) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreFailure) Unwrap() error { return e.Err }

// DataFailure is a stored record that exists but cannot be decoded
type DataFailure struct {
	Key string
	Err error
}

func (e *DataFailure) Error() string {
	return fmt.Sprintf("corrupt data for key %s: %v", e.Key, e.Err)
}

func (e *DataFailure) Unwrap() error { return e.Err }

// TransactionFailure is a purchase that was rolled back
type TransactionFailure struct {
	PurchaseID string
	Err        error
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("purchase %s failed: %v", e.PurchaseID, e.Err)
}

func (e *TransactionFailure) Unwrap() error { return e.Err }
