package ledger

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mcoot/playerhub/internal/model"
)

// ErrInsufficientItems is returned when removing more items than the player holds
var ErrInsufficientItems = errors.New("insufficient items")

// ErrInvalidAmount is returned for non-positive adjustment amounts
var ErrInvalidAmount = errors.New("amount must be positive")

// Tx is a pending change to one player's record. Nothing is persisted unless the
// function given to Apply returns nil.
type Tx struct {
	rec *record
}

// Balance returns the current balance of a currency
func (tx *Tx) Balance(key string) int64 {
	return tx.rec.Currencies[key]
}

// Debit removes amount from a currency. Balances never go below zero.
func (tx *Tx) Debit(key string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: debit %d %s", ErrInvalidAmount, amount, key)
	}
	balance := tx.rec.Currencies[key]
	if balance < amount {
		return fmt.Errorf("%w: %s requires %d, has %d", model.ErrInsufficientFunds, key, amount, balance)
	}
	tx.rec.Currencies[key] = balance - amount
	return nil
}

// Credit adds amount to a currency
func (tx *Tx) Credit(key string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: credit %d %s", ErrInvalidAmount, amount, key)
	}
	tx.rec.Currencies[key] += amount
	return nil
}

// ItemQuantity returns how many of an item the player holds
func (tx *Tx) ItemQuantity(itemID string) int64 {
	return tx.rec.Items[itemID]
}

// AddItem credits qty of an item
func (tx *Tx) AddItem(itemID string, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: add %d %s", ErrInvalidAmount, qty, itemID)
	}
	tx.rec.Items[itemID] += qty
	return nil
}

// RemoveItem debits qty of an item. An item reaching zero is pruned on commit.
func (tx *Tx) RemoveItem(itemID string, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: remove %d %s", ErrInvalidAmount, qty, itemID)
	}
	held := tx.rec.Items[itemID]
	if held < qty {
		return fmt.Errorf("%w: %s requires %d, has %d", ErrInsufficientItems, itemID, qty, held)
	}
	tx.rec.Items[itemID] = held - qty
	return nil
}

// HasApplied reports whether a transaction key was already recorded
func (tx *Tx) HasApplied(key string) bool {
	return slices.Contains(tx.rec.Transactions, key)
}

// MarkApplied records a transaction key so retries can be detected
func (tx *Tx) MarkApplied(key string) {
	if !tx.HasApplied(key) {
		tx.rec.Transactions = append(tx.rec.Transactions, key)
	}
}
