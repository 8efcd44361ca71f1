// Package economycache mirrors the player's economy on the client.
package economycache

import (
	"context"
	"sync"

	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/notify"
)

// Cache holds the last economy snapshot received from the server.
// It is only ever replaced wholesale.
type Cache struct {
	mu       sync.RWMutex
	snapshot model.EconomySnapshot
	loaded   bool

	subscribers notify.Registry[model.EconomySnapshot]
}

// New creates an empty cache
func New() *Cache {
	return &Cache{}
}

// Replace swaps in a new snapshot and notifies subscribers
func (c *Cache) Replace(ctx context.Context, snapshot model.EconomySnapshot) {
	c.mu.Lock()
	c.snapshot = snapshot
	c.loaded = true
	c.mu.Unlock()

	c.subscribers.Publish(ctx, snapshot)
}

// Snapshot returns the cached snapshot and whether one has been received
func (c *Cache) Snapshot() (model.EconomySnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.loaded
}

// GetCurrencyAmount returns the cached balance, 0 if absent
func (c *Cache) GetCurrencyAmount(key string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.Currency(key)
}

// GetItemAmount returns the cached item count, 0 if absent
func (c *Cache) GetItemAmount(itemID string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.Item(itemID)
}

// CanAfford reports whether the cached balances cover a purchase
func (c *Cache) CanAfford(def model.PurchaseDefinition) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for key, cost := range def.TotalCosts() {
		if c.snapshot.Currency(key) < cost {
			return false
		}
	}
	return true
}

// Subscribe registers fn to be called after every replacement
func (c *Cache) Subscribe(fn func(ctx context.Context, snapshot model.EconomySnapshot)) (unsubscribe func()) {
	return c.subscribers.Subscribe(fn)
}

// Clear forgets the cached snapshot without notifying subscribers
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = model.EconomySnapshot{}
	c.loaded = false
}
