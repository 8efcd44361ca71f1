package model

import (
	"fmt"
	"maps"
)

// CurrencyDefinition describes a currency and the balance new players start with
type CurrencyDefinition struct {
	ID      string `json:"id" yaml:"id"`
	Initial int64  `json:"initial" yaml:"initial"`
}

// CostEntry is one (currency, amount) pair of a purchase cost
type CostEntry struct {
	CurrencyKey string `json:"currency" yaml:"currency"`
	Amount      int64  `json:"amount" yaml:"amount"`
}

// RewardEntry is the item granted by a purchase
type RewardEntry struct {
	ItemID   string `json:"item" yaml:"item"`
	Quantity int64  `json:"quantity" yaml:"quantity"`
}

// PurchaseDefinition is a virtual purchase exchanging currency for an item
type PurchaseDefinition struct {
	ID     string      `json:"id" yaml:"id"`
	Costs  []CostEntry `json:"costs" yaml:"costs"`
	Reward RewardEntry `json:"reward" yaml:"reward"`
}

// TotalCosts sums the cost list per currency
func (d PurchaseDefinition) TotalCosts() map[string]int64 {
	totals := make(map[string]int64, len(d.Costs))
	for _, c := range d.Costs {
		totals[c.CurrencyKey] += c.Amount
	}
	return totals
}

// Validate checks the definition is well formed
func (d PurchaseDefinition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("purchase definition has no id")
	}
	for _, c := range d.Costs {
		if c.CurrencyKey == "" || c.Amount < 0 {
			return fmt.Errorf("purchase %s: invalid cost entry %+v", d.ID, c)
		}
	}
	if d.Reward.ItemID == "" || d.Reward.Quantity <= 0 {
		return fmt.Errorf("purchase %s: invalid reward %+v", d.ID, d.Reward)
	}
	return nil
}

// EconomyConfig is the synced remote configuration of the economy
type EconomyConfig struct {
	Currencies []CurrencyDefinition `json:"currencies" yaml:"currencies"`
	Purchases  []PurchaseDefinition `json:"purchases" yaml:"purchases"`
}

// Validate checks currency and purchase ids are unique and purchases are well formed
func (c EconomyConfig) Validate() error {
	currencies := make(map[string]bool, len(c.Currencies))
	for _, cur := range c.Currencies {
		if cur.ID == "" || cur.Initial < 0 {
			return fmt.Errorf("invalid currency definition %+v", cur)
		}
		if currencies[cur.ID] {
			return fmt.Errorf("duplicate currency %s", cur.ID)
		}
		currencies[cur.ID] = true
	}

	purchases := make(map[string]bool, len(c.Purchases))
	for _, p := range c.Purchases {
		if err := p.Validate(); err != nil {
			return err
		}
		if purchases[p.ID] {
			return fmt.Errorf("duplicate purchase %s", p.ID)
		}
		purchases[p.ID] = true
		for _, cost := range p.Costs {
			if !currencies[cost.CurrencyKey] {
				return fmt.Errorf("purchase %s: unknown currency %s", p.ID, cost.CurrencyKey)
			}
		}
	}
	return nil
}

// InitialBalances returns the starting balance of every currency
func (c EconomyConfig) InitialBalances() map[string]int64 {
	balances := make(map[string]int64, len(c.Currencies))
	for _, cur := range c.Currencies {
		balances[cur.ID] = cur.Initial
	}
	return balances
}

// EconomySnapshot is an immutable view of a player's currencies and inventory.
// Items with a zero amount are never present.
type EconomySnapshot struct {
	currencies map[string]int64
	items      map[string]int64
}

// NewEconomySnapshot copies the given maps and prunes zero-quantity items
func NewEconomySnapshot(currencies, items map[string]int64) EconomySnapshot {
	s := EconomySnapshot{
		currencies: make(map[string]int64, len(currencies)),
		items:      make(map[string]int64, len(items)),
	}
	maps.Copy(s.currencies, currencies)
	for id, qty := range items {
		if qty != 0 {
			s.items[id] = qty
		}
	}
	return s
}

// Currency returns the balance of a currency, 0 if absent
func (s EconomySnapshot) Currency(key string) int64 {
	return s.currencies[key]
}

// Item returns the quantity of an item, 0 if absent
func (s EconomySnapshot) Item(id string) int64 {
	return s.items[id]
}

// Currencies returns a copy of the currency balances
func (s EconomySnapshot) Currencies() map[string]int64 {
	return maps.Clone(nonNil(s.currencies))
}

// Inventory returns a copy of the item quantities
func (s EconomySnapshot) Inventory() map[string]int64 {
	return maps.Clone(nonNil(s.items))
}

// Equal compares two snapshots by value
func (s EconomySnapshot) Equal(other EconomySnapshot) bool {
	return maps.Equal(s.currencies, other.currencies) && maps.Equal(s.items, other.items)
}

func nonNil(m map[string]int64) map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return m
}

// SignInOutcome is the result of bootstrapping a player on sign-in.
// IsNewPlayer distinguishes the NewPlayer and ReturningPlayer cases.
type SignInOutcome struct {
	Profile     PlayerProfile
	Economy     EconomySnapshot
	IsNewPlayer bool
}
