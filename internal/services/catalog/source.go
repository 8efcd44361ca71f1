package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/playerhub/internal/model"
)

// Well-known economy ids used by the default configuration
const (
	CurrencyGold               = "GOLD"
	ItemHealthPotion           = "HEALTH_POTION"
	PurchaseHealthPotion       = "HEALTH_POTION_VIRTUAL_PURCHASE"
	DefaultStartingGold  int64 = 20
	DefaultPotionCost    int64 = 20
)

// Source loads the economy configuration from wherever it is published
type Source interface {
	Load(ctx context.Context) (model.EconomyConfig, error)
}

// DefaultConfig returns the built-in economy configuration
func DefaultConfig() model.EconomyConfig {
	return model.EconomyConfig{
		Currencies: []model.CurrencyDefinition{
			{ID: CurrencyGold, Initial: DefaultStartingGold},
		},
		Purchases: []model.PurchaseDefinition{
			{
				ID:     PurchaseHealthPotion,
				Costs:  []model.CostEntry{{CurrencyKey: CurrencyGold, Amount: DefaultPotionCost}},
				Reward: model.RewardEntry{ItemID: ItemHealthPotion, Quantity: 1},
			},
		},
	}
}

// StaticSource serves a fixed configuration
type StaticSource struct {
	Config model.EconomyConfig
}

// Load returns the static configuration
func (s StaticSource) Load(ctx context.Context) (model.EconomyConfig, error) {
	return s.Config, nil
}

// FileSource reads the configuration from a YAML file.
// Environment variables in the file are expanded before parsing.
type FileSource struct {
	Path string
}

// Load reads and parses the file on every call
func (s FileSource) Load(ctx context.Context) (model.EconomyConfig, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return model.EconomyConfig{}, fmt.Errorf("reading economy config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg model.EconomyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.EconomyConfig{}, fmt.Errorf("parsing economy config: %w", err)
	}
	return cfg, nil
}
