package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playerhub/internal/dependencies/mocks"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/testutil"
)

type failingSource struct{ err error }

func (f failingSource) Load(ctx context.Context) (model.EconomyConfig, error) {
	return model.EconomyConfig{}, f.err
}

type StoreSuite struct {
	suite.Suite
	clock *mocks.MockClock
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.ctx = context.Background()
}

func (s *StoreSuite) newStore(src Source) *Store {
	return New(src, s.clock, testutil.NopLogger())
}

func (s *StoreSuite) TestLookupBeforeSyncFails() {
	store := s.newStore(StaticSource{Config: DefaultConfig()})

	_, err := store.Purchase(PurchaseHealthPotion)
	s.ErrorIs(err, model.ErrConfigNotSynced)
	s.False(store.IsSynced())
}

func (s *StoreSuite) TestSyncMakesDefinitionsAvailable() {
	store := s.newStore(StaticSource{Config: DefaultConfig()})
	s.Require().NoError(store.Sync(s.ctx))

	def, err := store.Purchase(PurchaseHealthPotion)
	s.Require().NoError(err)
	s.Equal(map[string]int64{CurrencyGold: 20}, def.TotalCosts())
	s.Equal(ItemHealthPotion, def.Reward.ItemID)
	s.Equal(s.clock.Now(), store.SyncedAt())

	balances, err := store.InitialBalances()
	s.Require().NoError(err)
	s.Equal(int64(20), balances[CurrencyGold])
}

func (s *StoreSuite) TestUnknownPurchase() {
	store := s.newStore(StaticSource{Config: DefaultConfig()})
	s.Require().NoError(store.Sync(s.ctx))

	_, err := store.Purchase("NOPE")
	s.ErrorIs(err, model.ErrUnknownPurchase)
}

func (s *StoreSuite) TestSyncNotifiesObserversAfterUpdate() {
	store := s.newStore(StaticSource{Config: DefaultConfig()})

	var seen []Synced
	unsubscribe := store.OnSynced(func(ctx context.Context, ev Synced) {
		// The new config must already be readable when observers run
		_, err := store.Purchase(PurchaseHealthPotion)
		s.NoError(err)
		seen = append(seen, ev)
	})

	s.Require().NoError(store.Sync(s.ctx))
	unsubscribe()
	s.Require().NoError(store.Sync(s.ctx))

	s.Len(seen, 1)
	s.Len(seen[0].Config.Purchases, 1)
}

func (s *StoreSuite) TestFailedSyncKeepsPreviousConfig() {
	src := &switchingSource{cfg: DefaultConfig()}
	store := s.newStore(src)
	s.Require().NoError(store.Sync(s.ctx))

	src.err = errors.New("unreachable")
	s.Error(store.Sync(s.ctx))

	_, err := store.Purchase(PurchaseHealthPotion)
	s.NoError(err)
}

func (s *StoreSuite) TestSyncFailurePropagates() {
	store := s.newStore(failingSource{err: errors.New("boom")})
	s.Error(store.Sync(s.ctx))
	s.False(store.IsSynced())
}

func (s *StoreSuite) TestInvalidConfigIsRejected() {
	cfg := DefaultConfig()
	cfg.Purchases[0].Costs[0].CurrencyKey = "GEMS"
	store := s.newStore(StaticSource{Config: cfg})

	s.Error(store.Sync(s.ctx))
	s.False(store.IsSynced())
}

func (s *StoreSuite) TestFileSource() {
	path := filepath.Join(s.T().TempDir(), "economy.yaml")
	s.T().Setenv("TEST_POTION_COST", "35")
	content := `
currencies:
  - id: GOLD
    initial: 50
  - id: GEMS
    initial: 0
purchases:
  - id: POTION
    costs:
      - currency: GOLD
        amount: ${TEST_POTION_COST}
      - currency: GOLD
        amount: 5
    reward:
      item: HEALTH_POTION
      quantity: 2
`
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))

	store := s.newStore(FileSource{Path: path})
	s.Require().NoError(store.Sync(s.ctx))

	def, err := store.Purchase("POTION")
	s.Require().NoError(err)
	s.Equal(map[string]int64{"GOLD": 40}, def.TotalCosts())
	s.Equal(int64(2), def.Reward.Quantity)

	balances, err := store.InitialBalances()
	s.Require().NoError(err)
	s.Equal(map[string]int64{"GOLD": 50, "GEMS": 0}, balances)
}

func (s *StoreSuite) TestFileSourceMissingFile() {
	store := s.newStore(FileSource{Path: filepath.Join(s.T().TempDir(), "missing.yaml")})
	s.Error(store.Sync(s.ctx))
}

type switchingSource struct {
	cfg model.EconomyConfig
	err error
}

func (s *switchingSource) Load(ctx context.Context) (model.EconomyConfig, error) {
	if s.err != nil {
		return model.EconomyConfig{}, s.err
	}
	return s.cfg, nil
}
