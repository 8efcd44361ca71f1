package factory

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcoot/playerhub/internal/dependencies/mocks"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/services/bootstrap"
	"github.com/mcoot/playerhub/internal/services/catalog"
	"github.com/mcoot/playerhub/internal/services/identity"
	"github.com/mcoot/playerhub/internal/storage/memory"
	"github.com/mcoot/playerhub/internal/testutil"
)

// Test provider token settings
const (
	TestProviderIssuer = "playerhub-test"
	TestProviderSecret = "playerhub-test-secret"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock   *mocks.MockClock
	MockRandom  *mocks.MockRandom
	MemoryStore *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Every durable provider accepts tokens from ProviderToken and the default catalog is synced.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	verifiers := identity.Verifiers{}
	for _, kind := range model.DurableProviders {
		verifiers[kind] = identity.NewJWTVerifier([]byte(TestProviderSecret), TestProviderIssuer, mockClock)
	}

	app := newWithDependencies(dependencies{
		store:       store,
		storageType: StorageTypeMemory,
		clock:       mockClock,
		random:      mockRandom,
		verifiers:   verifiers,
		source:      catalog.StaticSource{Config: catalog.DefaultConfig()},
		identityCfg: identity.DefaultConfig(),
		bootstrap:   bootstrap.DefaultConfig(),
		registry:    prometheus.NewRegistry(),
		logger:      testutil.NopLogger(),
	})
	if err := app.Catalog.Sync(context.Background()); err != nil {
		panic(err)
	}

	return &TestApp{
		App:         app,
		MockClock:   mockClock,
		MockRandom:  mockRandom,
		MemoryStore: store,
	}
}

// ProviderToken issues a provider access token for subject, valid for an hour of mock time
func (t *TestApp) ProviderToken(subject string) string {
	token, err := identity.IssueProviderToken([]byte(TestProviderSecret), TestProviderIssuer, subject, t.MockClock.Now(), time.Hour)
	if err != nil {
		panic(err)
	}
	return token
}
