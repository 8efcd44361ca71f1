// Package apitest runs the full API over a real HTTP listener for client tests.
package apitest

import (
	"net/http/httptest"
	"testing"

	"github.com/mcoot/playerhub/internal/api"
	"github.com/mcoot/playerhub/internal/factory"
	"github.com/mcoot/playerhub/internal/metrics"
	"github.com/mcoot/playerhub/internal/testutil"
)

// Server is a running API backed by a test app
type Server struct {
	*httptest.Server
	App *factory.TestApp
}

// NewServer starts an API server backed by factory.NewTestApp.
// The server and app are closed when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()

	app := factory.NewTestApp()
	router := api.NewRouter(api.RouterConfig{
		Logger:           testutil.NopLogger(),
		IdentityService:  app.IdentityService,
		BootstrapService: app.BootstrapService,
		PurchaseService:  app.PurchaseService,
		Ledger:           app.Ledger,
		Catalog:          app.Catalog,
		HubManager:       app.HubManager,
		Metrics:          app.Metrics,
		MetricsHandler:   metrics.Handler(app.Registry),
		StorageType:      app.StorageType,
	})

	ts := httptest.NewServer(router)
	t.Cleanup(func() {
		_ = app.Close()
		ts.Close()
	})

	return &Server{Server: ts, App: app}
}
