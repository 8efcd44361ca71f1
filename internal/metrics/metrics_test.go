package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SignIn("social", ResultSuccess)
	c.SignIn("social", ResultSuccess)
	c.SignIn("social", ResultFailure)
	c.Bootstrapped(true)
	c.Bootstrapped(false)
	c.Bootstrapped(false)
	c.Purchase("HEALTH_POTION_VIRTUAL_PURCHASE", "insufficient_funds")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.signIns.WithLabelValues("social", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.signIns.WithLabelValues("social", ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.bootstraps.WithLabelValues("new")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.bootstraps.WithLabelValues("returning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.purchases.WithLabelValues("HEALTH_POTION_VIRTUAL_PURCHASE", "insufficient_funds")))
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.SeedFailed()
	c.HTTPRequest(http.MethodGet, "/api/v1/health", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "playerhub_starter_seed_failures_total 1")
	assert.Contains(t, string(body), `playerhub_http_requests_total{method="GET",route="/api/v1/health",status_code="200"} 1`)
}
