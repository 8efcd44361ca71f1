package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/mcoot/playerhub/internal/api"
	"github.com/mcoot/playerhub/internal/api/apierr"
	"github.com/mcoot/playerhub/internal/api/middleware"
	"github.com/mcoot/playerhub/internal/api/response"
	"github.com/mcoot/playerhub/internal/factory"
	"github.com/mcoot/playerhub/internal/metrics"
	"github.com/mcoot/playerhub/internal/services/catalog"
	"github.com/mcoot/playerhub/internal/services/identity"
	"github.com/mcoot/playerhub/internal/testutil"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

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
		RateLimiter:      limiter,
		StorageType:      app.StorageType,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, token string, headers ...string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) signInAnonymously(t *testing.T) response.AuthResponse {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/auth/anonymous", nil, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp response.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestSignInAnonymously(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.signInAnonymously(t)
	assert.NotEmpty(t, resp.SessionToken)
	assert.NotEmpty(t, resp.Identity.PlayerID)
	assert.Empty(t, resp.Identity.LinkedProviders)
	assert.False(t, resp.Identity.HasPrimaryID)
	assert.True(t, resp.Created)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.request(http.MethodGet, "/api/v1/economy", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeUnauthorized, decodeError(t, rr).Code)

	rr = ts.request(http.MethodGet, "/api/v1/economy", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestResumeSessionRotatesToken(t *testing.T) {
	ts := newTestServer(t, nil)
	first := ts.signInAnonymously(t)

	rr := ts.request(http.MethodPost, "/api/v1/auth/session", map[string]string{"session_token": first.SessionToken}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resumed response.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resumed))
	assert.Equal(t, first.Identity.PlayerID, resumed.Identity.PlayerID)
	assert.NotEqual(t, first.SessionToken, resumed.SessionToken)

	rr = ts.request(http.MethodGet, "/api/v1/auth/me", nil, first.SessionToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPlayerSignInAndPurchase(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := ts.signInAnonymously(t)

	rr := ts.request(http.MethodPost, "/api/v1/player/sign-in", nil, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var signIn response.SignInResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &signIn))
	assert.True(t, signIn.IsNewPlayer)
	assert.Equal(t, "New Player", signIn.Profile.DisplayName)
	assert.Equal(t, int64(20), signIn.Economy.Currencies[catalog.CurrencyGold])
	assert.Equal(t, int64(3), signIn.Economy.Inventory[catalog.ItemHealthPotion])

	body := map[string]string{"purchase_id": catalog.PurchaseHealthPotion}
	rr = ts.request(http.MethodPost, "/api/v1/economy/purchases", body, auth.SessionToken, "Idempotency-Key", "buy-1")
	require.Equal(t, http.StatusOK, rr.Code)

	var economy response.Economy
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &economy))
	assert.Equal(t, int64(0), economy.Currencies[catalog.CurrencyGold])
	assert.Equal(t, int64(4), economy.Inventory[catalog.ItemHealthPotion])

	// Retrying with the same key does not charge again
	rr = ts.request(http.MethodPost, "/api/v1/economy/purchases", body, auth.SessionToken, "Idempotency-Key", "buy-1")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &economy))
	assert.Equal(t, int64(4), economy.Inventory[catalog.ItemHealthPotion])

	rr = ts.request(http.MethodPost, "/api/v1/economy/purchases", body, auth.SessionToken, "Idempotency-Key", "buy-2")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeInsufficientFunds, decodeError(t, rr).Code)

	rr = ts.request(http.MethodGet, "/api/v1/economy", nil, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &economy))
	assert.Equal(t, int64(4), economy.Inventory[catalog.ItemHealthPotion])
}

func TestPurchaseUnknown(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := ts.signInAnonymously(t)

	rr := ts.request(http.MethodPost, "/api/v1/economy/purchases", map[string]string{"purchase_id": "NOPE"}, auth.SessionToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeUnknownPurchase, decodeError(t, rr).Code)
}

func TestSetName(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := ts.signInAnonymously(t)

	rr := ts.request(http.MethodPut, "/api/v1/player/name", map[string]string{"display_name": "Alice"}, auth.SessionToken)
	assert.Equal(t, http.StatusNotFound, rr.Code, "profile does not exist before sign-in")

	rr = ts.request(http.MethodPost, "/api/v1/player/sign-in", nil, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPut, "/api/v1/player/name", map[string]string{"display_name": "Alice"}, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var profile response.Profile
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &profile))
	assert.Equal(t, "Alice", profile.DisplayName)

	rr = ts.request(http.MethodPut, "/api/v1/player/name", map[string]string{"display_name": "Al!"}, auth.SessionToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidName, decodeError(t, rr).Code)
}

func TestProviderSignInLinkAndUnlink(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.request(http.MethodPost, "/api/v1/auth/providers/social/sign-in",
		map[string]string{"access_token": ts.app.ProviderToken("fb-1")}, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	var owner response.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &owner))
	assert.True(t, owner.Identity.HasPrimaryID)
	assert.Equal(t, []string{"social"}, owner.Identity.LinkedProviders)

	// The same identity cannot be linked to another player
	anon := ts.signInAnonymously(t)
	rr = ts.request(http.MethodPost, "/api/v1/auth/providers/social/link",
		map[string]string{"access_token": ts.app.ProviderToken("fb-1")}, anon.SessionToken)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeAlreadyLinked, decodeError(t, rr).Code)

	// A fresh identity can
	rr = ts.request(http.MethodPost, "/api/v1/auth/providers/console_store/link",
		map[string]string{"access_token": ts.app.ProviderToken("cs-9")}, anon.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var linked response.Identity
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &linked))
	assert.Equal(t, anon.Identity.PlayerID, linked.PlayerID)
	assert.True(t, linked.HasPrimaryID)

	rr = ts.request(http.MethodDelete, "/api/v1/auth/providers/console_store", nil, anon.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &linked))
	assert.Equal(t, anon.Identity.PlayerID, linked.PlayerID)
	assert.False(t, linked.HasPrimaryID)
}

func TestProviderSignInRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.request(http.MethodPost, "/api/v1/auth/providers/myspace/sign-in", map[string]string{"access_token": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidProvider, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/auth/providers/social/sign-in", map[string]string{"access_token": "garbage"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, apierr.CodeAuthFailed, apiErr.Code)
	assert.Equal(t, identity.CodeInvalidToken, apiErr.Reason)

	token := ts.app.ProviderToken("alice")
	ts.app.MockClock.Advance(2 * time.Hour)
	rr = ts.request(http.MethodPost, "/api/v1/auth/providers/social/sign-in", map[string]string{"access_token": token}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	apiErr = decodeError(t, rr)
	assert.Equal(t, apierr.CodeAuthFailed, apiErr.Code)
	assert.Equal(t, identity.CodeExpiredToken, apiErr.Reason)
}

func TestSignOutAndDelete(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := ts.signInAnonymously(t)

	rr := ts.request(http.MethodPost, "/api/v1/auth/sign-out", nil, auth.SessionToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = ts.request(http.MethodGet, "/api/v1/auth/me", nil, auth.SessionToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	other := ts.signInAnonymously(t)
	rr = ts.request(http.MethodDelete, "/api/v1/auth/me", nil, other.SessionToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = ts.request(http.MethodGet, "/api/v1/auth/me", nil, other.SessionToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestEconomyConfig(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.request(http.MethodGet, "/api/v1/config/economy", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.EconomyConfig
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Config.Purchases, 1)
	assert.Equal(t, catalog.PurchaseHealthPotion, resp.Config.Purchases[0].ID)
}

func TestAuthRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: rate.Limit(0.001), Burst: 2}, testutil.NopLogger())
	t.Cleanup(limiter.Stop)
	ts := newTestServer(t, limiter)

	for range 2 {
		rr := ts.request(http.MethodPost, "/api/v1/auth/anonymous", nil, "")
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := ts.request(http.MethodPost, "/api/v1/auth/anonymous", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, apierr.CodeRateLimited, decodeError(t, rr).Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Other routes are not limited
	rr = ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: rate.Limit(0.001), Burst: 2}, testutil.NopLogger())
	t.Cleanup(limiter.Stop)
	ts := newTestServer(t, limiter)

	for i := range 2 {
		rr := ts.request(http.MethodPost, "/api/v1/auth/anonymous", nil, "", "X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	// A fresh forwarded address does not buy a fresh limiter
	rr := ts.request(http.MethodPost, "/api/v1/auth/anonymous", nil, "", "X-Forwarded-For", "10.0.0.99")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, 1, limiter.LimiterCount())
}

func TestAuthRateLimitTrustedForwardedFor(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: rate.Limit(0.001), Burst: 1, TrustForwardedFor: true}, testutil.NopLogger())
	t.Cleanup(limiter.Stop)
	ts := newTestServer(t, limiter)

	rr := ts.request(http.MethodPost, "/api/v1/auth/anonymous", nil, "", "X-Forwarded-For", "10.0.0.1, 172.16.0.1")
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = ts.request(http.MethodPost, "/api/v1/auth/anonymous", nil, "", "X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/auth/anonymous", nil, "", "X-Forwarded-For", "10.0.0.2")
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 2, limiter.LimiterCount())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signInAnonymously(t)

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "playerhub_sign_ins_total")
	assert.Contains(t, rr.Body.String(), `route="/api/v1/auth/anonymous"`)
}

func TestEconomyEventsStream(t *testing.T) {
	ts := newTestServer(t, nil)
	server := httptest.NewServer(ts.handler)
	t.Cleanup(server.Close)

	auth := ts.signInAnonymously(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/economy/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+auth.SessionToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				if event != "" {
					return event, data
				}
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data += strings.TrimPrefix(line, "data: ")
			}
		}
	}

	event, _ := readEvent()
	require.Equal(t, "connected", event)

	rr := ts.request(http.MethodPost, "/api/v1/player/sign-in", nil, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)

	event, data := readEvent()
	require.Equal(t, "economy", event)
	var pushed response.EconomyEvent
	require.NoError(t, json.Unmarshal([]byte(data), &pushed))
	assert.Equal(t, "grant", pushed.Reason)
	assert.Equal(t, int64(3), pushed.Economy.Inventory[catalog.ItemHealthPotion])
}
