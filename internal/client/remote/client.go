// Package remote is the HTTP client for the playerhub API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mcoot/playerhub/internal/api/apierr"
	"github.com/mcoot/playerhub/internal/api/request"
	"github.com/mcoot/playerhub/internal/api/response"
	"github.com/mcoot/playerhub/internal/model"
)

const apiPrefix = "/api/v1"

// Client is an HTTP client for the API
type Client struct {
	baseURL    string
	httpClient *http.Client
	streamHTTP *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the client used for request/response calls
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new API client
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamHTTP: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do performs a JSON request. A non-empty token is sent as a bearer token.
func (c *Client) do(ctx context.Context, method, path, token string, body, result any, headers map[string]string) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.TransportFailure{Message: method + " " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.TransportFailure{Message: "failed to read response", Err: err}
	}

	if resp.StatusCode >= 400 {
		var errResp apierr.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			return newError(resp.StatusCode, errResp.Error)
		}
		return &model.TransportFailure{Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &model.TransportFailure{Message: "failed to parse response", Err: err}
		}
	}
	return nil
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (model.PlayerIdentity, error) {
	var resp response.AuthResponse
	if err := c.do(ctx, http.MethodPost, path, "", body, &resp, nil); err != nil {
		return model.PlayerIdentity{}, err
	}
	return resp.Identity.ToModel(resp.SessionToken), nil
}

// Identity operations

// SignInAnonymously creates an anonymous account
func (c *Client) SignInAnonymously(ctx context.Context) (model.PlayerIdentity, error) {
	return c.authenticate(ctx, apiPrefix+"/auth/anonymous", nil)
}

// ResumeSession exchanges a stored session token for a fresh one
func (c *Client) ResumeSession(ctx context.Context, sessionToken string) (model.PlayerIdentity, error) {
	return c.authenticate(ctx, apiPrefix+"/auth/session", request.ResumeSessionRequest{SessionToken: sessionToken})
}

// SignInWithProvider signs in with a provider access token
func (c *Client) SignInWithProvider(ctx context.Context, kind model.ProviderKind, accessToken string) (model.PlayerIdentity, error) {
	path := apiPrefix + "/auth/providers/" + url.PathEscape(string(kind)) + "/sign-in"
	return c.authenticate(ctx, path, request.ProviderTokenRequest{AccessToken: accessToken})
}

// LinkProvider links a provider identity to the signed-in account
func (c *Client) LinkProvider(ctx context.Context, sessionToken string, kind model.ProviderKind, accessToken string) (model.PlayerIdentity, error) {
	var resp response.Identity
	path := apiPrefix + "/auth/providers/" + url.PathEscape(string(kind)) + "/link"
	if err := c.do(ctx, http.MethodPost, path, sessionToken, request.ProviderTokenRequest{AccessToken: accessToken}, &resp, nil); err != nil {
		return model.PlayerIdentity{}, err
	}
	return resp.ToModel(sessionToken), nil
}

// UnlinkProvider removes a provider from the signed-in account
func (c *Client) UnlinkProvider(ctx context.Context, sessionToken string, kind model.ProviderKind) (model.PlayerIdentity, error) {
	var resp response.Identity
	path := apiPrefix + "/auth/providers/" + url.PathEscape(string(kind))
	if err := c.do(ctx, http.MethodDelete, path, sessionToken, nil, &resp, nil); err != nil {
		return model.PlayerIdentity{}, err
	}
	return resp.ToModel(sessionToken), nil
}

// Me returns the identity behind a session token
func (c *Client) Me(ctx context.Context, sessionToken string) (model.PlayerIdentity, error) {
	var resp response.Identity
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/auth/me", sessionToken, nil, &resp, nil); err != nil {
		return model.PlayerIdentity{}, err
	}
	return resp.ToModel(sessionToken), nil
}

// SignOut invalidates a session token on the server
func (c *Client) SignOut(ctx context.Context, sessionToken string) error {
	return c.do(ctx, http.MethodPost, apiPrefix+"/auth/sign-out", sessionToken, nil, nil, nil)
}

// DeleteAccount deletes the signed-in account and all its data
func (c *Client) DeleteAccount(ctx context.Context, sessionToken string) error {
	return c.do(ctx, http.MethodDelete, apiPrefix+"/auth/me", sessionToken, nil, nil, nil)
}

// Player and economy operations

// HandlePlayerSignIn bootstraps the player's profile and economy
func (c *Client) HandlePlayerSignIn(ctx context.Context, sessionToken string) (model.SignInOutcome, error) {
	var resp response.SignInResponse
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/player/sign-in", sessionToken, nil, &resp, nil); err != nil {
		return model.SignInOutcome{}, err
	}
	return resp.ToModel(), nil
}

// GetProfile returns the player's profile
func (c *Client) GetProfile(ctx context.Context, sessionToken string) (model.PlayerProfile, error) {
	var resp response.Profile
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/player", sessionToken, nil, &resp, nil); err != nil {
		return model.PlayerProfile{}, err
	}
	return resp.ToModel(), nil
}

// HandleNewPlayerNameEntry sets the player's display name
func (c *Client) HandleNewPlayerNameEntry(ctx context.Context, sessionToken, name string) (model.PlayerProfile, error) {
	var resp response.Profile
	if err := c.do(ctx, http.MethodPut, apiPrefix+"/player/name", sessionToken, request.SetNameRequest{DisplayName: name}, &resp, nil); err != nil {
		return model.PlayerProfile{}, err
	}
	return resp.ToModel(), nil
}

// GetPlayerEconomyData returns the player's economy snapshot
func (c *Client) GetPlayerEconomyData(ctx context.Context, sessionToken string) (model.EconomySnapshot, error) {
	var resp response.Economy
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/economy", sessionToken, nil, &resp, nil); err != nil {
		return model.EconomySnapshot{}, err
	}
	return resp.ToModel(), nil
}

// VirtualPurchase performs a purchase. A non-empty idempotency key makes retries safe.
func (c *Client) VirtualPurchase(ctx context.Context, sessionToken, purchaseID, idempotencyKey string) (model.EconomySnapshot, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{request.IdempotencyKeyHeader: idempotencyKey}
	}
	var resp response.Economy
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/economy/purchases", sessionToken, request.PurchaseRequest{PurchaseID: purchaseID}, &resp, headers); err != nil {
		return model.EconomySnapshot{}, err
	}
	return resp.ToModel(), nil
}

// Load fetches the economy configuration, making the client a catalog source
func (c *Client) Load(ctx context.Context) (model.EconomyConfig, error) {
	var resp response.EconomyConfig
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/config/economy", "", nil, &resp, nil); err != nil {
		return model.EconomyConfig{}, err
	}
	return resp.Config, nil
}

// Health checks the server
func (c *Client) Health(ctx context.Context) (response.Health, error) {
	var resp response.Health
	err := c.do(ctx, http.MethodGet, apiPrefix+"/health", "", nil, &resp, nil)
	return resp, err
}
