package remote_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/playerhub/internal/api/apierr"
	"github.com/mcoot/playerhub/internal/client/remote"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/services/catalog"
	"github.com/mcoot/playerhub/internal/services/identity"
	"github.com/mcoot/playerhub/internal/testutil/apitest"
)

func setup(t *testing.T) (*remote.Client, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer(t)
	return remote.New(srv.URL), srv
}

func TestClient_AnonymousLifecycle(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	id, err := c.SignInAnonymously(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id.PlayerID)
	assert.NotEmpty(t, id.SessionToken)
	assert.False(t, id.HasPrimaryID)
	assert.Empty(t, id.LinkedProviders)

	me, err := c.Me(ctx, id.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, id.PlayerID, me.PlayerID)

	resumed, err := c.ResumeSession(ctx, id.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, id.PlayerID, resumed.PlayerID)
	assert.NotEqual(t, id.SessionToken, resumed.SessionToken)

	_, err = c.Me(ctx, id.SessionToken)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)

	require.NoError(t, c.SignOut(ctx, resumed.SessionToken))
	_, err = c.Me(ctx, resumed.SessionToken)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestClient_BootstrapAndPurchase(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	id, err := c.SignInAnonymously(ctx)
	require.NoError(t, err)

	_, err = c.GetProfile(ctx, id.SessionToken)
	assert.ErrorIs(t, err, model.ErrPlayerNotFound)

	outcome, err := c.HandlePlayerSignIn(ctx, id.SessionToken)
	require.NoError(t, err)
	assert.True(t, outcome.IsNewPlayer)
	assert.Equal(t, model.DefaultDisplayName, outcome.Profile.DisplayName)
	assert.EqualValues(t, 3, outcome.Economy.Item(catalog.ItemHealthPotion))
	assert.EqualValues(t, catalog.DefaultStartingGold, outcome.Economy.Currency(catalog.CurrencyGold))

	profile, err := c.HandleNewPlayerNameEntry(ctx, id.SessionToken, "Hero42")
	require.NoError(t, err)
	assert.Equal(t, "Hero42", profile.DisplayName)

	_, err = c.HandleNewPlayerNameEntry(ctx, id.SessionToken, "x")
	assert.ErrorIs(t, err, model.ErrInvalidDisplayName)

	snap, err := c.VirtualPurchase(ctx, id.SessionToken, catalog.PurchaseHealthPotion, "key-1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, snap.Item(catalog.ItemHealthPotion))
	assert.EqualValues(t, 0, snap.Currency(catalog.CurrencyGold))

	// Retried with the same key, the purchase is not applied twice
	again, err := c.VirtualPurchase(ctx, id.SessionToken, catalog.PurchaseHealthPotion, "key-1")
	require.NoError(t, err)
	assert.True(t, snap.Equal(again))

	_, err = c.VirtualPurchase(ctx, id.SessionToken, catalog.PurchaseHealthPotion, "key-2")
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	var apiErr *remote.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 409, apiErr.Status)

	_, err = c.VirtualPurchase(ctx, id.SessionToken, "NOPE", "")
	assert.ErrorIs(t, err, model.ErrUnknownPurchase)

	econ, err := c.GetPlayerEconomyData(ctx, id.SessionToken)
	require.NoError(t, err)
	assert.True(t, snap.Equal(econ))
}

func TestClient_Providers(t *testing.T) {
	c, srv := setup(t)
	ctx := context.Background()

	anon, err := c.SignInAnonymously(ctx)
	require.NoError(t, err)

	linked, err := c.LinkProvider(ctx, anon.SessionToken, model.ProviderSocial, srv.App.ProviderToken("alice"))
	require.NoError(t, err)
	assert.Equal(t, anon.PlayerID, linked.PlayerID)
	assert.True(t, linked.HasPrimaryID)
	assert.True(t, linked.IsLinked(model.ProviderSocial))

	viaProvider, err := c.SignInWithProvider(ctx, model.ProviderSocial, srv.App.ProviderToken("alice"))
	require.NoError(t, err)
	assert.Equal(t, anon.PlayerID, viaProvider.PlayerID)

	other, err := c.SignInAnonymously(ctx)
	require.NoError(t, err)
	_, err = c.LinkProvider(ctx, other.SessionToken, model.ProviderSocial, srv.App.ProviderToken("alice"))
	assert.ErrorIs(t, err, model.ErrAlreadyLinked)

	unlinked, err := c.UnlinkProvider(ctx, anon.SessionToken, model.ProviderSocial)
	require.NoError(t, err)
	assert.False(t, unlinked.HasPrimaryID)

	_, err = c.UnlinkProvider(ctx, anon.SessionToken, model.ProviderSocial)
	assert.ErrorIs(t, err, model.ErrProviderNotLinked)

	_, err = c.SignInWithProvider(ctx, model.ProviderSocial, "garbage")
	var authErr *model.AuthFailure
	assert.True(t, errors.As(err, &authErr))

	_, err = c.SignInWithProvider(ctx, model.ProviderKind("mystery"), srv.App.ProviderToken("alice"))
	assert.ErrorIs(t, err, model.ErrInvalidProvider)
}

func TestClient_AuthFailureKeepsProviderCode(t *testing.T) {
	c, srv := setup(t)
	ctx := context.Background()

	token := srv.App.ProviderToken("alice")
	srv.App.MockClock.Advance(2 * time.Hour)

	_, err := c.SignInWithProvider(ctx, model.ProviderSocial, token)
	var authErr *model.AuthFailure
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, identity.CodeExpiredToken, authErr.Code)
	assert.Equal(t, "access token is expired", authErr.Message)

	var remoteErr *remote.Error
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, apierr.CodeAuthFailed, remoteErr.Code)
	assert.Equal(t, identity.CodeExpiredToken, remoteErr.Reason)

	_, err = c.SignInWithProvider(ctx, model.ProviderSocial, "garbage")
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, identity.CodeInvalidToken, authErr.Code)
}

func TestClient_DeleteAccount(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	id, err := c.SignInAnonymously(ctx)
	require.NoError(t, err)
	require.NoError(t, c.DeleteAccount(ctx, id.SessionToken))

	_, err = c.Me(ctx, id.SessionToken)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestClient_LoadAndHealth(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	cfg, err := c.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cfg.Purchases, 1)
	assert.Equal(t, catalog.PurchaseHealthPotion, cfg.Purchases[0].ID)

	var _ catalog.Source = c

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
}

func TestClient_TransportFailure(t *testing.T) {
	c := remote.New("http://127.0.0.1:1")

	_, err := c.SignInAnonymously(context.Background())
	var transportErr *model.TransportFailure
	assert.True(t, errors.As(err, &transportErr))
}

func waitForSubscriber(t *testing.T, srv *apitest.Server, playerID model.PlayerID) {
	t.Helper()
	require.Eventually(t, func() bool {
		hub := srv.App.HubManager.GetHub(playerID)
		return hub != nil && hub.ClientCount() > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_StreamEconomy(t *testing.T) {
	c, srv := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := c.SignInAnonymously(ctx)
	require.NoError(t, err)

	updates := make(chan model.EconomyUpdate, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.StreamEconomy(ctx, id.SessionToken, func(u model.EconomyUpdate) { updates <- u })
	}()

	waitForSubscriber(t, srv, id.PlayerID)
	_, err = c.HandlePlayerSignIn(ctx, id.SessionToken)
	require.NoError(t, err)

	select {
	case u := <-updates:
		assert.Equal(t, model.EconomyUpdateGrant, u.Reason)
		assert.EqualValues(t, 3, u.Snapshot.Item(catalog.ItemHealthPotion))
	case <-time.After(3 * time.Second):
		t.Fatal("no economy update received")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestClient_StreamEconomyUnauthorized(t *testing.T) {
	c, _ := setup(t)

	err := c.StreamEconomy(context.Background(), "bogus", func(model.EconomyUpdate) {})
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}
