// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/storage"
)

// Suite runs the storage contract against the backend built by Factory.
// Backends embed it in their own suite and set Factory before running.
type Suite struct {
	suite.Suite
	Factory func(t *testing.T) storage.Storage

	Storage storage.Storage
	Ctx     context.Context
}

func (s *Suite) SetupTest() {
	s.Ctx = context.Background()
	s.Storage = s.Factory(s.T())
}

// Account tests

func (s *Suite) TestSaveAndGetAccount() {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	account := &model.Account{
		ID:        "player-1",
		Links:     []model.ProviderLink{{Kind: model.ProviderSocial, Subject: "alice", LinkedAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.Require().NoError(s.Storage.SaveAccount(s.Ctx, account))

	retrieved, err := s.Storage.GetAccount(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(account.ID, retrieved.ID)
	s.Require().Len(retrieved.Links, 1)
	s.Equal("alice", retrieved.Links[0].Subject)
	s.True(retrieved.CreatedAt.Equal(now))
}

func (s *Suite) TestGetAccountNotFound() {
	_, err := s.Storage.GetAccount(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestSavedAccountIsNotAliased() {
	account := &model.Account{ID: "player-1"}
	s.Require().NoError(s.Storage.SaveAccount(s.Ctx, account))

	account.Links = append(account.Links, model.ProviderLink{Kind: model.ProviderSocial, Subject: "x"})

	retrieved, err := s.Storage.GetAccount(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Empty(retrieved.Links)
}

func (s *Suite) TestDeleteAccount() {
	s.Require().NoError(s.Storage.SaveAccount(s.Ctx, &model.Account{ID: "player-1"}))
	s.Require().NoError(s.Storage.DeleteAccount(s.Ctx, "player-1"))

	_, err := s.Storage.GetAccount(s.Ctx, "player-1")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestUpdateAccount() {
	s.Require().NoError(s.Storage.SaveAccount(s.Ctx, &model.Account{ID: "player-1"}))

	updated, err := s.Storage.UpdateAccount(s.Ctx, "player-1", func(a *model.Account) error {
		return a.AddLink(model.ProviderLink{Kind: model.ProviderSocial, Subject: "alice"})
	})
	s.Require().NoError(err)
	s.True(updated.HasPrimaryID())

	retrieved, err := s.Storage.GetAccount(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal([]model.ProviderKind{model.ProviderSocial}, retrieved.LinkedProviders())
}

func (s *Suite) TestUpdateAccountNotFound() {
	called := false
	_, err := s.Storage.UpdateAccount(s.Ctx, "nonexistent", func(a *model.Account) error {
		called = true
		return nil
	})
	s.ErrorIs(err, model.ErrAccountNotFound)
	s.False(called)
}

func (s *Suite) TestUpdateAccountAbortsWithoutWriting() {
	s.Require().NoError(s.Storage.SaveAccount(s.Ctx, &model.Account{ID: "player-1"}))
	abort := errors.New("abort")

	_, err := s.Storage.UpdateAccount(s.Ctx, "player-1", func(a *model.Account) error {
		a.Links = append(a.Links, model.ProviderLink{Kind: model.ProviderSocial, Subject: "alice"})
		return abort
	})
	s.ErrorIs(err, abort)

	retrieved, err := s.Storage.GetAccount(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Empty(retrieved.Links)
}

func (s *Suite) TestUpdateAccountConcurrentLinksAreNotLost() {
	s.Require().NoError(s.Storage.SaveAccount(s.Ctx, &model.Account{ID: "player-1"}))

	var wg sync.WaitGroup
	for _, kind := range model.DurableProviders {
		wg.Add(1)
		go func(kind model.ProviderKind) {
			defer wg.Done()
			_, err := s.Storage.UpdateAccount(s.Ctx, "player-1", func(a *model.Account) error {
				return a.AddLink(model.ProviderLink{Kind: kind, Subject: "subject-" + string(kind)})
			})
			s.NoError(err)
		}(kind)
	}
	wg.Wait()

	retrieved, err := s.Storage.GetAccount(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.ElementsMatch(model.DurableProviders, retrieved.LinkedProviders())
}

// Provider index tests

func (s *Suite) TestBindProviderAndLookup() {
	s.Require().NoError(s.Storage.BindProvider(s.Ctx, model.ProviderSocial, "alice", "player-1"))

	id, err := s.Storage.LookupProvider(s.Ctx, model.ProviderSocial, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), id)
}

func (s *Suite) TestBindProviderSamePlayerIsIdempotent() {
	s.Require().NoError(s.Storage.BindProvider(s.Ctx, model.ProviderSocial, "alice", "player-1"))
	s.NoError(s.Storage.BindProvider(s.Ctx, model.ProviderSocial, "alice", "player-1"))
}

func (s *Suite) TestBindProviderFailsWhenBoundElsewhere() {
	s.Require().NoError(s.Storage.BindProvider(s.Ctx, model.ProviderSocial, "alice", "player-1"))

	err := s.Storage.BindProvider(s.Ctx, model.ProviderSocial, "alice", "player-2")
	s.ErrorIs(err, model.ErrAlreadyLinked)

	id, err := s.Storage.LookupProvider(s.Ctx, model.ProviderSocial, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), id)
}

func (s *Suite) TestBindProviderIsScopedByKind() {
	s.Require().NoError(s.Storage.BindProvider(s.Ctx, model.ProviderSocial, "alice", "player-1"))
	s.NoError(s.Storage.BindProvider(s.Ctx, model.ProviderConsoleStore, "alice", "player-2"))
}

func (s *Suite) TestBindProviderConcurrentOnlyOneWins() {
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Storage.BindProvider(s.Ctx, model.ProviderPlatformAccount, "shared",
				model.PlayerID(fmt.Sprintf("player-%d", i)))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			s.ErrorIs(err, model.ErrAlreadyLinked)
		}
	}
	s.Equal(1, winners)
}

func (s *Suite) TestUnbindProvider() {
	s.Require().NoError(s.Storage.BindProvider(s.Ctx, model.ProviderSocial, "alice", "player-1"))
	s.Require().NoError(s.Storage.UnbindProvider(s.Ctx, model.ProviderSocial, "alice"))

	_, err := s.Storage.LookupProvider(s.Ctx, model.ProviderSocial, "alice")
	s.ErrorIs(err, model.ErrProviderNotLinked)

	s.NoError(s.Storage.BindProvider(s.Ctx, model.ProviderSocial, "alice", "player-2"))
}

// Session tests

func (s *Suite) TestSaveAndGetSession() {
	now := time.Now().UTC().Truncate(time.Second)
	session := &model.Session{
		TokenHash: "hash-1",
		PlayerID:  "player-1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, session))

	retrieved, err := s.Storage.GetSession(s.Ctx, "hash-1")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), retrieved.PlayerID)
	s.True(retrieved.ExpiresAt.Equal(session.ExpiresAt))
}

func (s *Suite) TestGetSessionNotFound() {
	_, err := s.Storage.GetSession(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestDeleteSession() {
	now := time.Now()
	session := &model.Session{TokenHash: "hash-1", PlayerID: "player-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, session))
	s.Require().NoError(s.Storage.DeleteSession(s.Ctx, "hash-1"))

	_, err := s.Storage.GetSession(s.Ctx, "hash-1")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

// Player data tests

func (s *Suite) TestTryGetDataAbsentIsNotAnError() {
	value, found, err := s.Storage.TryGetData(s.Ctx, "player-1", storage.KeyPlayerData)
	s.Require().NoError(err)
	s.False(found)
	s.Empty(value)
}

func (s *Suite) TestSetAndTryGetData() {
	s.Require().NoError(s.Storage.SetData(s.Ctx, "player-1", storage.KeyPlayerName, "Alice"))

	value, found, err := s.Storage.TryGetData(s.Ctx, "player-1", storage.KeyPlayerName)
	s.Require().NoError(err)
	s.True(found)
	s.Equal("Alice", value)

	_, found, err = s.Storage.TryGetData(s.Ctx, "player-2", storage.KeyPlayerName)
	s.Require().NoError(err)
	s.False(found)
}

func (s *Suite) TestSetDataIfAbsentFirstWriterWins() {
	ok, err := s.Storage.SetDataIfAbsent(s.Ctx, "player-1", storage.KeyPlayerData, "first")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.Storage.SetDataIfAbsent(s.Ctx, "player-1", storage.KeyPlayerData, "second")
	s.Require().NoError(err)
	s.False(ok)

	value, _, err := s.Storage.TryGetData(s.Ctx, "player-1", storage.KeyPlayerData)
	s.Require().NoError(err)
	s.Equal("first", value)
}

func (s *Suite) TestUpdateDataCreatesAndModifies() {
	value, err := s.Storage.UpdateData(s.Ctx, "player-1", "counter", func(current string, found bool) (string, error) {
		s.False(found)
		return "1", nil
	})
	s.Require().NoError(err)
	s.Equal("1", value)

	value, err = s.Storage.UpdateData(s.Ctx, "player-1", "counter", func(current string, found bool) (string, error) {
		s.True(found)
		return current + "1", nil
	})
	s.Require().NoError(err)
	s.Equal("11", value)
}

func (s *Suite) TestUpdateDataAbortsWithoutWriting() {
	s.Require().NoError(s.Storage.SetData(s.Ctx, "player-1", "counter", "5"))
	abort := errors.New("abort")

	_, err := s.Storage.UpdateData(s.Ctx, "player-1", "counter", func(current string, found bool) (string, error) {
		return "", abort
	})
	s.ErrorIs(err, abort)

	value, _, err := s.Storage.TryGetData(s.Ctx, "player-1", "counter")
	s.Require().NoError(err)
	s.Equal("5", value)
}

func (s *Suite) TestUpdateDataConcurrentIncrementsAreNotLost() {
	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Storage.UpdateData(s.Ctx, "player-1", "counter", func(current string, found bool) (string, error) {
				var v int
				if found {
					_, _ = fmt.Sscanf(current, "%d", &v)
				}
				return fmt.Sprintf("%d", v+1), nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	value, _, err := s.Storage.TryGetData(s.Ctx, "player-1", "counter")
	s.Require().NoError(err)
	s.Equal(fmt.Sprintf("%d", n), value)
}

func (s *Suite) TestDeletePlayerData() {
	s.Require().NoError(s.Storage.SetData(s.Ctx, "player-1", storage.KeyPlayerData, "{}"))
	s.Require().NoError(s.Storage.SetData(s.Ctx, "player-2", storage.KeyPlayerData, "{}"))
	s.Require().NoError(s.Storage.DeletePlayerData(s.Ctx, "player-1"))

	_, found, err := s.Storage.TryGetData(s.Ctx, "player-1", storage.KeyPlayerData)
	s.Require().NoError(err)
	s.False(found)

	_, found, err = s.Storage.TryGetData(s.Ctx, "player-2", storage.KeyPlayerData)
	s.Require().NoError(err)
	s.True(found)
}
