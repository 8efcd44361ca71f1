package consolidation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playerhub/internal/client/session"
	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/testutil"
)

type EngineSuite struct {
	suite.Suite
	ctx    context.Context
	world  *world
	store  *session.MemoryStore
	engine *Engine

	signedIn  []SignedIn
	signedOut []SignedOut
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.world = newWorld()
	s.store = session.NewMemoryStore()
	s.signedIn = nil
	s.signedOut = nil
	s.engine = s.newEngine()
}

func (s *EngineSuite) newEngine() *Engine {
	e := New(s.world, s.store, testutil.NopLogger())
	e.OnSignedIn(func(_ context.Context, ev SignedIn) { s.signedIn = append(s.signedIn, ev) })
	e.OnSignedOut(func(_ context.Context, ev SignedOut) { s.signedOut = append(s.signedOut, ev) })
	return e
}

func (s *EngineSuite) provider(kind model.ProviderKind, subject string) *fakeProvider {
	return &fakeProvider{w: s.world, kind: kind, subject: subject}
}

func (s *EngineSuite) persisted() *session.Record {
	rec, err := s.store.Load()
	s.Require().NoError(err)
	return rec
}

// Start / resume

func (s *EngineSuite) TestStart_NothingPersisted() {
	resumed, err := s.engine.Start(s.ctx)
	s.Require().NoError(err)
	s.False(resumed)
	s.Equal(Unauthenticated, s.engine.Status().State)
	s.Empty(s.signedIn)
}

func (s *EngineSuite) TestStart_ResumesAnonymousSession() {
	first, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)

	e := s.newEngine()
	resumed, err := e.Start(s.ctx)
	s.Require().NoError(err)
	s.True(resumed)

	status := e.Status()
	s.Equal(AnonymousSession, status.State)
	s.Equal(first.PlayerID, status.Identity.PlayerID)
	s.NotEqual(first.SessionToken, status.Identity.SessionToken)
	s.Equal(status.Identity.SessionToken, s.persisted().SessionToken)

	s.Require().Len(s.signedIn, 2)
	s.True(s.signedIn[1].Resumed)
}

func (s *EngineSuite) TestStart_DurableSessionIsFullyConsolidated() {
	_, err := s.engine.SignInOrLinkWithProvider(s.ctx, s.provider(model.ProviderSocial, "alice"))
	s.Require().NoError(err)

	e := s.newEngine()
	resumed, err := e.Start(s.ctx)
	s.Require().NoError(err)
	s.True(resumed)
	s.Equal(FullyConsolidated, e.Status().State)
	s.True(e.Status().Identity.HasPrimaryID)
}

func (s *EngineSuite) TestStart_RejectedSessionIsCleared() {
	s.Require().NoError(s.store.Save(session.Record{PlayerID: "gone", SessionToken: "stale"}))

	resumed, err := s.engine.Start(s.ctx)
	s.ErrorIs(err, model.ErrSessionNotFound)
	s.False(resumed)
	s.Nil(s.persisted())
	s.Equal(Unauthenticated, s.engine.Status().State)
}

func (s *EngineSuite) TestStart_DeletedPlayerSessionIsCleared() {
	s.Require().NoError(s.store.Save(session.Record{PlayerID: "deleted", SessionToken: "tok"}))
	s.world.resumeErr = model.ErrPlayerNotFound

	resumed, err := s.engine.Start(s.ctx)
	s.ErrorIs(err, model.ErrPlayerNotFound)
	s.False(resumed)
	s.Nil(s.persisted())
	s.Equal(Unauthenticated, s.engine.Status().State)
}

func (s *EngineSuite) TestStart_TransportFailureKeepsSession() {
	s.Require().NoError(s.store.Save(session.Record{PlayerID: "p", SessionToken: "tok"}))
	s.world.resumeErr = &model.TransportFailure{Message: "offline"}

	_, err := s.engine.Start(s.ctx)
	var transportErr *model.TransportFailure
	s.True(errors.As(err, &transportErr))
	s.NotNil(s.persisted())
}

func (s *EngineSuite) TestStart_WhenAuthenticated() {
	_, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)

	_, err = s.engine.Start(s.ctx)
	s.ErrorIs(err, model.ErrAlreadyAuthenticated)
}

// Anonymous sign-in

func (s *EngineSuite) TestSignInAnonymously() {
	id, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)
	s.NotEmpty(id.PlayerID)
	s.False(id.HasPrimaryID)

	status := s.engine.Status()
	s.Equal(AnonymousSession, status.State)
	s.Empty(status.Provider)
	s.Equal(session.RecordFromIdentity(id), *s.persisted())

	s.Require().Len(s.signedIn, 1)
	s.Equal(SignedIn{Identity: id}, s.signedIn[0])
}

func (s *EngineSuite) TestSignInAnonymously_OnlyFromUnauthenticated() {
	_, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)

	_, err = s.engine.SignInAnonymously(s.ctx)
	s.ErrorIs(err, model.ErrAlreadyAuthenticated)
	s.Len(s.signedIn, 1)
}

func (s *EngineSuite) TestSignInAnonymously_ResumesPersistedAnonymousSession() {
	first, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)

	e := s.newEngine()
	again, err := e.SignInAnonymously(s.ctx)
	s.Require().NoError(err)
	s.Equal(first.PlayerID, again.PlayerID)
	s.Len(s.world.accounts, 1)
}

func (s *EngineSuite) TestSignInAnonymously_RejectedPersistedSessionCreatesAccount() {
	s.Require().NoError(s.store.Save(session.Record{PlayerID: "gone", SessionToken: "stale"}))

	id, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)
	s.NotEqual(model.PlayerID("gone"), id.PlayerID)
	s.Equal(id.SessionToken, s.persisted().SessionToken)
}

func (s *EngineSuite) TestSignInAnonymously_DurableIdentityExists() {
	_, err := s.engine.SignInOrLinkWithProvider(s.ctx, s.provider(model.ProviderPlatformAccount, "alice"))
	s.Require().NoError(err)

	e := s.newEngine()
	_, err = e.SignInAnonymously(s.ctx)
	s.ErrorIs(err, model.ErrDurableIdentityExists)
	s.Equal(Unauthenticated, e.Status().State)
}

// Sign-in or link

func (s *EngineSuite) TestSignInOrLink_SignsInWhenUnauthenticated() {
	for _, kind := range model.DurableProviders {
		s.Run(string(kind), func() {
			s.SetupTest()

			outcome, err := s.engine.SignInOrLinkWithProvider(s.ctx, s.provider(kind, "alice"))
			s.Require().NoError(err)
			s.Equal(OutcomeSignedIn, outcome)

			status := s.engine.Status()
			s.Equal(ProviderLinked, status.State)
			s.Equal(kind, status.Provider)
			s.True(status.Identity.HasPrimaryID)
			s.Contains(status.Identity.LinkedProviders, kind)
			s.Require().Len(s.signedIn, 1)
			s.Equal(kind, s.signedIn[0].Provider)
		})
	}
}

func (s *EngineSuite) TestSignInOrLink_SecondCallIsNoOp() {
	for _, kind := range model.DurableProviders {
		s.Run(string(kind), func() {
			s.SetupTest()
			p := s.provider(kind, "alice")

			_, err := s.engine.SignInOrLinkWithProvider(s.ctx, p)
			s.Require().NoError(err)
			before := s.engine.Status()
			calls := p.calls

			outcome, err := s.engine.SignInOrLinkWithProvider(s.ctx, p)
			s.Require().NoError(err)
			s.Equal(OutcomeAlreadyConsolidated, outcome)
			s.Equal(before, s.engine.Status())
			s.Equal(calls, p.calls)
			s.Len(s.signedIn, 1)
		})
	}
}

func (s *EngineSuite) TestSignInOrLink_LinksToAnonymousSession() {
	anon, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)

	outcome, err := s.engine.SignInOrLinkWithProvider(s.ctx, s.provider(model.ProviderSocial, "alice"))
	s.Require().NoError(err)
	s.Equal(OutcomeLinked, outcome)

	status := s.engine.Status()
	s.Equal(FullyConsolidated, status.State)
	s.Equal(anon.PlayerID, status.Identity.PlayerID)
	s.Equal(anon.SessionToken, status.Identity.SessionToken)
	s.True(status.Identity.HasPrimaryID)
	s.True(s.persisted().HasPrimaryID)
	s.Len(s.signedIn, 1)
}

func (s *EngineSuite) TestSignInOrLink_LinksSecondProvider() {
	_, err := s.engine.SignInOrLinkWithProvider(s.ctx, s.provider(model.ProviderPlatformAccount, "alice"))
	s.Require().NoError(err)

	outcome, err := s.engine.SignInOrLinkWithProvider(s.ctx, s.provider(model.ProviderConsoleStore, "alice-console"))
	s.Require().NoError(err)
	s.Equal(OutcomeLinked, outcome)

	status := s.engine.Status()
	s.Equal(FullyConsolidated, status.State)
	s.Equal(model.ProviderPlatformAccount, status.Provider)
	s.Equal([]model.ProviderKind{model.ProviderConsoleStore, model.ProviderPlatformAccount}, status.Identity.LinkedProviders)
}

func (s *EngineSuite) TestSignInOrLink_ConflictLeavesStateUnchanged() {
	// bob owns the social identity
	other := New(s.world, session.NewMemoryStore(), testutil.NopLogger())
	_, err := other.SignInOrLinkWithProvider(s.ctx, s.provider(model.ProviderSocial, "bob"))
	s.Require().NoError(err)

	_, err = s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)
	before := s.engine.Status()
	persisted := s.persisted()

	_, err = s.engine.SignInOrLinkWithProvider(s.ctx, s.provider(model.ProviderSocial, "bob"))
	s.ErrorIs(err, model.ErrAlreadyLinked)
	s.Equal(before, s.engine.Status())
	s.Equal(persisted, s.persisted())
}

func (s *EngineSuite) TestSignInOrLink_AuthFailurePropagates() {
	p := s.provider(model.ProviderSocial, "alice")
	p.err = &model.AuthFailure{Code: "INVALID_TOKEN", Message: "bad token"}

	_, err := s.engine.SignInOrLinkWithProvider(s.ctx, p)
	var authErr *model.AuthFailure
	s.Require().True(errors.As(err, &authErr))
	s.Equal("INVALID_TOKEN", authErr.Code)
	s.Equal(Unauthenticated, s.engine.Status().State)
	s.Nil(s.persisted())
	s.Equal(1, p.calls)
}

// Races

func (s *EngineSuite) TestRace_DuplicateCompletionIsAbsorbed() {
	outer := s.provider(model.ProviderSocial, "alice")
	inner := s.provider(model.ProviderSocial, "alice")
	outer.before = func() {
		outcome, err := s.engine.SignInOrLinkWithProvider(s.ctx, inner)
		s.Require().NoError(err)
		s.Equal(OutcomeSignedIn, outcome)
	}

	outcome, err := s.engine.SignInOrLinkWithProvider(s.ctx, outer)
	s.Require().NoError(err)
	s.Equal(OutcomeSignedIn, outcome)

	status := s.engine.Status()
	s.Equal(ProviderLinked, status.State)
	s.Equal(model.ProviderSocial, status.Provider)
	s.Len(s.signedIn, 1)
	s.Len(s.world.accounts, 1)
}

func (s *EngineSuite) TestRace_DifferentPlayerIsRejected() {
	var anon model.PlayerIdentity
	p := s.provider(model.ProviderSocial, "alice")
	p.before = func() {
		var err error
		anon, err = s.engine.SignInAnonymously(s.ctx)
		s.Require().NoError(err)
	}

	_, err := s.engine.SignInOrLinkWithProvider(s.ctx, p)
	s.ErrorIs(err, model.ErrStateChanged)

	status := s.engine.Status()
	s.Equal(AnonymousSession, status.State)
	s.Equal(anon.PlayerID, status.Identity.PlayerID)

	// The losing session was ended on the backend
	s.Len(s.world.signedOut, 1)
	s.Equal(1, s.world.sessionCount())
}

func (s *EngineSuite) TestRace_LinkAfterSignOutIsRejected() {
	_, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)

	p := s.provider(model.ProviderSocial, "alice")
	p.before = func() {
		s.Require().NoError(s.engine.SignOut(s.ctx, false))
	}

	_, err = s.engine.SignInOrLinkWithProvider(s.ctx, p)
	s.ErrorIs(err, model.ErrStateChanged)
	s.Equal(Unauthenticated, s.engine.Status().State)
}

// Unlink

func (s *EngineSuite) TestUnlink_LastDurableProviderKeepsPlayerID() {
	anon, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)
	p := s.provider(model.ProviderSocial, "alice")
	_, err = s.engine.SignInOrLinkWithProvider(s.ctx, p)
	s.Require().NoError(err)

	id, err := s.engine.UnlinkProvider(s.ctx, p)
	s.Require().NoError(err)
	s.Equal(anon.PlayerID, id.PlayerID)
	s.False(id.HasPrimaryID)
	s.Equal(anon.SessionToken, id.SessionToken)

	s.Equal(AnonymousSession, s.engine.Status().State)
	s.False(s.persisted().HasPrimaryID)
}

func (s *EngineSuite) TestUnlink_SignInProviderWithOthersRemaining() {
	platform := s.provider(model.ProviderPlatformAccount, "alice")
	_, err := s.engine.SignInOrLinkWithProvider(s.ctx, platform)
	s.Require().NoError(err)
	_, err = s.engine.SignInOrLinkWithProvider(s.ctx, s.provider(model.ProviderConsoleStore, "alice"))
	s.Require().NoError(err)

	// Sign in again with the platform account so it is the sign-in provider
	s.Require().NoError(s.engine.SignOut(s.ctx, false))
	_, err = s.engine.SignInOrLinkWithProvider(s.ctx, platform)
	s.Require().NoError(err)
	s.Equal(ProviderLinked, s.engine.Status().State)

	id, err := s.engine.UnlinkProvider(s.ctx, platform)
	s.Require().NoError(err)
	s.True(id.HasPrimaryID)

	status := s.engine.Status()
	s.Equal(FullyConsolidated, status.State)
	s.Empty(status.Provider)
	s.Equal([]model.ProviderKind{model.ProviderConsoleStore}, status.Identity.LinkedProviders)
}

func (s *EngineSuite) TestUnlink_NotLinked() {
	_, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)
	p := s.provider(model.ProviderSocial, "alice")

	_, err = s.engine.UnlinkProvider(s.ctx, p)
	s.ErrorIs(err, model.ErrProviderNotLinked)
	s.Zero(p.calls)
}

func (s *EngineSuite) TestUnlink_NotAuthenticated() {
	_, err := s.engine.UnlinkProvider(s.ctx, s.provider(model.ProviderSocial, "alice"))
	s.ErrorIs(err, model.ErrNotAuthenticated)
}

// Sign-out, delete, clear

func (s *EngineSuite) TestSignOut_KeepsPersistedSession() {
	id, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.engine.SignOut(s.ctx, false))
	s.Equal(Unauthenticated, s.engine.Status().State)
	s.NotNil(s.persisted())
	s.Empty(s.world.signedOut)
	s.Equal([]SignedOut{{PlayerID: id.PlayerID}}, s.signedOut)

	// The session is still resumable
	resumed, err := s.engine.Start(s.ctx)
	s.Require().NoError(err)
	s.True(resumed)
	s.Equal(id.PlayerID, s.engine.Status().Identity.PlayerID)
}

func (s *EngineSuite) TestSignOut_ClearSession() {
	id, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.engine.SignOut(s.ctx, true))
	s.Nil(s.persisted())
	s.Equal([]string{id.SessionToken}, s.world.signedOut)

	resumed, err := s.engine.Start(s.ctx)
	s.Require().NoError(err)
	s.False(resumed)
}

func (s *EngineSuite) TestSignOut_WhenSignedOut() {
	s.Require().NoError(s.engine.SignOut(s.ctx, false))
	s.Empty(s.signedOut)
}

func (s *EngineSuite) TestDeleteAccount() {
	outcome, err := s.engine.SignInOrLinkWithProvider(s.ctx, s.provider(model.ProviderSocial, "alice"))
	s.Require().NoError(err)
	s.Equal(OutcomeSignedIn, outcome)

	s.Require().NoError(s.engine.DeleteAccount(s.ctx))
	s.Equal(Unauthenticated, s.engine.Status().State)
	s.Nil(s.persisted())
	s.Empty(s.world.accounts)
	s.Require().Len(s.signedOut, 1)
	s.True(s.signedOut[0].Deleted)

	// The provider identity is free again and signs in as a new player
	_, err = s.engine.SignInOrLinkWithProvider(s.ctx, s.provider(model.ProviderSocial, "alice"))
	s.Require().NoError(err)
	s.Len(s.world.accounts, 1)
}

func (s *EngineSuite) TestDeleteAccount_NotAuthenticated() {
	s.ErrorIs(s.engine.DeleteAccount(s.ctx), model.ErrNotAuthenticated)
}

func (s *EngineSuite) TestClearSessionToken() {
	_, err := s.engine.SignInAnonymously(s.ctx)
	s.Require().NoError(err)
	s.ErrorIs(s.engine.ClearSessionToken(), model.ErrAlreadyAuthenticated)

	s.Require().NoError(s.engine.SignOut(s.ctx, false))
	s.Require().NoError(s.engine.ClearSessionToken())
	s.Nil(s.persisted())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "anonymous_session", AnonymousSession.String())
	assert.Equal(t, "provider_linked", ProviderLinked.String())
	assert.Equal(t, "fully_consolidated", FullyConsolidated.String())
	assert.Equal(t, "linked", OutcomeLinked.String())
}
