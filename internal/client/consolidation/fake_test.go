package consolidation

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/mcoot/playerhub/internal/model"
)

// world is an in-memory backing identity system shared by the fake backend and providers
type world struct {
	mu       sync.Mutex
	n        int
	accounts map[model.PlayerID]map[model.ProviderKind]string
	bindings map[string]model.PlayerID
	sessions map[string]model.PlayerID

	resumeErr error
	signedOut []string
}

func newWorld() *world {
	return &world{
		accounts: make(map[model.PlayerID]map[model.ProviderKind]string),
		bindings: make(map[string]model.PlayerID),
		sessions: make(map[string]model.PlayerID),
	}
}

func bindingKey(kind model.ProviderKind, subject string) string {
	return string(kind) + ":" + subject
}

func (w *world) newAccountLocked() model.PlayerID {
	w.n++
	id := model.PlayerID(fmt.Sprintf("player-%d", w.n))
	w.accounts[id] = make(map[model.ProviderKind]string)
	return id
}

func (w *world) newSessionLocked(id model.PlayerID) model.PlayerIdentity {
	w.n++
	token := fmt.Sprintf("token-%d", w.n)
	w.sessions[token] = id
	return w.identityLocked(id, token)
}

func (w *world) identityLocked(id model.PlayerID, token string) model.PlayerIdentity {
	kinds := slices.Collect(maps.Keys(w.accounts[id]))
	return model.NewPlayerIdentity(id, token, kinds)
}

func (w *world) SignInAnonymously(context.Context) (model.PlayerIdentity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.newSessionLocked(w.newAccountLocked()), nil
}

func (w *world) ResumeSession(_ context.Context, token string) (model.PlayerIdentity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.resumeErr != nil {
		return model.PlayerIdentity{}, w.resumeErr
	}
	id, ok := w.sessions[token]
	if !ok {
		return model.PlayerIdentity{}, model.ErrSessionNotFound
	}
	delete(w.sessions, token)
	return w.newSessionLocked(id), nil
}

func (w *world) SignOut(_ context.Context, token string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.signedOut = append(w.signedOut, token)
	delete(w.sessions, token)
	return nil
}

func (w *world) DeleteAccount(_ context.Context, token string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.sessions[token]
	if !ok {
		return model.ErrSessionNotFound
	}
	for kind, subject := range w.accounts[id] {
		delete(w.bindings, bindingKey(kind, subject))
	}
	delete(w.accounts, id)
	delete(w.sessions, token)
	return nil
}

func (w *world) sessionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}

// fakeProvider is a durable provider whose user is subject
type fakeProvider struct {
	w       *world
	kind    model.ProviderKind
	subject string
	err     error
	// before runs at the start of every provider call, outside any engine lock
	before func()
	calls  int
}

func (p *fakeProvider) Kind() model.ProviderKind { return p.kind }

func (p *fakeProvider) IsAuthenticated(context.Context) bool { return p.subject != "" }

func (p *fakeProvider) AccessToken(context.Context) (string, error) {
	if p.subject == "" {
		return "", &model.AuthFailure{Code: "NOT_SIGNED_IN", Message: "not signed in"}
	}
	return p.subject, nil
}

func (p *fakeProvider) enter() error {
	p.calls++
	if p.before != nil {
		before := p.before
		p.before = nil
		before()
	}
	return p.err
}

func (p *fakeProvider) SignIn(ctx context.Context) (model.PlayerIdentity, error) {
	if err := p.enter(); err != nil {
		return model.PlayerIdentity{}, err
	}
	p.w.mu.Lock()
	defer p.w.mu.Unlock()

	key := bindingKey(p.kind, p.subject)
	id, ok := p.w.bindings[key]
	if !ok {
		id = p.w.newAccountLocked()
		p.w.accounts[id][p.kind] = p.subject
		p.w.bindings[key] = id
	}
	return p.w.newSessionLocked(id), nil
}

func (p *fakeProvider) Link(ctx context.Context, sessionToken string) (model.PlayerIdentity, error) {
	if err := p.enter(); err != nil {
		return model.PlayerIdentity{}, err
	}
	p.w.mu.Lock()
	defer p.w.mu.Unlock()

	id, ok := p.w.sessions[sessionToken]
	if !ok {
		return model.PlayerIdentity{}, model.ErrSessionNotFound
	}
	key := bindingKey(p.kind, p.subject)
	if owner, bound := p.w.bindings[key]; bound && owner != id {
		return model.PlayerIdentity{}, model.ErrAlreadyLinked
	}
	if existing, linked := p.w.accounts[id][p.kind]; linked && existing != p.subject {
		return model.PlayerIdentity{}, model.ErrProviderKindLinked
	}
	p.w.accounts[id][p.kind] = p.subject
	p.w.bindings[key] = id
	return p.w.identityLocked(id, sessionToken), nil
}

func (p *fakeProvider) Unlink(ctx context.Context, sessionToken string) (model.PlayerIdentity, error) {
	if err := p.enter(); err != nil {
		return model.PlayerIdentity{}, err
	}
	p.w.mu.Lock()
	defer p.w.mu.Unlock()

	id, ok := p.w.sessions[sessionToken]
	if !ok {
		return model.PlayerIdentity{}, model.ErrSessionNotFound
	}
	subject, linked := p.w.accounts[id][p.kind]
	if !linked {
		return model.PlayerIdentity{}, model.ErrProviderNotLinked
	}
	delete(p.w.accounts[id], p.kind)
	delete(p.w.bindings, bindingKey(p.kind, subject))
	return p.w.identityLocked(id, sessionToken), nil
}
