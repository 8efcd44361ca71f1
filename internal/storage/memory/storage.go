package memory

import (
	"context"
	"sync"

	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	accounts  map[model.PlayerID]*model.Account
	providers map[providerKey]model.PlayerID
	sessions  map[string]*model.Session
	data      map[model.PlayerID]map[string]string
}

type providerKey struct {
	kind    model.ProviderKind
	subject string
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		accounts:  make(map[model.PlayerID]*model.Account),
		providers: make(map[providerKey]model.PlayerID),
		sessions:  make(map[string]*model.Session),
		data:      make(map[model.PlayerID]map[string]string),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account operations

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account.Clone()
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.PlayerID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (s *Storage) DeleteAccount(ctx context.Context, id model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
	return nil
}

// UpdateAccount holds the write lock across fn, so fn must not call back into the storage
func (s *Storage) UpdateAccount(ctx context.Context, id model.PlayerID, fn storage.AccountUpdateFunc) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.accounts[id] = next
	return next.Clone(), nil
}

// Provider link index

func (s *Storage) BindProvider(ctx context.Context, kind model.ProviderKind, subject string, playerID model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := providerKey{kind: kind, subject: subject}
	if existing, ok := s.providers[key]; ok {
		if existing != playerID {
			return model.ErrAlreadyLinked
		}
		return nil
	}
	s.providers[key] = playerID
	return nil
}

func (s *Storage) LookupProvider(ctx context.Context, kind model.ProviderKind, subject string) (model.PlayerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.providers[providerKey{kind: kind, subject: subject}]
	if !ok {
		return "", model.ErrProviderNotLinked
	}
	return playerID, nil
}

func (s *Storage) UnbindProvider(ctx context.Context, kind model.ProviderKind, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.providers, providerKey{kind: kind, subject: subject})
	return nil
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.TokenHash] = &copied
	return nil
}

func (s *Storage) GetSession(ctx context.Context, tokenHash string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[tokenHash]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *Storage) DeleteSession(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

// Player data operations

func (s *Storage) TryGetData(ctx context.Context, playerID model.PlayerID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[playerID][key]
	return value, ok, nil
}

func (s *Storage) SetData(ctx context.Context, playerID model.PlayerID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerData(playerID)[key] = value
	return nil
}

func (s *Storage) SetDataIfAbsent(ctx context.Context, playerID model.PlayerID, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.playerData(playerID)
	if _, ok := data[key]; ok {
		return false, nil
	}
	data[key] = value
	return true, nil
}

// UpdateData holds the write lock across fn, so fn must not call back into the storage
func (s *Storage) UpdateData(ctx context.Context, playerID model.PlayerID, key string, fn storage.UpdateFunc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.playerData(playerID)
	current, found := data[key]
	next, err := fn(current, found)
	if err != nil {
		return "", err
	}
	data[key] = next
	return next, nil
}

func (s *Storage) DeletePlayerData(ctx context.Context, playerID model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, playerID)
	return nil
}

// playerData returns the data map for a player, creating it if needed. Caller must hold the write lock.
func (s *Storage) playerData(playerID model.PlayerID) map[string]string {
	data, ok := s.data[playerID]
	if !ok {
		data = make(map[string]string)
		s.data[playerID] = data
	}
	return data
}
