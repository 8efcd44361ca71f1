// Package session persists the player's session token between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mcoot/playerhub/internal/model"
)

// Record is a persisted session
type Record struct {
	PlayerID     model.PlayerID `json:"player_id"`
	SessionToken string         `json:"session_token"`
	HasPrimaryID bool           `json:"has_primary_id"`
}

// RecordFromIdentity builds the record for an authenticated identity
func RecordFromIdentity(id model.PlayerIdentity) Record {
	return Record{
		PlayerID:     id.PlayerID,
		SessionToken: id.SessionToken,
		HasPrimaryID: id.HasPrimaryID,
	}
}

// Store persists at most one session.
// Load returns nil and no error when nothing is stored.
type Store interface {
	Load() (*Record, error)
	Save(rec Record) error
	Clear() error
}

// HasPersistedSession reports whether the store holds a usable session token.
// An unreadable store counts as empty.
func HasPersistedSession(s Store) bool {
	rec, err := s.Load()
	return err == nil && rec != nil && rec.SessionToken != ""
}

// FileStore stores the session as JSON in a file readable only by the owner
type FileStore struct {
	path string
}

// NewFileStore creates a file store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath is ~/.playerhub/session.json
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".playerhub", "session.json")
	}
	return filepath.Join(home, ".playerhub", "session.json")
}

// Path returns the file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &model.DataFailure{Key: s.path, Err: err}
	}
	return &rec, nil
}

func (s *FileStore) Save(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryStore keeps the session in memory
type MemoryStore struct {
	mu  sync.Mutex
	rec *Record
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, nil
	}
	rec := *s.rec
	return &rec, nil
}

func (s *MemoryStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = &rec
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}
