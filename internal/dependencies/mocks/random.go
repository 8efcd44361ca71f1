package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/playerhub/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// Queued values are returned first, then deterministic sequential values.
type MockRandom struct {
	mu sync.Mutex

	// IDResults is a queue of results to return from ID
	IDResults []string
	idCount   int

	// TokenResults is a queue of results to return from Token
	TokenResults []string
	tokenCount   int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// ID returns the next queued result, or "id-N"
func (r *MockRandom) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idCount++
	if len(r.IDResults) > 0 {
		result := r.IDResults[0]
		r.IDResults = r.IDResults[1:]
		return result
	}
	return fmt.Sprintf("id-%d", r.idCount)
}

// Token returns the next queued result, or "token-N"
func (r *MockRandom) Token(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenCount++
	if len(r.TokenResults) > 0 {
		result := r.TokenResults[0]
		r.TokenResults = r.TokenResults[1:]
		return result
	}
	return fmt.Sprintf("token-%d", r.tokenCount)
}

// QueueID adds values to the ID result queue
func (r *MockRandom) QueueID(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IDResults = append(r.IDResults, values...)
}

// QueueToken adds values to the Token result queue
func (r *MockRandom) QueueToken(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TokenResults = append(r.TokenResults, values...)
}
