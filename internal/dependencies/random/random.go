package random

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// Random provides identifier and secret generation that can be mocked for testing
type Random interface {
	// ID returns a new unique identifier
	ID() string

	// Token returns a URL-safe random secret built from n random bytes
	Token(n int) string
}

// CryptoRandom implements Random using uuid v4 and crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// ID returns a random UUID string
func (r *CryptoRandom) ID() string {
	return uuid.NewString()
}

// Token returns n cryptographically random bytes, base64url encoded
func (r *CryptoRandom) Token(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
