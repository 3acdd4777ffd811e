// Package security provides the one-way hash used for passwords and session tokens, and opaque token generation.
package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MaxSecretLen is the longest secret bcrypt accepts.
	MaxSecretLen = 72
	// MinCost is the cheapest cost NewHasher allows, for tests and seeding.
	MinCost = bcrypt.MinCost
)

// ErrSecretTooLong is returned by Hash for secrets longer than MaxSecretLen bytes.
var ErrSecretTooLong = errors.New("security: secret exceeds 72 bytes")

// Hasher hashes and verifies secrets using bcrypt. Callers must not log or
// persist plaintext secrets.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to 4–31.
// Zero or negative selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a salted bcrypt hash of secret suitable for storage.
func (h *Hasher) Hash(secret string) (string, error) {
	if len(secret) > MaxSecretLen {
		return "", ErrSecretTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Matches reports whether secret hashes to hash. A mismatch is (false, nil);
// a malformed hash is (false, err).
func (h *Hasher) Matches(hash, secret string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
