package domain

import (
	"errors"
	"time"
)

var (
	// ErrVersionConflict is returned by a repository when the stored session changed since it was read.
	ErrVersionConflict = errors.New("session: modified concurrently")
	// ErrInvalidExpiry is returned when expiresAt is not after createdAt.
	ErrInvalidExpiry = errors.New("session: expiresAt must be after createdAt")
	// ErrMissingUser is returned for a session without a user id.
	ErrMissingUser = errors.New("session: user id is required")
)

// Session is an authenticated login. Only the bcrypt hash of the token is stored.
type Session struct {
	ID             string
	HashedToken    string
	UserID         string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
	IPAddress      string
	UserAgent      string
	// Version is 0 for a session never stored; the repository bumps it on every save.
	Version int64
}

// IsExpired reports whether now is past ExpiresAt.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Validate checks the fields every stored session must have.
func (s *Session) Validate() error {
	if s.UserID == "" {
		return ErrMissingUser
	}
	if !s.ExpiresAt.After(s.CreatedAt) {
		return ErrInvalidExpiry
	}
	return nil
}
