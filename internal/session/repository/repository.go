package repository

import (
	"context"
	"time"

	"chat-cqrs/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	// FindByUserID returns the user's sessions, oldest first.
	FindByUserID(ctx context.Context, userID string) ([]*domain.Session, error)
	// FindByHashedToken returns the session with that stored hash, or nil if not found.
	FindByHashedToken(ctx context.Context, hashedToken string) (*domain.Session, error)
	FindAll(ctx context.Context) ([]*domain.Session, error)
	// Save inserts a session with Version 0 and replaces one with a matching Version otherwise,
	// returning domain.ErrVersionConflict when the stored version differs. s.Version is bumped on success.
	Save(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes every session whose expiresAt is before now and returns how many went.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
