package repository

import (
	"context"

	"chat-cqrs/internal/activity/domain"
)

// Repository defines persistence for activity logs, one document per user.
type Repository interface {
	// FindByUserID returns the user's log, or nil if none exists.
	FindByUserID(ctx context.Context, userID string) (*domain.ActivityLog, error)
	// Save writes the whole log. Version 0 inserts; otherwise the stored version must match
	// or domain.ErrVersionConflict is returned. l.Version is bumped on success.
	Save(ctx context.Context, l *domain.ActivityLog) error
	// Page returns entries [offset, offset+limit) of the user's log in append order.
	Page(ctx context.Context, userID string, offset, limit int) ([]domain.Entry, error)
	// Count returns the number of entries in the user's log, 0 when there is none.
	Count(ctx context.Context, userID string) (int64, error)
}
