package repository

import (
	"context"

	"chat-cqrs/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	// FindByID returns the user for id, or nil if not found.
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindByUsername returns the user with that username, or nil if not found.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// Save inserts u, assigning an id when empty. A taken username returns domain.ErrUsernameConflict.
	Save(ctx context.Context, u *domain.User) error
}
