package repository

import (
	"context"

	"chat-cqrs/internal/message/domain"
)

// Repository defines persistence for messages.
type Repository interface {
	// FindByThreadID returns the thread's messages oldest first, skipping offset and returning at most limit.
	// limit <= 0 returns every message after offset.
	FindByThreadID(ctx context.Context, threadID string, offset, limit int) ([]*domain.Message, error)
	CountByThreadID(ctx context.Context, threadID string) (int64, error)
	// Save inserts m, assigning an id when empty.
	Save(ctx context.Context, m *domain.Message) error
}
