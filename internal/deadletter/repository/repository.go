package repository

import (
	"context"

	"chat-cqrs/internal/deadletter/domain"
)

// Repository persists dead-letter records.
type Repository interface {
	Create(ctx context.Context, r *domain.Record) error
	ListByTopic(ctx context.Context, topic string, limit int) ([]*domain.Record, error)
}
