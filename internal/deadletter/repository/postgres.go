package repository

import (
	"context"
	"database/sql"

	"chat-cqrs/internal/deadletter/domain"
)

// PostgresRepository implements Repository on the dead_letters table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a repository that uses db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const insertDeadLetter = `INSERT INTO dead_letters (id, topic, message_key, command, payload, attempts, max_retry, cause, failed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Create inserts r.
func (r *PostgresRepository) Create(ctx context.Context, rec *domain.Record) error {
	_, err := r.db.ExecContext(ctx, insertDeadLetter,
		rec.ID, rec.Topic, rec.Key, rec.Command, rec.Payload, rec.Attempts, rec.MaxRetry, rec.Cause, rec.FailedAt)
	return err
}

const listDeadLettersByTopic = `SELECT id, topic, message_key, command, payload, attempts, max_retry, cause, failed_at
FROM dead_letters WHERE topic = $1 ORDER BY failed_at DESC LIMIT $2`

// ListByTopic returns the most recent records for topic, newest first.
func (r *PostgresRepository) ListByTopic(ctx context.Context, topic string, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listDeadLettersByTopic, topic, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.Key, &rec.Command, &rec.Payload,
			&rec.Attempts, &rec.MaxRetry, &rec.Cause, &rec.FailedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
