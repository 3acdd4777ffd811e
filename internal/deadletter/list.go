package deadletter

import (
	"context"
	"sort"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/deadletter/domain"
	"chat-cqrs/internal/deadletter/repository"
)

// List returns the most recent records given up on topic or its retry companion, newest first.
// Either name of the pair may be passed.
func List(ctx context.Context, repo repository.Repository, topic string, limit int) ([]*domain.Record, error) {
	base := command.BaseTopic(topic)
	primary, err := repo.ListByTopic(ctx, base, limit)
	if err != nil {
		return nil, err
	}
	retried, err := repo.ListByTopic(ctx, command.RetryTopic(base), limit)
	if err != nil {
		return nil, err
	}
	out := append(primary, retried...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FailedAt.After(out[j].FailedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
