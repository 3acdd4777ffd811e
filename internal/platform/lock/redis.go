// Package lock provides a best-effort distributed lock so periodic jobs run on one instance per tick.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrInvalidTTL is returned by Acquire for a non-positive ttl.
var ErrInvalidTTL = errors.New("lock: ttl must be positive")

// setNXer is the subset of *redis.Client used by RedisLocker.
type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker takes locks with SET key owner NX PX ttl. Locks are never released early; they lapse after ttl.
type RedisLocker struct {
	client setNXer
	owner  string
}

// NewRedisLocker returns a locker on client. Each locker gets its own owner id.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return newRedisLocker(client)
}

func newRedisLocker(client setNXer) *RedisLocker {
	return &RedisLocker{client: client, owner: uuid.New().String()}
}

// Acquire reports whether the lock on key was taken for ttl. false, nil means another holder has it.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	return l.client.SetNX(ctx, key, l.owner, ttl).Result()
}
