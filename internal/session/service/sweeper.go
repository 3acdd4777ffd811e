package service

import (
	"context"
	"log"
	"time"
)

// SweepLockKey is the lock taken by RunSweeper before each sweep.
const SweepLockKey = "chat-cqrs:session-sweep"

// Locker grants a short-lived exclusive lock. Implemented by lock.RedisLocker.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Sweep deletes every expired session and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.repo.DeleteExpired(ctx, m.nowFunc().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.metrics.Swept(ctx, n)
		log.Printf("session: swept %d expired sessions", n)
	}
	return int(n), nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled. With a non-nil locker a tick only
// sweeps when this process holds the lock; a lock error skips the tick.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration, locker Locker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("session: sweeper running every %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("session: sweeper stopped")
			return
		case <-ticker.C:
			m.sweepTick(ctx, interval, locker)
		}
	}
}

func (m *Manager) sweepTick(ctx context.Context, interval time.Duration, locker Locker) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("session: sweep panicked: %v", r)
		}
	}()
	if locker != nil {
		ok, err := locker.Acquire(ctx, SweepLockKey, interval/2)
		if err != nil {
			log.Printf("session: sweep lock: %v", err)
			return
		}
		if !ok {
			return
		}
	}
	if _, err := m.Sweep(ctx); err != nil {
		log.Printf("session: sweep failed: %v", err)
	}
}
