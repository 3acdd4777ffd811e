package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chat-cqrs/internal/session/domain"
)

func seedExpiry(repo *memSessionRepo) {
	repo.m["live"] = domain.Session{ID: "live", UserID: "u1", ExpiresAt: fixedNow.Add(time.Minute), Version: 1}
	repo.m["dead1"] = domain.Session{ID: "dead1", UserID: "u2", ExpiresAt: fixedNow.Add(-time.Minute), Version: 1}
	repo.m["dead2"] = domain.Session{ID: "dead2", UserID: "u3", ExpiresAt: fixedNow.Add(-time.Hour), Version: 1}
}

func TestSweep(t *testing.T) {
	repo := newMemSessionRepo()
	seedExpiry(repo)
	m := newTestManager(t, repo, nil)

	n, err := m.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 2 || repo.count() != 1 {
		t.Errorf("swept %d, %d left; want 2, 1", n, repo.count())
	}
}

func TestSweep_StoreError(t *testing.T) {
	repo := newMemSessionRepo()
	repo.err = errors.New("mongo unreachable")
	m := newTestManager(t, repo, nil)
	if _, err := m.Sweep(context.Background()); err == nil {
		t.Fatal("Sweep should return the store error")
	}
}

type fakeLocker struct {
	mu    sync.Mutex
	grant bool
	err   error
	calls int
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.grant, l.err
}

func TestSweepTick_Locking(t *testing.T) {
	testCases := []struct {
		name   string
		locker *fakeLocker
		left   int
	}{
		{"lock held elsewhere", &fakeLocker{grant: false}, 3},
		{"lock error", &fakeLocker{err: errors.New("redis down")}, 3},
		{"lock granted", &fakeLocker{grant: true}, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemSessionRepo()
			seedExpiry(repo)
			m := newTestManager(t, repo, nil)
			m.sweepTick(context.Background(), time.Minute, tc.locker)
			if repo.count() != tc.left {
				t.Errorf("sessions = %d, want %d", repo.count(), tc.left)
			}
			if tc.locker.calls != 1 {
				t.Errorf("Acquire calls = %d, want 1", tc.locker.calls)
			}
		})
	}
}

func TestSweepTick_RecoversFromPanic(t *testing.T) {
	m := newTestManager(t, newMemSessionRepo(), nil)
	m.repo = nil
	// Should not panic
	m.sweepTick(context.Background(), time.Minute, nil)
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	repo := newMemSessionRepo()
	seedExpiry(repo)
	m := newTestManager(t, repo, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunSweeper(ctx, 5*time.Millisecond, nil)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for repo.count() != 1 {
		select {
		case <-deadline:
			t.Fatal("sweeper never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunSweeper did not return after cancel")
	}
}
