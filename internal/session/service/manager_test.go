package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/security"
	"chat-cqrs/internal/session/domain"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// memSessionRepo mirrors the Mongo repository, including its version check.
type memSessionRepo struct {
	mu      sync.Mutex
	m       map[string]domain.Session
	err     error
	saveErr error
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{m: map[string]domain.Session{}}
}

func (r *memSessionRepo) FindByUserID(ctx context.Context, userID string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []*domain.Session
	for _, s := range r.m {
		if s.UserID == userID {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memSessionRepo) FindByHashedToken(ctx context.Context, hashedToken string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, s := range r.m {
		if s.HashedToken == hashedToken {
			return &s, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) FindAll(ctx context.Context) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []*domain.Session
	for _, s := range r.m {
		s := s
		out = append(out, &s)
	}
	return out, nil
}

func (r *memSessionRepo) Save(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if s.Version == 0 {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		s.Version = 1
		r.m[s.ID] = *s
		return nil
	}
	stored, ok := r.m[s.ID]
	if !ok || stored.Version != s.Version {
		return domain.ErrVersionConflict
	}
	s.Version++
	r.m[s.ID] = *s
	return nil
}

func (r *memSessionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
	return nil
}

func (r *memSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for id, s := range r.m {
		if s.ExpiresAt.Before(now) {
			delete(r.m, id)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	cmds []command.SessionCommand
	err  error
}

func (p *recordingPublisher) PublishSessionCommand(ctx context.Context, key string, cmd command.SessionCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.cmds = append(p.cmds, cmd)
	return nil
}

func newTestManager(t *testing.T, repo *memSessionRepo, pub *recordingPublisher) *Manager {
	t.Helper()
	m, err := NewManager(repo, security.NewHasher(security.MinCost), pub, 24*time.Hour, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.nowFunc = func() time.Time { return fixedNow }
	return m
}

func TestNewManager_InvalidTTL(t *testing.T) {
	if _, err := NewManager(newMemSessionRepo(), security.NewHasher(security.MinCost), nil, 0, nil); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("NewManager err = %v, want ErrInvalidTTL", err)
	}
}

func TestCreate_PublishesUpsert(t *testing.T) {
	pub := &recordingPublisher{}
	m := newTestManager(t, newMemSessionRepo(), pub)

	token, err := m.Create(context.Background(), "u1", "alice", "10.0.0.1", "curl/8")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(pub.cmds) != 1 || pub.keys[0] != "u1" {
		t.Fatalf("published %d commands with keys %v", len(pub.cmds), pub.keys)
	}
	cmd := pub.cmds[0]
	if cmd.Command != command.KindUpsertSession || cmd.UserID != "u1" || cmd.IPAddress != "10.0.0.1" {
		t.Errorf("cmd = %+v", cmd)
	}
	if !cmd.ExpiresAt.Equal(fixedNow.Add(24 * time.Hour)) {
		t.Errorf("ExpiresAt = %v", cmd.ExpiresAt)
	}
	if cmd.HashedSessionToken == token {
		t.Error("plaintext token must not be published")
	}
	if ok, _ := security.NewHasher(security.MinCost).Matches(cmd.HashedSessionToken, token); !ok {
		t.Error("published hash does not match returned token")
	}
}

func TestCreate_Errors(t *testing.T) {
	m := newTestManager(t, newMemSessionRepo(), &recordingPublisher{err: errors.New("broker down")})
	if _, err := m.Create(context.Background(), "u1", "alice", "", ""); err == nil {
		t.Error("Create should return the publish error")
	}
	if _, err := m.Create(context.Background(), "", "alice", "", ""); !errors.Is(err, domain.ErrMissingUser) {
		t.Errorf("Create without user = %v, want ErrMissingUser", err)
	}
}

// Two logins by the same user followed by both upserts leave one session, valid only for the second token.
func TestCreateTwice_SingleSessionForLatestToken(t *testing.T) {
	repo := newMemSessionRepo()
	pub := &recordingPublisher{}
	m := newTestManager(t, repo, pub)
	ctx := context.Background()

	first, err := m.Create(ctx, "u1", "alice", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := m.Create(ctx, "u1", "alice", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, cmd := range pub.cmds {
		if err := m.Upsert(ctx, cmd); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	if repo.count() != 1 {
		t.Fatalf("sessions = %d, want 1", repo.count())
	}
	if _, ok := m.ValidateForUser(ctx, second, "u1"); !ok {
		t.Error("second token should validate")
	}
	if _, ok := m.ValidateForUser(ctx, first, "u1"); ok {
		t.Error("first token should no longer validate")
	}
	if _, ok := m.Validate(ctx, second); !ok {
		t.Error("unscoped Validate should find the second token")
	}
}

func TestUpsert_CollapsesDuplicates(t *testing.T) {
	repo := newMemSessionRepo()
	for i, id := range []string{"s-old", "s-mid", "s-new"} {
		repo.m[id] = domain.Session{
			ID: id, UserID: "u1", HashedToken: "h-" + id, Version: 1,
			CreatedAt: fixedNow.Add(time.Duration(i-10) * time.Hour),
			ExpiresAt: fixedNow.Add(time.Hour),
		}
	}
	repo.m["other"] = domain.Session{ID: "other", UserID: "u2", CreatedAt: fixedNow, ExpiresAt: fixedNow.Add(time.Hour), Version: 1}
	m := newTestManager(t, repo, nil)

	cmd := command.NewSessionCommand(command.KindUpsertSession, "h-latest", "u1", fixedNow.Add(24*time.Hour), "ip", "ua", fixedNow)
	if err := m.Upsert(context.Background(), cmd); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, _ := repo.FindByUserID(context.Background(), "u1")
	if len(got) != 1 {
		t.Fatalf("sessions for u1 = %d, want 1", len(got))
	}
	s := got[0]
	if s.ID != "s-old" || s.HashedToken != "h-latest" || s.Version != 2 || !s.LastAccessedAt.Equal(fixedNow) {
		t.Errorf("canonical session = %+v", s)
	}
	if _, ok := repo.m["other"]; !ok {
		t.Error("other user's session must be untouched")
	}
}

func TestUpsert_PropagatesVersionConflict(t *testing.T) {
	repo := newMemSessionRepo()
	repo.m["s1"] = domain.Session{ID: "s1", UserID: "u1", CreatedAt: fixedNow.Add(-time.Hour), ExpiresAt: fixedNow.Add(time.Hour), Version: 1}
	repo.saveErr = domain.ErrVersionConflict
	m := newTestManager(t, repo, nil)

	cmd := command.NewSessionCommand(command.KindUpsertSession, "h", "u1", fixedNow.Add(time.Hour), "", "", fixedNow)
	if err := m.Upsert(context.Background(), cmd); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("Upsert err = %v, want ErrVersionConflict", err)
	}
}

func TestUpsert_RejectsExpiryBeforeCreation(t *testing.T) {
	m := newTestManager(t, newMemSessionRepo(), nil)
	cmd := command.NewSessionCommand(command.KindUpsertSession, "h", "u1", fixedNow.Add(-time.Minute), "", "", fixedNow)
	if err := m.Upsert(context.Background(), cmd); !errors.Is(err, domain.ErrInvalidExpiry) {
		t.Fatalf("Upsert err = %v, want ErrInvalidExpiry", err)
	}
}

func TestValidate_NeverReturnsExpired(t *testing.T) {
	hasher := security.NewHasher(security.MinCost)
	hashed, err := hasher.Hash("tok")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	repo := newMemSessionRepo()
	repo.m["s1"] = domain.Session{ID: "s1", UserID: "u1", HashedToken: hashed, CreatedAt: fixedNow.Add(-48 * time.Hour), ExpiresAt: fixedNow.Add(-time.Second), Version: 1}
	m := newTestManager(t, repo, nil)

	if _, ok := m.Validate(context.Background(), "tok"); ok {
		t.Error("expired session validated")
	}
	if _, ok := m.ValidateForUser(context.Background(), "tok", "u1"); ok {
		t.Error("expired session validated for user")
	}
}

func TestValidate_EmptyInputs(t *testing.T) {
	m := newTestManager(t, newMemSessionRepo(), nil)
	testCases := []struct {
		name          string
		token, userID string
	}{
		{"empty token", "", "u1"},
		{"empty user", "tok", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if s, ok := m.ValidateForUser(context.Background(), tc.token, tc.userID); ok || s != nil {
				t.Errorf("ValidateForUser = %v, %v", s, ok)
			}
		})
	}
	if _, ok := m.Validate(context.Background(), ""); ok {
		t.Error("Validate(\"\") should fail")
	}
}

func TestValidate_FailsClosedOnStoreError(t *testing.T) {
	repo := newMemSessionRepo()
	repo.err = errors.New("mongo unreachable")
	m := newTestManager(t, repo, nil)

	if s, ok := m.Validate(context.Background(), "tok"); ok || s != nil {
		t.Errorf("Validate = %v, %v; want nil, false", s, ok)
	}
	if s, ok := m.ValidateForUser(context.Background(), "tok", "u1"); ok || s != nil {
		t.Errorf("ValidateForUser = %v, %v; want nil, false", s, ok)
	}
}

func TestValidate_SkipsMalformedHash(t *testing.T) {
	hasher := security.NewHasher(security.MinCost)
	hashed, _ := hasher.Hash("tok")
	repo := newMemSessionRepo()
	repo.m["bad"] = domain.Session{ID: "bad", UserID: "u1", HashedToken: "not-bcrypt", CreatedAt: fixedNow.Add(-2 * time.Hour), ExpiresAt: fixedNow.Add(time.Hour), Version: 1}
	repo.m["good"] = domain.Session{ID: "good", UserID: "u1", HashedToken: hashed, CreatedAt: fixedNow.Add(-time.Hour), ExpiresAt: fixedNow.Add(time.Hour), Version: 1}
	m := newTestManager(t, repo, nil)

	s, ok := m.ValidateForUser(context.Background(), "tok", "u1")
	if !ok || s.ID != "good" {
		t.Fatalf("ValidateForUser = %v, %v; want good", s, ok)
	}
}

func TestInvalidate(t *testing.T) {
	hasher := security.NewHasher(security.MinCost)
	hashed, _ := hasher.Hash("tok")
	repo := newMemSessionRepo()
	repo.m["s1"] = domain.Session{ID: "s1", UserID: "u1", HashedToken: hashed, CreatedAt: fixedNow.Add(-time.Hour), ExpiresAt: fixedNow.Add(time.Hour), Version: 1}
	m := newTestManager(t, repo, nil)
	ctx := context.Background()

	if err := m.InvalidateForUser(ctx, "tok", "u2"); err != nil {
		t.Fatalf("InvalidateForUser other user: %v", err)
	}
	if repo.count() != 1 {
		t.Fatal("session of u1 must survive an invalidate scoped to u2")
	}
	if err := m.Invalidate(ctx, "wrong"); err != nil {
		t.Fatalf("Invalidate unknown: %v", err)
	}
	if err := m.InvalidateForUser(ctx, "tok", "u1"); err != nil {
		t.Fatalf("InvalidateForUser: %v", err)
	}
	if repo.count() != 0 {
		t.Errorf("sessions = %d, want 0", repo.count())
	}
}
