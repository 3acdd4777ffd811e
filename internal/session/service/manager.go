// Package service implements the session lifecycle: token issuance on the producer side,
// the session-commands write path on the consumer side, validation and the expiry sweep.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/security"
	"chat-cqrs/internal/session/domain"
	"chat-cqrs/internal/session/repository"
	"chat-cqrs/internal/telemetry"
)

// ErrInvalidTTL is returned by NewManager for a non-positive session lifetime.
var ErrInvalidTTL = errors.New("session: ttl must be positive")

// Hasher hashes and verifies opaque session tokens. Implemented by security.Hasher.
type Hasher interface {
	Hash(secret string) (string, error)
	Matches(hash, secret string) (bool, error)
}

// CommandPublisher emits session commands. Implemented by producer.KafkaPublisher.
type CommandPublisher interface {
	PublishSessionCommand(ctx context.Context, key string, cmd command.SessionCommand) error
}

// Manager owns every session operation. The producer side uses Create, Validate* and Invalidate*;
// the session-commands consumer uses the command methods in commands.go.
type Manager struct {
	repo      repository.Repository
	hasher    Hasher
	publisher CommandPublisher
	ttl       time.Duration
	metrics   *telemetry.Metrics
	nowFunc   func() time.Time
}

// NewManager returns a Manager. publisher may be nil on the consumer side, where Create is never called.
func NewManager(repo repository.Repository, hasher Hasher, publisher CommandPublisher, ttl time.Duration, metrics *telemetry.Metrics) (*Manager, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	return &Manager{
		repo:      repo,
		hasher:    hasher,
		publisher: publisher,
		ttl:       ttl,
		metrics:   metrics,
		nowFunc:   time.Now,
	}, nil
}

// Create issues a new opaque token for userID and publishes UPSERT_SESSION with its hash.
// The plaintext token is returned once and never stored. The session becomes valid once the consumer applies it.
func (m *Manager) Create(ctx context.Context, userID, username, ip, userAgent string) (string, error) {
	if userID == "" {
		return "", domain.ErrMissingUser
	}
	token := security.NewSessionToken()
	hashed, err := m.hasher.Hash(token)
	if err != nil {
		return "", err
	}
	now := m.nowFunc().UTC()
	expiresAt := now.Add(m.ttl)
	cmd := command.NewSessionCommand(command.KindUpsertSession, hashed, userID, expiresAt, ip, userAgent, now)
	if err := m.publisher.PublishSessionCommand(ctx, userID, cmd); err != nil {
		return "", err
	}
	log.Printf("session: created for user %s (%s), expires %s", username, userID, expiresAt.Format(time.RFC3339))
	return token, nil
}

// Validate finds the live session matching token across all users. It scans every session;
// prefer ValidateForUser. Store errors are logged and reported as no session.
func (m *Manager) Validate(ctx context.Context, token string) (*domain.Session, bool) {
	if token == "" {
		return nil, false
	}
	sessions, err := m.repo.FindAll(ctx)
	if err != nil {
		log.Printf("session: validate: %v", err)
		return nil, false
	}
	return m.match(sessions, token)
}

// ValidateForUser finds the live session of userID matching token. Store errors are logged and reported as no session.
func (m *Manager) ValidateForUser(ctx context.Context, token, userID string) (*domain.Session, bool) {
	if token == "" || userID == "" {
		return nil, false
	}
	sessions, err := m.repo.FindByUserID(ctx, userID)
	if err != nil {
		log.Printf("session: validate for user %s: %v", userID, err)
		return nil, false
	}
	return m.match(sessions, token)
}

func (m *Manager) match(sessions []*domain.Session, token string) (*domain.Session, bool) {
	now := m.nowFunc()
	for _, s := range sessions {
		if s.IsExpired(now) {
			continue
		}
		ok, err := m.hasher.Matches(s.HashedToken, token)
		if err != nil {
			log.Printf("session: unreadable hash on session %s: %v", s.ID, err)
			continue
		}
		if ok {
			return s, true
		}
	}
	return nil, false
}

// Invalidate deletes the session matching token. Unknown or expired tokens are a no-op.
func (m *Manager) Invalidate(ctx context.Context, token string) error {
	s, ok := m.Validate(ctx, token)
	if !ok {
		return nil
	}
	return m.delete(ctx, s)
}

// InvalidateForUser is Invalidate scoped to userID's sessions.
func (m *Manager) InvalidateForUser(ctx context.Context, token, userID string) error {
	s, ok := m.ValidateForUser(ctx, token, userID)
	if !ok {
		return nil
	}
	return m.delete(ctx, s)
}

func (m *Manager) delete(ctx context.Context, s *domain.Session) error {
	if err := m.repo.Delete(ctx, s.ID); err != nil {
		return err
	}
	log.Printf("session: invalidated for user %s", s.UserID)
	return nil
}
