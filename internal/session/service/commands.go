package service

import (
	"context"
	"log"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/session/domain"
)

// Upsert applies UPSERT_SESSION. Without a session for the user a new one is inserted. Otherwise the
// oldest session is updated in place and every other session of the user is deleted, so at most one remains.
// A concurrent update of the same session surfaces as domain.ErrVersionConflict and is retried upstream.
func (m *Manager) Upsert(ctx context.Context, cmd command.SessionCommand) error {
	existing, err := m.repo.FindByUserID(ctx, cmd.UserID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return m.insert(ctx, cmd)
	}

	canonical := existing[0]
	canonical.HashedToken = cmd.HashedSessionToken
	canonical.ExpiresAt = cmd.ExpiresAt
	canonical.IPAddress = cmd.IPAddress
	canonical.UserAgent = cmd.UserAgent
	canonical.LastAccessedAt = m.nowFunc().UTC()
	if err := canonical.Validate(); err != nil {
		return err
	}
	if err := m.repo.Save(ctx, canonical); err != nil {
		return err
	}
	for _, dup := range existing[1:] {
		if err := m.repo.Delete(ctx, dup.ID); err != nil {
			return err
		}
	}
	if len(existing) > 1 {
		log.Printf("session: removed %d duplicate sessions for user %s", len(existing)-1, cmd.UserID)
	}
	return nil
}

// Save applies SAVE_SESSION: the session is inserted as given, without deduplication.
func (m *Manager) Save(ctx context.Context, cmd command.SessionCommand) error {
	return m.insert(ctx, cmd)
}

// Touch applies UPDATE_SESSION: the user's session gets a fresh lastAccessedAt and, when present, the new ip and user agent.
func (m *Manager) Touch(ctx context.Context, cmd command.SessionCommand) error {
	existing, err := m.repo.FindByUserID(ctx, cmd.UserID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		log.Printf("session: update for user %s without a session, ignored", cmd.UserID)
		return nil
	}
	s := existing[0]
	s.LastAccessedAt = m.nowFunc().UTC()
	if cmd.IPAddress != "" {
		s.IPAddress = cmd.IPAddress
	}
	if cmd.UserAgent != "" {
		s.UserAgent = cmd.UserAgent
	}
	return m.repo.Save(ctx, s)
}

// DeleteByHash applies DELETE_SESSION.
func (m *Manager) DeleteByHash(ctx context.Context, cmd command.SessionCommand) error {
	return m.deleteByHash(ctx, cmd, "deleted")
}

// Expire applies EXPIRE_SESSION.
func (m *Manager) Expire(ctx context.Context, cmd command.SessionCommand) error {
	return m.deleteByHash(ctx, cmd, "expired")
}

func (m *Manager) deleteByHash(ctx context.Context, cmd command.SessionCommand, verb string) error {
	s, err := m.repo.FindByHashedToken(ctx, cmd.HashedSessionToken)
	if err != nil {
		return err
	}
	if s == nil {
		log.Printf("session: %s command for user %s matched no session", cmd.Command, cmd.UserID)
		return nil
	}
	if err := m.repo.Delete(ctx, s.ID); err != nil {
		return err
	}
	log.Printf("session: %s session for user %s", verb, s.UserID)
	return nil
}

func (m *Manager) insert(ctx context.Context, cmd command.SessionCommand) error {
	createdAt := cmd.Timestamp.UTC()
	if createdAt.IsZero() {
		createdAt = m.nowFunc().UTC()
	}
	s := &domain.Session{
		HashedToken:    cmd.HashedSessionToken,
		UserID:         cmd.UserID,
		CreatedAt:      createdAt,
		ExpiresAt:      cmd.ExpiresAt.UTC(),
		LastAccessedAt: createdAt,
		IPAddress:      cmd.IPAddress,
		UserAgent:      cmd.UserAgent,
	}
	if err := s.Validate(); err != nil {
		return err
	}
	return m.repo.Save(ctx, s)
}
