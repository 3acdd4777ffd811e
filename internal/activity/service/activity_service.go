// Package service writes and reads per-user activity logs.
package service

import (
	"context"
	"fmt"
	"log"

	"chat-cqrs/internal/activity/domain"
	"chat-cqrs/internal/activity/repository"
	"chat-cqrs/internal/command"
)

// DefaultPageLimit is used by Page when limit is not positive.
const DefaultPageLimit = 20

// ActivityService appends to and pages through per-user activity logs.
type ActivityService struct {
	repo repository.Repository
}

// NewActivityService returns an ActivityService backed by repo.
func NewActivityService(repo repository.Repository) *ActivityService {
	return &ActivityService{repo: repo}
}

// Append adds entry to userID's log, creating the log on first use.
func (s *ActivityService) Append(ctx context.Context, userID string, entry domain.Entry) error {
	l, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if l == nil {
		l = &domain.ActivityLog{UserID: userID}
	}
	l.Append(entry)
	if err := s.repo.Save(ctx, l); err != nil {
		return err
	}
	log.Printf("activity: %s recorded for user %s (%d entries)", entry.Action, userID, len(l.Logs))
	return nil
}

// List returns userID's whole log; a user without one gets an empty log.
func (s *ActivityService) List(ctx context.Context, userID string) (*domain.ActivityLog, error) {
	l, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return &domain.ActivityLog{UserID: userID, Logs: []domain.Entry{}}, nil
	}
	return l, nil
}

// Page returns one page of userID's log with the log's total size.
func (s *ActivityService) Page(ctx context.Context, userID string, offset, limit int) (*domain.EntryPage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	total, err := s.repo.Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	page := &domain.EntryPage{Entries: []domain.Entry{}, Total: total, Offset: offset, Limit: limit}
	if total == 0 || int64(offset) >= total {
		return page, nil
	}
	entries, err := s.repo.Page(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	page.Entries = entries
	return page, nil
}

// Record applies USER_CREATION and LOGIN_ATTEMPT to the subject's log.
func (s *ActivityService) Record(ctx context.Context, cmd command.UserActivityCommand) error {
	var action domain.Action
	switch cmd.Command {
	case command.KindUserCreation:
		action = domain.ActionUserCreation
	case command.KindLoginAttempt:
		action = domain.ActionLoginAttempt
	default:
		return fmt.Errorf("activity: no action for %s", cmd.Command)
	}
	if cmd.UserID == "" {
		log.Printf("activity: %s for unknown user %q not recorded", cmd.Command, cmd.Username)
		return nil
	}
	return s.Append(ctx, cmd.UserID, domain.Entry{
		IPAddress:     cmd.IPAddress,
		UserAgent:     cmd.UserAgent,
		Successful:    cmd.Successful,
		Timestamp:     cmd.Timestamp,
		FailureReason: cmd.FailureReason,
		Action:        action,
	})
}
