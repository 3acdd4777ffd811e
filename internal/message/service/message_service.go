// Package service implements message sending on the producer side and conversation queries.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/message/domain"
	"chat-cqrs/internal/message/repository"
	userdomain "chat-cqrs/internal/user/domain"
)

// DefaultPageLimit is used by ConversationPage when limit is not positive.
const DefaultPageLimit = 50

// UserFinder is the minimal user repository needed by the message service.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*userdomain.User, error)
	FindByUsername(ctx context.Context, username string) (*userdomain.User, error)
}

// CommandPublisher emits message-commands. Implemented by producer.KafkaPublisher.
type CommandPublisher interface {
	PublishMessageCommand(ctx context.Context, key string, cmd command.MessageCommand) error
}

// MessageService sends messages and reads conversations.
type MessageService struct {
	repo      repository.Repository
	users     UserFinder
	publisher CommandPublisher
	nowFunc   func() time.Time
}

// NewMessageService returns a MessageService. publisher may be nil when only Store is used.
func NewMessageService(repo repository.Repository, users UserFinder, publisher CommandPublisher) *MessageService {
	return &MessageService{repo: repo, users: users, publisher: publisher, nowFunc: time.Now}
}

// Send publishes SEND_MESSAGE from senderID to the user named recipient, keyed by senderID.
// The returned message is provisional: it has no id until the consumer stores it.
func (s *MessageService) Send(ctx context.Context, senderID, recipient, content string) (*domain.Message, error) {
	recipient = strings.TrimSpace(recipient)
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > domain.MaxContentLen {
		return nil, fmt.Errorf("%w: content must be between 1 and %d characters", domain.ErrInvalidContent, domain.MaxContentLen)
	}
	sender, err := s.users.FindByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, fmt.Errorf("sender %s: %w", senderID, userdomain.ErrUserNotFound)
	}
	to, err := s.users.FindByUsername(ctx, recipient)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return nil, fmt.Errorf("recipient %q: %w", recipient, userdomain.ErrUserNotFound)
	}

	now := s.nowFunc().UTC()
	threadID := domain.ThreadID(senderID, to.ID)
	cmd := command.NewSendMessage(threadID, senderID, sender.Username, recipient, content, now)
	if err := s.publisher.PublishMessageCommand(ctx, senderID, cmd); err != nil {
		return nil, err
	}
	log.Printf("message: sent from %s to %s in thread %s", senderID, recipient, threadID)
	return &domain.Message{
		ThreadID:       threadID,
		SenderID:       senderID,
		SenderUsername: sender.Username,
		Content:        content,
		Timestamp:      now,
		Status:         domain.StatusSent,
	}, nil
}

// Conversation returns every message between userA and userB, oldest first.
// An existing pair with no messages returns domain.ErrThreadNotFound.
func (s *MessageService) Conversation(ctx context.Context, userA, userB string) ([]*domain.Message, error) {
	threadID, err := s.thread(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.FindByThreadID(ctx, threadID, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, domain.ErrThreadNotFound
	}
	return msgs, nil
}

// ConversationPage returns one page of the conversation between userA and userB with its total size.
func (s *MessageService) ConversationPage(ctx context.Context, userA, userB string, offset, limit int) (*domain.Page, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	threadID, err := s.thread(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountByThreadID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, domain.ErrThreadNotFound
	}
	msgs, err := s.repo.FindByThreadID(ctx, threadID, offset, limit)
	if err != nil {
		return nil, err
	}
	return &domain.Page{Messages: msgs, Total: total, Offset: offset, Limit: limit}, nil
}

// Store applies SEND_MESSAGE: the message is saved with status sent.
func (s *MessageService) Store(ctx context.Context, cmd command.MessageCommand) error {
	m := &domain.Message{
		ThreadID:       cmd.ThreadID,
		SenderID:       cmd.SenderID,
		SenderUsername: cmd.SenderUsername,
		Content:        cmd.Content,
		Timestamp:      cmd.Timestamp,
		Status:         domain.StatusSent,
	}
	if err := s.repo.Save(ctx, m); err != nil {
		return err
	}
	log.Printf("message: stored %s in thread %s", m.ID, m.ThreadID)
	return nil
}

func (s *MessageService) thread(ctx context.Context, userA, userB string) (string, error) {
	for _, id := range []string{userA, userB} {
		u, err := s.users.FindByID(ctx, id)
		if err != nil {
			return "", err
		}
		if u == nil {
			return "", fmt.Errorf("user %s: %w", id, userdomain.ErrUserNotFound)
		}
	}
	return domain.ThreadID(userA, userB), nil
}
