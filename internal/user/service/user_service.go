// Package service implements registration and password login.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/user/domain"
	"chat-cqrs/internal/user/repository"
)

// Failure reasons recorded on LOGIN_ATTEMPT commands.
const (
	ReasonUserNotFound    = "User not found"
	ReasonInvalidPassword = "Invalid password"
)

// unknownUserKey partitions login attempts for usernames that do not exist.
const unknownUserKey = "unknown"

// PasswordHasher is implemented by security.Hasher.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Matches(hash, secret string) (bool, error)
}

// SessionCreator issues a session token on successful login. Implemented by session service.Manager.
type SessionCreator interface {
	Create(ctx context.Context, userID, username, ip, userAgent string) (string, error)
}

// CommandPublisher emits user-commands. Implemented by producer.KafkaPublisher.
type CommandPublisher interface {
	PublishUserCommand(ctx context.Context, key string, cmd command.UserActivityCommand) error
}

// LoginResult is the outcome of Login. Token is set only when Successful.
type LoginResult struct {
	Successful    bool
	FailureReason string
	Token         string
	UserID        string
}

// UserService registers users and authenticates them.
type UserService struct {
	repo      repository.Repository
	hasher    PasswordHasher
	sessions  SessionCreator
	publisher CommandPublisher
	nowFunc   func() time.Time
}

// NewUserService returns a UserService with the given dependencies.
func NewUserService(repo repository.Repository, hasher PasswordHasher, sessions SessionCreator, publisher CommandPublisher) *UserService {
	return &UserService{
		repo:      repo,
		hasher:    hasher,
		sessions:  sessions,
		publisher: publisher,
		nowFunc:   time.Now,
	}
}

// Register stores a new user synchronously and publishes USER_CREATION for the activity log.
func (s *UserService) Register(ctx context.Context, username, password, email, ip, userAgent string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUsernameConflict
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.nowFunc().UTC(),
	}
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}

	cmd := command.NewUserCreation(u.Username, u.ID, strings.TrimSpace(email), ip, userAgent, u.CreatedAt)
	if err := s.publisher.PublishUserCommand(ctx, u.ID, cmd); err != nil {
		log.Printf("user: publish USER_CREATION for %s: %v", u.ID, err)
	}
	log.Printf("user: registered %s (%s)", u.Username, u.ID)
	return u, nil
}

// Login checks the password and opens a session. Every attempt publishes LOGIN_ATTEMPT, keyed by
// the user id or "unknown". A failed attempt returns the result together with domain.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, username, password, ip, userAgent string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{}
	switch {
	case u == nil:
		result.FailureReason = ReasonUserNotFound
	default:
		result.UserID = u.ID
		ok, err := s.hasher.Matches(u.PasswordHash, password)
		if err != nil {
			log.Printf("user: unreadable password hash for %s: %v", u.ID, err)
		}
		if !ok {
			result.FailureReason = ReasonInvalidPassword
			break
		}
		token, err := s.sessions.Create(ctx, u.ID, u.Username, ip, userAgent)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		result.Successful = true
		result.Token = token
	}

	key := result.UserID
	if key == "" {
		key = unknownUserKey
	}
	cmd := command.NewLoginAttempt(username, result.UserID, ip, userAgent, result.Successful, result.FailureReason, s.nowFunc())
	if err := s.publisher.PublishUserCommand(ctx, key, cmd); err != nil {
		log.Printf("user: publish LOGIN_ATTEMPT for %s: %v", key, err)
	}

	if !result.Successful {
		log.Printf("user: login failed for %q: %s", username, result.FailureReason)
		return result, domain.ErrInvalidCredentials
	}
	return result, nil
}

// Lookup returns the user for id, or domain.ErrUserNotFound.
func (s *UserService) Lookup(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func validateUsername(username string) error {
	if n := len(username); n < domain.MinUsernameLen || n > domain.MaxUsernameLen {
		return fmt.Errorf("%w: username must be between %d and %d characters", domain.ErrInvalidInput, domain.MinUsernameLen, domain.MaxUsernameLen)
	}
	return nil
}

func validatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if n := len(password); n < domain.MinPasswordLen || n > domain.MaxPasswordLen {
		return fmt.Errorf("%w: password must be between %d and %d characters", domain.ErrInvalidInput, domain.MinPasswordLen, domain.MaxPasswordLen)
	}
	return nil
}
