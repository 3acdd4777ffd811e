package domain

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameConflict   = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput wraps every registration validation failure.
	ErrInvalidInput = errors.New("invalid input")
)

// Username and password bounds enforced at registration.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 20
	MinPasswordLen = 6
	MaxPasswordLen = 72
)

// User is a registered account. PasswordHash is a bcrypt hash; the plaintext is never kept.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
