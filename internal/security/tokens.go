package security

import "github.com/google/uuid"

// NewSessionToken returns a random opaque session token (UUID v4). Only its hash is stored.
func NewSessionToken() string {
	return uuid.NewString()
}
