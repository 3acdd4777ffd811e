package domain

import (
	"errors"
	"time"
)

var (
	ErrThreadNotFound = errors.New("conversation not found")
	// ErrInvalidContent is returned for empty or oversized message bodies.
	ErrInvalidContent = errors.New("invalid message content")
)

// MaxContentLen is the longest message body accepted, in characters.
const MaxContentLen = 1000

// Status is the delivery state of a stored message.
type Status string

// StatusSent marks a message the consumer has stored.
const StatusSent Status = "sent"

// Message is one chat message in a thread.
type Message struct {
	ID             string
	ThreadID       string
	SenderID       string
	SenderUsername string
	Content        string
	Timestamp      time.Time
	Status         Status
}

// ThreadID is the conversation id of two users: the smaller id, a dash, the larger. It is symmetric.
func ThreadID(a, b string) string {
	if a < b {
		return a + "-" + b
	}
	return b + "-" + a
}

// Page is one slice of a conversation and the conversation's total size.
type Page struct {
	Messages []*Message
	Total    int64
	Offset   int
	Limit    int
}
