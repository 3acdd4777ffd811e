// Package handler binds message-commands kinds to the message service.
package handler

import (
	"context"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/dispatch"
)

// Storer persists a sent message. Implemented by service.MessageService.
type Storer interface {
	Store(ctx context.Context, cmd command.MessageCommand) error
}

// NewRegistry returns the message-commands registry.
func NewRegistry(s Storer) *dispatch.Registry[command.MessageCommand] {
	return dispatch.NewRegistry(map[command.Kind]dispatch.Handler[command.MessageCommand]{
		command.KindSendMessage: dispatch.HandlerFunc[command.MessageCommand](s.Store),
	})
}
