// Package handler binds session-commands kinds to the session manager.
package handler

import (
	"context"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/dispatch"
)

// Applier is the consumer-side surface of service.Manager.
type Applier interface {
	Upsert(ctx context.Context, cmd command.SessionCommand) error
	Save(ctx context.Context, cmd command.SessionCommand) error
	Touch(ctx context.Context, cmd command.SessionCommand) error
	DeleteByHash(ctx context.Context, cmd command.SessionCommand) error
	Expire(ctx context.Context, cmd command.SessionCommand) error
}

// NewRegistry returns the session-commands registry.
func NewRegistry(a Applier) *dispatch.Registry[command.SessionCommand] {
	return dispatch.NewRegistry(map[command.Kind]dispatch.Handler[command.SessionCommand]{
		command.KindSaveSession:   dispatch.HandlerFunc[command.SessionCommand](a.Save),
		command.KindUpsertSession: dispatch.HandlerFunc[command.SessionCommand](a.Upsert),
		command.KindUpdateSession: dispatch.HandlerFunc[command.SessionCommand](a.Touch),
		command.KindDeleteSession: dispatch.HandlerFunc[command.SessionCommand](a.DeleteByHash),
		command.KindExpireSession: dispatch.HandlerFunc[command.SessionCommand](a.Expire),
	})
}
