// Package handler binds user-commands kinds to the activity log writer.
package handler

import (
	"context"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/dispatch"
)

// Recorder is implemented by service.ActivityService.
type Recorder interface {
	Record(ctx context.Context, cmd command.UserActivityCommand) error
}

// NewRegistry returns the user-commands registry.
func NewRegistry(r Recorder) *dispatch.Registry[command.UserActivityCommand] {
	h := dispatch.HandlerFunc[command.UserActivityCommand](r.Record)
	return dispatch.NewRegistry(map[command.Kind]dispatch.Handler[command.UserActivityCommand]{
		command.KindUserCreation: h,
		command.KindLoginAttempt: h,
	})
}
