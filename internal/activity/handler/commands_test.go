package handler

import (
	"context"
	"testing"

	"chat-cqrs/internal/command"
)

type recordingRecorder struct {
	kinds []command.Kind
}

func (r *recordingRecorder) Record(ctx context.Context, cmd command.UserActivityCommand) error {
	r.kinds = append(r.kinds, cmd.Command)
	return nil
}

func TestNewRegistry(t *testing.T) {
	rec := &recordingRecorder{}
	reg := NewRegistry(rec)
	for _, k := range command.UserKinds() {
		h, ok := reg.Resolve(k)
		if !ok {
			t.Fatalf("Resolve(%s) failed", k)
		}
		if err := h.Handle(context.Background(), command.UserActivityCommand{Command: k}); err != nil {
			t.Fatalf("Handle(%s): %v", k, err)
		}
	}
	if len(rec.kinds) != 2 || rec.kinds[0] != command.KindUserCreation || rec.kinds[1] != command.KindLoginAttempt {
		t.Errorf("recorded %v", rec.kinds)
	}
	if _, ok := reg.Resolve(command.KindUpsertSession); ok {
		t.Error("session kinds must not resolve in the user registry")
	}
}
