package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"chat-cqrs/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), telemetry.Event{Name: "x"}); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestNewEventEmitter_RealProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), telemetry.Event{Name: "dead_letter"}); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func attrsOf(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	event := telemetry.Event{
		Name:      "dead_letter",
		Timestamp: at,
		Body:      []byte(`{"command":"SEND_MESSAGE"}`),
		Attrs:     map[string]string{"topic": "message-commands-retry", "key": "u1", "empty": ""},
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec

	if got := rec.Body().AsString(); got != `{"command":"SEND_MESSAGE"}` {
		t.Errorf("body = %q, want payload", got)
	}
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	attrs := attrsOf(rec)
	want := map[string]string{"event_name": "dead_letter", "topic": "message-commands-retry", "key": "u1"}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
	if _, ok := attrs["empty"]; ok {
		t.Error("empty attribute values should be skipped")
	}
}

func TestEmit_EmptyBody_NoBodySet(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	if err := em.Emit(context.Background(), telemetry.Event{Name: "sweep"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !cap.rec.Body().Empty() {
		t.Error("body should be empty when event has no body")
	}
}

func TestEmit_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	before := time.Now().UTC()
	if err := em.Emit(context.Background(), telemetry.Event{Name: "x"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()
	timestamp := cap.rec.Timestamp()
	if timestamp.Before(before) || timestamp.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", timestamp, before, after)
	}
}
