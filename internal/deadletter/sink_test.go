package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/deadletter/domain"
	"chat-cqrs/internal/retry"
	"chat-cqrs/internal/telemetry"
)

var fixedNow = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func exhaustedSendMessage() *retry.RetryExhaustedError {
	return &retry.RetryExhaustedError{
		Topic:    "message-commands-retry",
		Key:      []byte("u1"),
		Payload:  []byte(`{"command":"SEND_MESSAGE","threadId":"u1-u2"}`),
		Attempt:  5,
		MaxRetry: 5,
		Cause:    &command.ProcessingError{Kind: command.KindSendMessage, Err: errors.New("mongo down")},
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(exhaustedSendMessage(), fixedNow)
	if rec.ID == "" {
		t.Error("ID should be set")
	}
	if rec.Topic != "message-commands-retry" || rec.Key != "u1" || rec.Command != "SEND_MESSAGE" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Attempts != 5 || rec.MaxRetry != 5 || !rec.FailedAt.Equal(fixedNow) {
		t.Errorf("record = %+v", rec)
	}
	if rec.Cause != "command: process SEND_MESSAGE: mongo down" {
		t.Errorf("Cause = %q", rec.Cause)
	}
}

func TestCommandKindOf_NotJSON(t *testing.T) {
	if got := domain.CommandKindOf([]byte("{broken")); got != "" {
		t.Errorf("CommandKindOf = %q, want empty", got)
	}
}

type captureEmitter struct {
	events chan telemetry.Event
}

func (c *captureEmitter) Emit(ctx context.Context, e telemetry.Event) error {
	c.events <- e
	return nil
}

func TestLogSink_EmitsEvent(t *testing.T) {
	emitter := &captureEmitter{events: make(chan telemetry.Event, 1)}
	sink := NewLogSink(emitter)
	sink.nowFunc = func() time.Time { return fixedNow }

	sink.Handle(context.Background(), exhaustedSendMessage())

	select {
	case e := <-emitter.events:
		if e.Name != "command.dead_letter" || e.Attrs["command"] != "SEND_MESSAGE" || e.Attrs["key"] != "u1" {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("LogSink did not emit an event")
	}
}

func TestLogSink_NilEmitter(t *testing.T) {
	// Should not panic
	NewLogSink(nil).Handle(context.Background(), exhaustedSendMessage())
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSink_WritesPayloadWithHeaders(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w, "dead-letter-commands")
	sink.Handle(context.Background(), exhaustedSendMessage())

	if len(w.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.messages))
	}
	msg := w.messages[0]
	if msg.Topic != "dead-letter-commands" || string(msg.Key) != "u1" {
		t.Errorf("message = %+v", msg)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers[HeaderSourceTopic] != "message-commands-retry" || headers[command.RetryCountHeader] != "5" {
		t.Errorf("headers = %v", headers)
	}
}

func TestKafkaSink_WriteErrorIsSwallowed(t *testing.T) {
	sink := NewKafkaSink(&fakeWriter{err: errors.New("broker down")}, "dead-letter-commands")
	// Should not panic
	sink.Handle(context.Background(), exhaustedSendMessage())
}

type memDeadLetterRepo struct {
	mu      sync.Mutex
	records []*domain.Record
	err     error
}

func (r *memDeadLetterRepo) Create(ctx context.Context, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *memDeadLetterRepo) ListByTopic(ctx context.Context, topic string, limit int) ([]*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Record
	for _, rec := range r.records {
		if rec.Topic == topic {
			out = append(out, rec)
		}
	}
	return out, nil
}

func TestPostgresSink_StoresRecord(t *testing.T) {
	repo := &memDeadLetterRepo{}
	sink := NewPostgresSink(repo)
	sink.nowFunc = func() time.Time { return fixedNow }
	sink.Handle(context.Background(), exhaustedSendMessage())

	got, _ := repo.ListByTopic(context.Background(), "message-commands-retry", 10)
	if len(got) != 1 || got[0].Command != "SEND_MESSAGE" {
		t.Fatalf("records = %+v", got)
	}
}

func TestPostgresSink_ErrorIsSwallowed(t *testing.T) {
	sink := NewPostgresSink(&memDeadLetterRepo{err: errors.New("connection refused")})
	// Should not panic
	sink.Handle(context.Background(), exhaustedSendMessage())
}

type fakeLoki struct {
	lines [][]byte
}

func (f *fakeLoki) PushRecordJSON(ctx context.Context, raw []byte) error {
	f.lines = append(f.lines, raw)
	return nil
}

func TestLokiSink_PushesJSONRecord(t *testing.T) {
	loki := &fakeLoki{}
	sink := NewLokiSink(loki)
	sink.nowFunc = func() time.Time { return fixedNow }
	sink.Handle(context.Background(), exhaustedSendMessage())

	if len(loki.lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(loki.lines))
	}
	var rec domain.Record
	if err := json.Unmarshal(loki.lines[0], &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if rec.Topic != "message-commands-retry" || rec.Command != "SEND_MESSAGE" || !rec.FailedAt.Equal(fixedNow) {
		t.Errorf("record = %+v", rec)
	}
}
