package retry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"chat-cqrs/internal/command"
)

type republished struct {
	topic   string
	key     string
	value   string
	attempt int
}

type fakeRepublisher struct {
	mu   sync.Mutex
	sent []republished
	err  error
}

func (f *fakeRepublisher) Republish(ctx context.Context, topic string, key, value []byte, attempt int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, republished{topic: topic, key: string(key), value: string(value), attempt: attempt})
	return nil
}

type fakeSink struct {
	mu        sync.Mutex
	exhausted []*RetryExhaustedError
}

func (s *fakeSink) Handle(ctx context.Context, e *RetryExhaustedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exhausted = append(s.exhausted, e)
}

func TestEscalate_BelowCeilingRepublishes(t *testing.T) {
	testCases := []struct {
		name      string
		topic     string
		attempt   int
		wantTopic string
	}{
		{"first failure on primary", "user-commands", 0, "user-commands-retry"},
		{"failure on retry topic stays there", "user-commands-retry", 3, "user-commands-retry"},
		{"one below ceiling", "session-commands-retry", 4, "session-commands-retry"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rep := &fakeRepublisher{}
			sink := &fakeSink{}
			e := NewEscalator(rep, sink, 5, nil)

			d := command.Delivery{Topic: tc.topic, Key: []byte("u1"), Value: []byte(`{"command":"X"}`), Attempt: tc.attempt}
			if err := e.Escalate(context.Background(), d, errors.New("boom")); err != nil {
				t.Fatalf("Escalate: %v", err)
			}
			if len(rep.sent) != 1 {
				t.Fatalf("republished %d times, want 1", len(rep.sent))
			}
			got := rep.sent[0]
			if got.topic != tc.wantTopic || got.attempt != tc.attempt+1 {
				t.Errorf("republished to %s attempt %d, want %s attempt %d", got.topic, got.attempt, tc.wantTopic, tc.attempt+1)
			}
			if got.key != "u1" || got.value != `{"command":"X"}` {
				t.Errorf("key/value changed: %+v", got)
			}
			if len(sink.exhausted) != 0 {
				t.Error("sink must not be called below the ceiling")
			}
		})
	}
}

func TestEscalate_AtCeilingGivesUp(t *testing.T) {
	rep := &fakeRepublisher{}
	sink := &fakeSink{}
	e := NewEscalator(rep, sink, 5, nil)
	cause := &command.ProcessingError{Kind: command.KindSendMessage, Err: errors.New("mongo down")}

	d := command.Delivery{Topic: "message-commands-retry", Key: []byte("u1"), Value: []byte("v"), Attempt: 5}
	err := e.Escalate(context.Background(), d, cause)

	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Escalate err = %v, want *RetryExhaustedError", err)
	}
	if exhausted.MaxRetry != 5 || exhausted.Attempt != 5 || exhausted.Topic != "message-commands-retry" {
		t.Errorf("exhausted = %+v", exhausted)
	}
	var pe *command.ProcessingError
	if !errors.As(err, &pe) {
		t.Error("RetryExhaustedError should unwrap to its cause")
	}
	if len(rep.sent) != 0 {
		t.Error("nothing should be republished at the ceiling")
	}
	if len(sink.exhausted) != 1 || sink.exhausted[0] != exhausted {
		t.Errorf("sink received %d records, want exactly 1", len(sink.exhausted))
	}
}

func TestEscalate_AttemptIncreasesByOneUntilExhausted(t *testing.T) {
	rep := &fakeRepublisher{}
	sink := &fakeSink{}
	e := NewEscalator(rep, sink, 5, nil)
	ctx := context.Background()

	d := command.Delivery{Topic: "user-commands", Key: []byte("u1"), Value: []byte("v")}
	for {
		err := e.Escalate(ctx, d, errors.New("still failing"))
		if err != nil {
			var exhausted *RetryExhaustedError
			if !errors.As(err, &exhausted) {
				t.Fatalf("Escalate err = %v", err)
			}
			break
		}
		last := rep.sent[len(rep.sent)-1]
		if last.attempt != d.Attempt+1 {
			t.Fatalf("attempt went from %d to %d", d.Attempt, last.attempt)
		}
		d = command.Delivery{Topic: last.topic, Key: []byte(last.key), Value: []byte(last.value), Attempt: last.attempt}
	}
	if len(rep.sent) != 5 {
		t.Errorf("republished %d times, want 5", len(rep.sent))
	}
	if len(sink.exhausted) != 1 {
		t.Errorf("sink received %d records, want 1", len(sink.exhausted))
	}
}

func TestEscalate_ZeroMaxRetryGivesUpImmediately(t *testing.T) {
	rep := &fakeRepublisher{}
	e := NewEscalator(rep, nil, -3, nil)
	if e.MaxRetry() != 0 {
		t.Fatalf("MaxRetry = %d, want 0", e.MaxRetry())
	}
	err := e.Escalate(context.Background(), command.Delivery{Topic: "t"}, errors.New("x"))
	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *RetryExhaustedError", err)
	}
}

func TestEscalate_RepublishFailure(t *testing.T) {
	brokerErr := errors.New("broker unavailable")
	e := NewEscalator(&fakeRepublisher{err: brokerErr}, &fakeSink{}, 5, nil)

	err := e.Escalate(context.Background(), command.Delivery{Topic: "user-commands", Attempt: 1}, errors.New("x"))
	var re *RepublishError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *RepublishError", err)
	}
	if re.Topic != "user-commands-retry" || re.Attempt != 2 || !errors.Is(err, brokerErr) {
		t.Errorf("RepublishError = %+v", re)
	}
}
