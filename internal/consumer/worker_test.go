package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/command/producer"
	"chat-cqrs/internal/dispatch"
	"chat-cqrs/internal/retry"
)

// fakeReader serves queued messages, optional fetch errors, then cancels the run.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErrs []error
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) == 0 {
		r.mu.Unlock()
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	r.mu.Unlock()
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeSink struct {
	mu        sync.Mutex
	exhausted []*retry.RetryExhaustedError
}

func (s *fakeSink) Handle(ctx context.Context, e *retry.RetryExhaustedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exhausted = append(s.exhausted, e)
}

type recordingProcessor struct {
	mu         sync.Mutex
	deliveries []command.Delivery
	err        error
}

func (p *recordingProcessor) Process(ctx context.Context, d command.Delivery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, d)
	return p.err
}

func runWorker(t *testing.T, reader *fakeReader, p Processor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	reader.cancel = cancel
	w := NewWorker("test-consumer", reader, p)
	w.backoff = time.Millisecond
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_ParsesRetryHeader(t *testing.T) {
	testCases := []struct {
		name    string
		headers []kafka.Header
		want    int
	}{
		{"absent", nil, 0},
		{"present", []kafka.Header{{Key: "other", Value: []byte("9")}, {Key: command.RetryCountHeader, Value: []byte("3")}}, 3},
		{"malformed", []kafka.Header{{Key: command.RetryCountHeader, Value: []byte("three")}}, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &recordingProcessor{}
			reader := &fakeReader{queue: []kafka.Message{{Topic: "user-commands", Key: []byte("u1"), Value: []byte("{}"), Headers: tc.headers}}}
			runWorker(t, reader, p)

			if len(p.deliveries) != 1 {
				t.Fatalf("deliveries = %d, want 1", len(p.deliveries))
			}
			if p.deliveries[0].Attempt != tc.want {
				t.Errorf("Attempt = %d, want %d", p.deliveries[0].Attempt, tc.want)
			}
		})
	}
}

func TestWorker_CommitsAfterEveryOutcome(t *testing.T) {
	p := &recordingProcessor{err: &retry.RetryExhaustedError{Topic: "t", MaxRetry: 5, Attempt: 5}}
	reader := &fakeReader{
		queue:     []kafka.Message{{Topic: "t", Offset: 1}, {Topic: "t", Offset: 2}},
		fetchErrs: []error{errors.New("rebalance in progress")},
	}
	runWorker(t, reader, p)

	if len(reader.committed) != 2 {
		t.Fatalf("committed = %d, want 2", len(reader.committed))
	}
	if reader.committed[0].Offset != 1 || reader.committed[1].Offset != 2 {
		t.Errorf("commit order = %d, %d", reader.committed[0].Offset, reader.committed[1].Offset)
	}
}

// A SEND_MESSAGE payload that cannot be decoded arrives with attempt 4 of 5: it is republished with
// attempt 5, and the republished copy is given up.
func TestWorker_DecodeFailureEscalatesThenExhausts(t *testing.T) {
	writer := &fakeWriter{}
	publisher, err := producer.NewKafkaPublisher(writer, command.DefaultTopics(), nil)
	if err != nil {
		t.Fatalf("NewKafkaPublisher: %v", err)
	}
	sink := &fakeSink{}
	escalator := retry.NewEscalator(publisher, sink, 5, nil)
	handled := 0
	registry := dispatch.NewRegistry(map[command.Kind]dispatch.Handler[command.MessageCommand]{
		command.KindSendMessage: dispatch.HandlerFunc[command.MessageCommand](func(context.Context, command.MessageCommand) error {
			handled++
			return nil
		}),
	})
	processor := dispatch.NewProcessor("message-consumer", registry, escalator, nil)

	first := kafka.Message{
		Topic:   "message-commands-retry",
		Key:     []byte("u1"),
		Value:   []byte(`{"command":"SEND_MESSAGE",`),
		Headers: []kafka.Header{{Key: command.RetryCountHeader, Value: []byte("4")}},
	}
	runWorker(t, &fakeReader{queue: []kafka.Message{first}}, processor)

	if len(writer.messages) != 1 {
		t.Fatalf("republished %d messages, want 1", len(writer.messages))
	}
	again := writer.messages[0]
	if again.Topic != "message-commands-retry" || string(again.Value) != string(first.Value) || string(again.Key) != "u1" {
		t.Errorf("republished = %+v", again)
	}
	if len(again.Headers) != 1 || string(again.Headers[0].Value) != "5" {
		t.Fatalf("headers = %v, want x-retryCount=5", again.Headers)
	}

	runWorker(t, &fakeReader{queue: []kafka.Message{again}}, processor)

	if len(writer.messages) != 1 {
		t.Errorf("republished %d messages after exhaustion, want still 1", len(writer.messages))
	}
	if len(sink.exhausted) != 1 {
		t.Fatalf("sink received %d records, want 1", len(sink.exhausted))
	}
	if sink.exhausted[0].MaxRetry != 5 {
		t.Errorf("MaxRetry = %d, want 5", sink.exhausted[0].MaxRetry)
	}
	var de *command.DecodeError
	if !errors.As(sink.exhausted[0], &de) {
		t.Errorf("cause = %v, want *DecodeError", sink.exhausted[0].Cause)
	}
	if handled != 0 {
		t.Errorf("handler ran %d times, want 0", handled)
	}
}
