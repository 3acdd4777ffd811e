// Package retry escalates failed commands to their retry topic and gives up after a bounded number of attempts.
package retry

import (
	"context"
	"fmt"
	"log"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/telemetry"
)

// DefaultMaxRetry is the number of republishes before a command is given up.
const DefaultMaxRetry = 5

// Republisher writes raw bytes with a retry-count header. Implemented by producer.KafkaPublisher.
type Republisher interface {
	Republish(ctx context.Context, topic string, key, value []byte, attempt int) error
}

// Sink receives every command that exhausted its retries, exactly once per give-up.
// Implementations are best-effort: they log their own failures and never block the consumer for long.
type Sink interface {
	Handle(ctx context.Context, exhausted *RetryExhaustedError)
}

// RetryExhaustedError is the terminal outcome of a command that failed on its last allowed attempt.
type RetryExhaustedError struct {
	Topic    string
	Key      []byte
	Payload  []byte
	Attempt  int
	MaxRetry int
	Cause    error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry: max retry attempts (%d) exceeded for message on %s: %v", e.MaxRetry, e.Topic, e.Cause)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Cause }

// RepublishError means the escalation itself could not be written.
type RepublishError struct {
	Topic   string
	Attempt int
	Err     error
}

func (e *RepublishError) Error() string {
	return fmt.Sprintf("retry: republish to %s (attempt %d): %v", e.Topic, e.Attempt, e.Err)
}

func (e *RepublishError) Unwrap() error { return e.Err }

// Escalator decides between another attempt and giving up.
type Escalator struct {
	republisher Republisher
	sink        Sink
	maxRetry    int
	metrics     *telemetry.Metrics
}

// NewEscalator returns an escalator. A negative maxRetry is treated as 0; sink and metrics may be nil.
func NewEscalator(republisher Republisher, sink Sink, maxRetry int, metrics *telemetry.Metrics) *Escalator {
	if maxRetry < 0 {
		maxRetry = 0
	}
	return &Escalator{republisher: republisher, sink: sink, maxRetry: maxRetry, metrics: metrics}
}

// MaxRetry returns the retry ceiling.
func (e *Escalator) MaxRetry() int { return e.maxRetry }

// Escalate handles a failed delivery. Below the ceiling the unmodified key and value go to the retry topic
// with attempt+1 and nil is returned. At the ceiling the sink is notified and a *RetryExhaustedError is returned.
func (e *Escalator) Escalate(ctx context.Context, d command.Delivery, cause error) error {
	if d.Attempt < e.maxRetry {
		next := d.Attempt + 1
		topic := command.RetryTopic(d.Topic)
		if err := e.republisher.Republish(ctx, topic, d.Key, d.Value, next); err != nil {
			log.Printf("retry: republish to %s failed (attempt %d): %v", topic, next, err)
			return &RepublishError{Topic: topic, Attempt: next, Err: err}
		}
		log.Printf("retry: sent message from %s to %s (attempt %d/%d): %v", d.Topic, topic, next, e.maxRetry, cause)
		e.metrics.Retried(ctx, topic)
		return nil
	}

	exhausted := &RetryExhaustedError{
		Topic:    d.Topic,
		Key:      d.Key,
		Payload:  d.Value,
		Attempt:  d.Attempt,
		MaxRetry: e.maxRetry,
		Cause:    cause,
	}
	log.Printf("%v", exhausted)
	e.metrics.Exhausted(ctx, d.Topic)
	if e.sink != nil {
		e.sink.Handle(ctx, exhausted)
	}
	return exhausted
}
