// Package deadletter provides the sinks that receive commands given up by the retry escalator.
// The default sink only logs; the others persist the record to a backing store chosen by the operator.
package deadletter

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/command/producer"
	"chat-cqrs/internal/deadletter/domain"
	"chat-cqrs/internal/deadletter/repository"
	"chat-cqrs/internal/retry"
	"chat-cqrs/internal/telemetry"
)

// sinkTimeout bounds a single sink write so a slow store does not stall the consumer.
const sinkTimeout = 5 * time.Second

// NewRecord converts an exhausted command into a storable record.
func NewRecord(e *retry.RetryExhaustedError, now time.Time) *domain.Record {
	cause := ""
	if e.Cause != nil {
		cause = e.Cause.Error()
	}
	return &domain.Record{
		ID:       uuid.New().String(),
		Topic:    e.Topic,
		Key:      string(e.Key),
		Command:  domain.CommandKindOf(e.Payload),
		Payload:  string(e.Payload),
		Attempts: e.Attempt,
		MaxRetry: e.MaxRetry,
		Cause:    cause,
		FailedAt: now.UTC(),
	}
}

// LogSink logs every exhausted command and optionally emits it as a telemetry event.
type LogSink struct {
	emitter telemetry.EventEmitter
	nowFunc func() time.Time
}

// NewLogSink returns the default sink. emitter may be nil.
func NewLogSink(emitter telemetry.EventEmitter) *LogSink {
	return &LogSink{emitter: emitter, nowFunc: time.Now}
}

func (s *LogSink) Handle(ctx context.Context, e *retry.RetryExhaustedError) {
	rec := NewRecord(e, s.nowFunc())
	log.Printf("deadletter: dropped %s command from %s (key %q) after %d attempts: %s",
		rec.Command, rec.Topic, rec.Key, rec.Attempts, rec.Cause)
	telemetry.EmitAsync(s.emitter, telemetry.Event{
		Name:      "command.dead_letter",
		Timestamp: rec.FailedAt,
		Body:      e.Payload,
		Attrs: map[string]string{
			"topic":   rec.Topic,
			"key":     rec.Key,
			"command": rec.Command,
			"cause":   rec.Cause,
		},
	})
}

// KafkaSink writes the original payload to a dead-letter topic with the failure described in headers.
type KafkaSink struct {
	writer  producer.Writer
	topic   string
	nowFunc func() time.Time
}

// NewKafkaSink returns a sink that writes to topic.
func NewKafkaSink(writer producer.Writer, topic string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic, nowFunc: time.Now}
}

// Dead-letter headers set by KafkaSink.
const (
	HeaderSourceTopic = "x-source-topic"
	HeaderCause       = "x-failure-cause"
)

func (s *KafkaSink) Handle(ctx context.Context, e *retry.RetryExhaustedError) {
	rec := NewRecord(e, s.nowFunc())
	writeCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()
	err := s.writer.WriteMessages(writeCtx, kafka.Message{
		Topic: s.topic,
		Key:   e.Key,
		Value: e.Payload,
		Time:  rec.FailedAt,
		Headers: []kafka.Header{
			{Key: HeaderSourceTopic, Value: []byte(rec.Topic)},
			{Key: HeaderCause, Value: []byte(rec.Cause)},
			{Key: command.RetryCountHeader, Value: command.FormatRetryCount(rec.Attempts)},
		},
	})
	if err != nil {
		log.Printf("deadletter: kafka write to %s failed for %s (key %q): %v", s.topic, rec.Topic, rec.Key, err)
	}
}

// PostgresSink stores records in the dead_letters table.
type PostgresSink struct {
	repo    repository.Repository
	nowFunc func() time.Time
}

// NewPostgresSink returns a sink backed by repo.
func NewPostgresSink(repo repository.Repository) *PostgresSink {
	return &PostgresSink{repo: repo, nowFunc: time.Now}
}

func (s *PostgresSink) Handle(ctx context.Context, e *retry.RetryExhaustedError) {
	rec := NewRecord(e, s.nowFunc())
	writeCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()
	if err := s.repo.Create(writeCtx, rec); err != nil {
		log.Printf("deadletter: postgres insert failed for %s (key %q): %v", rec.Topic, rec.Key, err)
	}
}

// LokiPusher pushes one JSON line. Implemented by loki.Client.
type LokiPusher interface {
	PushRecordJSON(ctx context.Context, rawJSON []byte) error
}

// LokiSink pushes records as JSON lines to Loki.
type LokiSink struct {
	client  LokiPusher
	nowFunc func() time.Time
}

// NewLokiSink returns a sink backed by client.
func NewLokiSink(client LokiPusher) *LokiSink {
	return &LokiSink{client: client, nowFunc: time.Now}
}

func (s *LokiSink) Handle(ctx context.Context, e *retry.RetryExhaustedError) {
	rec := NewRecord(e, s.nowFunc())
	line, err := json.Marshal(rec)
	if err != nil {
		log.Printf("deadletter: encode record for %s: %v", rec.Topic, err)
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()
	if err := s.client.PushRecordJSON(pushCtx, line); err != nil {
		log.Printf("deadletter: loki push failed for %s (key %q): %v", rec.Topic, rec.Key, err)
	}
}
