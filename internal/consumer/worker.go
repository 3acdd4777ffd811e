// Package consumer runs the Kafka read loop for one topic family and its retry companion.
package consumer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/retry"
)

// readErrorBackoff is the pause after a failed fetch before the loop tries again.
const readErrorBackoff = time.Second

// Reader is the subset of *kafka.Reader used by the worker.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Processor handles one delivery. Implemented by dispatch.Processor.
type Processor interface {
	Process(ctx context.Context, d command.Delivery) error
}

// NewKafkaReader returns a consumer-group reader over topic and its retry companion.
// Offsets are committed explicitly by the worker after each message.
func NewKafkaReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: []string{topic, command.RetryTopic(topic)},
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     1 * time.Second,
	})
}

// Worker feeds every fetched message to a Processor and commits it afterwards.
type Worker struct {
	name      string
	reader    Reader
	processor Processor
	backoff   time.Duration
}

// NewWorker returns a worker that logs under name.
func NewWorker(name string, reader Reader, processor Processor) *Worker {
	return &Worker{name: name, reader: reader, processor: processor, backoff: readErrorBackoff}
}

// Run consumes until ctx is cancelled and returns ctx.Err(). Fetch and commit errors are logged and the loop continues.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("%s: consuming", w.name)
	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("%s: stopped", w.name)
				return ctx.Err()
			}
			log.Printf("%s: kafka read error: %v", w.name, err)
			select {
			case <-ctx.Done():
				log.Printf("%s: stopped", w.name)
				return ctx.Err()
			case <-time.After(w.backoff):
			}
			continue
		}

		w.handle(ctx, msg)

		if err := w.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				log.Printf("%s: stopped", w.name)
				return ctx.Err()
			}
			log.Printf("%s: commit %s/%d@%d failed: %v", w.name, msg.Topic, msg.Partition, msg.Offset, err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg kafka.Message) {
	d := command.Delivery{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Attempt:   w.attempt(msg),
	}
	err := w.processor.Process(ctx, d)
	if err == nil {
		return
	}
	var exhausted *retry.RetryExhaustedError
	if errors.As(err, &exhausted) {
		log.Printf("%s: giving up on %s/%d@%d after %d attempts", w.name, msg.Topic, msg.Partition, msg.Offset, exhausted.Attempt)
		return
	}
	log.Printf("%s: message %s/%d@%d dropped: %v", w.name, msg.Topic, msg.Partition, msg.Offset, err)
}

// attempt reads the retry-count header. A malformed value counts as attempt 0.
func (w *Worker) attempt(msg kafka.Message) int {
	for _, h := range msg.Headers {
		if h.Key != command.RetryCountHeader {
			continue
		}
		n, err := command.ParseRetryCount(string(h.Value))
		if err != nil {
			log.Printf("%s: malformed %s header %q on %s/%d@%d, treating as 0", w.name, command.RetryCountHeader, h.Value, msg.Topic, msg.Partition, msg.Offset)
			return 0
		}
		return n
	}
	return 0
}

// Close closes the underlying reader.
func (w *Worker) Close() error {
	return w.reader.Close()
}
