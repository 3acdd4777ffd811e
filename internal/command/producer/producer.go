// Package producer publishes commands to Kafka.
package producer

import (
	"context"

	"github.com/segmentio/kafka-go"

	"chat-cqrs/internal/command"
)

// Writer is the subset of *kafka.Writer used by the publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is the write side of the pipeline.
type Publisher interface {
	// Publish encodes cmd and writes it to topic keyed by partitionKey. Messages sharing a key keep
	// their submission order.
	Publish(ctx context.Context, topic, partitionKey string, cmd command.Envelope) error
	// Republish writes already encoded bytes with a retry-count header.
	Republish(ctx context.Context, topic string, key, value []byte, attempt int) error
	// Close releases the Kafka writer. Safe to call if already closed.
	Close() error
}
