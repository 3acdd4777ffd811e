package producer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/telemetry"
)

// writeTimeout bounds a single write so a slow broker does not block callers indefinitely.
const writeTimeout = 5 * time.Second

// KafkaPublisher implements Publisher using segmentio/kafka-go.
type KafkaPublisher struct {
	writer  Writer
	topics  command.Topics
	metrics *telemetry.Metrics
	nowFunc func() time.Time
}

// NewKafkaWriter returns a writer that hashes the message key onto a partition and waits for all
// in-sync replicas. Topic is set per message.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// NewKafkaPublisher creates a publisher over writer. metrics may be nil.
func NewKafkaPublisher(writer Writer, topics command.Topics, metrics *telemetry.Metrics) (*KafkaPublisher, error) {
	if writer == nil {
		return nil, errors.New("producer: writer is required")
	}
	return &KafkaPublisher{writer: writer, topics: topics, metrics: metrics, nowFunc: time.Now}, nil
}

// Topics returns the primary topics this publisher writes to.
func (p *KafkaPublisher) Topics() command.Topics { return p.topics }

// Publish encodes cmd and writes it to topic. Encoding failures are returned as *command.SerializationError
// without touching the broker; broker failures as *command.PublishError.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, partitionKey string, cmd command.Envelope) error {
	value, err := command.Encode(cmd)
	if err != nil {
		log.Printf("producer: %v", err)
		return err
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(partitionKey),
		Value: value,
		Time:  p.nowFunc().UTC(),
	}
	if err := p.write(ctx, msg); err != nil {
		log.Printf("producer: publish %s to %s failed: %v", cmd.CommandKind(), topic, err)
		return &command.PublishError{Topic: topic, Key: partitionKey, Err: err}
	}
	return nil
}

// PublishUserCommand publishes to the user-commands topic.
func (p *KafkaPublisher) PublishUserCommand(ctx context.Context, key string, cmd command.UserActivityCommand) error {
	return p.Publish(ctx, p.topics.UserCommands, key, cmd)
}

// PublishMessageCommand publishes to the message-commands topic.
func (p *KafkaPublisher) PublishMessageCommand(ctx context.Context, key string, cmd command.MessageCommand) error {
	return p.Publish(ctx, p.topics.MessageCommands, key, cmd)
}

// PublishSessionCommand publishes to the session-commands topic.
func (p *KafkaPublisher) PublishSessionCommand(ctx context.Context, key string, cmd command.SessionCommand) error {
	return p.Publish(ctx, p.topics.SessionCommands, key, cmd)
}

// Republish writes value unchanged to topic with the retry-count header set to attempt.
func (p *KafkaPublisher) Republish(ctx context.Context, topic string, key, value []byte, attempt int) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  p.nowFunc().UTC(),
		Headers: []kafka.Header{
			{Key: command.RetryCountHeader, Value: command.FormatRetryCount(attempt)},
		},
	}
	if err := p.write(ctx, msg); err != nil {
		return &command.PublishError{Topic: topic, Key: string(key), Err: err}
	}
	return nil
}

func (p *KafkaPublisher) write(ctx context.Context, msg kafka.Message) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.metrics.PublishFailed(ctx, msg.Topic)
		return err
	}
	p.metrics.Published(ctx, msg.Topic)
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
