package producer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// TopicAdmin is the subset of *kafka.Conn used to create topics.
type TopicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// EnsureTopics creates every missing topic with the given partition count and replication factor.
// Existing topics are left untouched. It dials the first reachable broker and then the controller.
func EnsureTopics(ctx context.Context, brokers []string, topics []string, partitions, replication int) error {
	if len(brokers) == 0 {
		return errors.New("producer: no brokers")
	}
	var (
		conn *kafka.Conn
		err  error
	)
	for _, b := range brokers {
		conn, err = kafka.DialContext(ctx, "tcp", b)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("producer: dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("producer: find controller: %w", err)
	}
	ctrl, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("producer: dial controller: %w", err)
	}
	defer ctrl.Close()

	return createMissing(ctrl, topics, partitions, replication)
}

func createMissing(admin TopicAdmin, topics []string, partitions, replication int) error {
	existing, err := admin.ReadPartitions()
	if err != nil {
		return fmt.Errorf("producer: list topics: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Topic] = true
	}

	var configs []kafka.TopicConfig
	for _, t := range topics {
		if t == "" || have[t] {
			continue
		}
		have[t] = true
		configs = append(configs, kafka.TopicConfig{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
		})
	}
	if len(configs) == 0 {
		return nil
	}
	if err := admin.CreateTopics(configs...); err != nil {
		return fmt.Errorf("producer: create topics: %w", err)
	}
	for _, c := range configs {
		log.Printf("producer: created topic %s (%d partitions)", c.Topic, c.NumPartitions)
	}
	return nil
}

// PingBrokers dials brokers in order and succeeds on the first reachable one.
func PingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("producer: no brokers")
	}
	var err error
	for _, b := range brokers {
		var conn *kafka.Conn
		conn, err = kafka.DialContext(ctx, "tcp", b)
		if err == nil {
			return conn.Close()
		}
	}
	return fmt.Errorf("producer: no reachable broker: %w", err)
}
