// migrate prepares the backing stores: Kafka command topics and their retry companions, MongoDB
// indexes, and the Postgres dead_letters table. Run via go run ./cmd/migrate [-target all|kafka|mongo|postgres].
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	activityrepo "chat-cqrs/internal/activity/repository"
	"chat-cqrs/internal/command"
	"chat-cqrs/internal/command/producer"
	"chat-cqrs/internal/config"
	"chat-cqrs/internal/db"
	"chat-cqrs/internal/db/migrate"
	messagerepo "chat-cqrs/internal/message/repository"
	sessionrepo "chat-cqrs/internal/session/repository"
	userrepo "chat-cqrs/internal/user/repository"
)

const (
	targetAll      = "all"
	targetKafka    = "kafka"
	targetMongo    = "mongo"
	targetPostgres = "postgres"
)

func main() {
	direction := flag.String("direction", "up", "Postgres migration direction: up or down")
	target := flag.String("target", targetAll, "What to prepare: all, kafka, mongo or postgres")
	replication := flag.Int("replication", 1, "Replication factor for newly created Kafka topics")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	dir, err := migrate.ParseDirection(*direction)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch *target {
	case targetAll:
		run(targetKafka, ensureTopics(ctx, cfg, *replication))
		run(targetMongo, ensureIndexes(ctx, cfg))
		if cfg.DatabaseURL == "" {
			log.Println("migrate: DATABASE_URL not set, skipping postgres")
			return
		}
		run(targetPostgres, migratePostgres(cfg, dir))
	case targetKafka:
		run(targetKafka, ensureTopics(ctx, cfg, *replication))
	case targetMongo:
		run(targetMongo, ensureIndexes(ctx, cfg))
	case targetPostgres:
		run(targetPostgres, migratePostgres(cfg, dir))
	default:
		fmt.Fprintf(os.Stderr, "migrate: unknown target %q\n", *target)
		os.Exit(2)
	}
}

func run(target string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", target, err)
		os.Exit(1)
	}
	log.Printf("migrate: %s done", target)
}

func ensureTopics(ctx context.Context, cfg *config.Config, replication int) error {
	topics := command.Topics{
		UserCommands:    cfg.UserCommandsTopic,
		MessageCommands: cfg.MessageCommandsTopic,
		SessionCommands: cfg.SessionCommandsTopic,
	}
	names := topics.All()
	if cfg.DeadLetterSink == config.SinkKafka {
		names = append(names, cfg.DeadLetterTopic)
	}
	return producer.EnsureTopics(ctx, cfg.KafkaBrokersList(), names, cfg.KafkaTopicPartitions, replication)
}

func ensureIndexes(ctx context.Context, cfg *config.Config) error {
	client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() { _ = db.DisconnectMongo(client) }()

	return errors.Join(
		userrepo.NewMongoRepository(database).EnsureIndexes(ctx),
		sessionrepo.NewMongoRepository(database).EnsureIndexes(ctx),
		messagerepo.NewMongoRepository(database).EnsureIndexes(ctx),
		activityrepo.NewMongoRepository(database).EnsureIndexes(ctx),
	)
}

func migratePostgres(cfg *config.Config, dir migrate.Direction) error {
	err := migrate.Run(cfg.DatabaseURL, dir)
	if err != nil {
		return err
	}
	version, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	log.Printf("migrate: postgres schema at version %d (dirty=%v)", version, dirty)
	return nil
}
