// seed registers development users for local testing. Run via go run ./cmd/seed.
// Idempotent: users that already exist are skipped. USER_CREATION is published when Kafka is reachable.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"chat-cqrs/internal/command"
	"chat-cqrs/internal/command/producer"
	"chat-cqrs/internal/config"
	"chat-cqrs/internal/db"
	"chat-cqrs/internal/security"
	"chat-cqrs/internal/user/domain"
	userrepo "chat-cqrs/internal/user/repository"
	userservice "chat-cqrs/internal/user/service"
)

const devPassword = "password123"

var devUsers = []string{"alice", "bob", "carol"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	defer func() { _ = db.DisconnectMongo(client) }()

	repo := userrepo.NewMongoRepository(database)
	if err := repo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("mongo indexes: %v", err)
	}

	publisher, err := producer.NewKafkaPublisher(producer.NewKafkaWriter(cfg.KafkaBrokersList()), command.Topics{
		UserCommands:    cfg.UserCommandsTopic,
		MessageCommands: cfg.MessageCommandsTopic,
		SessionCommands: cfg.SessionCommandsTopic,
	}, nil)
	if err != nil {
		log.Fatalf("kafka publisher: %v", err)
	}
	defer publisher.Close()

	// Sessions are not opened by Register.
	users := userservice.NewUserService(repo, security.NewHasher(cfg.BcryptCost), nil, publisher)

	created := 0
	for _, name := range devUsers {
		u, err := users.Register(ctx, name, devPassword, name+"@example.com", "127.0.0.1", "seed")
		if errors.Is(err, domain.ErrUsernameConflict) {
			log.Printf("seed: %s already exists, skipping", name)
			continue
		}
		if err != nil {
			log.Fatalf("seed %s: %v", name, err)
		}
		created++
		fmt.Printf("Dev login: %s / %s (id %s)\n", u.Username, devPassword, u.ID)
	}
	log.Printf("Seed completed: %d of %d users created.", created, len(devUsers))
}
