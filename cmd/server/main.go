// Server runs the HTTP command API. Writes are published to Kafka for the workers in cmd/worker;
// reads go straight to MongoDB.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	activityrepo "chat-cqrs/internal/activity/repository"
	activityservice "chat-cqrs/internal/activity/service"
	"chat-cqrs/internal/command"
	"chat-cqrs/internal/command/producer"
	"chat-cqrs/internal/config"
	"chat-cqrs/internal/db"
	healthhandler "chat-cqrs/internal/health/handler"
	messagerepo "chat-cqrs/internal/message/repository"
	messageservice "chat-cqrs/internal/message/service"
	"chat-cqrs/internal/platform/lock"
	"chat-cqrs/internal/security"
	"chat-cqrs/internal/server"
	sessionrepo "chat-cqrs/internal/session/repository"
	sessionservice "chat-cqrs/internal/session/service"
	"chat-cqrs/internal/telemetry"
	telemetryotel "chat-cqrs/internal/telemetry/otel"
	userrepo "chat-cqrs/internal/user/repository"
	userservice "chat-cqrs/internal/user/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "chat-cqrs-server",
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()
	metrics, err := telemetry.NewMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	mongoClient, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	defer func() {
		if err := db.DisconnectMongo(mongoClient); err != nil {
			log.Printf("mongo disconnect: %v", err)
		}
	}()

	users := userrepo.NewMongoRepository(database)
	sessions := sessionrepo.NewMongoRepository(database)
	messages := messagerepo.NewMongoRepository(database)
	activities := activityrepo.NewMongoRepository(database)
	for name, ensure := range map[string]func(context.Context) error{
		userrepo.Collection:     users.EnsureIndexes,
		sessionrepo.Collection:  sessions.EnsureIndexes,
		messagerepo.Collection:  messages.EnsureIndexes,
		activityrepo.Collection: activities.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			log.Fatalf("mongo indexes %s: %v", name, err)
		}
	}

	brokers := cfg.KafkaBrokersList()
	publisher, err := producer.NewKafkaPublisher(producer.NewKafkaWriter(brokers), command.Topics{
		UserCommands:    cfg.UserCommandsTopic,
		MessageCommands: cfg.MessageCommandsTopic,
		SessionCommands: cfg.SessionCommandsTopic,
	}, metrics)
	if err != nil {
		log.Fatalf("kafka publisher: %v", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("kafka publisher close: %v", err)
		}
	}()

	hasher := security.NewHasher(cfg.BcryptCost)
	sessionManager, err := sessionservice.NewManager(sessions, hasher, publisher, cfg.SessionTTL(), metrics)
	if err != nil {
		log.Fatalf("session manager: %v", err)
	}
	userService := userservice.NewUserService(users, hasher, sessionManager, publisher)
	messageService := messageservice.NewMessageService(messages, users, publisher)
	activityService := activityservice.NewActivityService(activities)

	var locker sessionservice.Locker
	if cfg.RedisURL != "" {
		redisClient, err := db.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient)
		log.Printf("session sweep: coordinated through redis lock %s", sessionservice.SweepLockKey)
	}
	go sessionManager.RunSweeper(ctx, cfg.SessionCleanupInterval(), locker)

	checker := healthhandler.NewChecker(healthhandler.DefaultCheckTimeout)
	checker.Add("mongo", db.MongoPinger(mongoClient))
	checker.Add("kafka", func(ctx context.Context) error { return producer.PingBrokers(ctx, brokers) })

	handler := server.NewHandler(server.Deps{
		Users:      userService,
		Sessions:   sessionManager,
		Messages:   messageService,
		Activities: activityService,
		Health:     checker,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s (instance %s)", cfg.HTTPAddr, providers.InstanceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
