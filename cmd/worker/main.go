// Worker consumes the user, message and session command topics (and their retry companions) and
// applies each command to MongoDB. Commands that exhaust MAX_RETRY go to the DEAD_LETTER_SINK.
// A gRPC health service on HEALTH_GRPC_ADDR reports SERVING while MongoDB and Kafka are reachable.
package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	activityhandler "chat-cqrs/internal/activity/handler"
	activityrepo "chat-cqrs/internal/activity/repository"
	activityservice "chat-cqrs/internal/activity/service"
	"chat-cqrs/internal/command"
	"chat-cqrs/internal/command/producer"
	"chat-cqrs/internal/config"
	"chat-cqrs/internal/consumer"
	"chat-cqrs/internal/db"
	"chat-cqrs/internal/deadletter"
	deadletterrepo "chat-cqrs/internal/deadletter/repository"
	"chat-cqrs/internal/dispatch"
	healthhandler "chat-cqrs/internal/health/handler"
	messagehandler "chat-cqrs/internal/message/handler"
	messagerepo "chat-cqrs/internal/message/repository"
	messageservice "chat-cqrs/internal/message/service"
	"chat-cqrs/internal/retry"
	"chat-cqrs/internal/security"
	sessionhandler "chat-cqrs/internal/session/handler"
	sessionrepo "chat-cqrs/internal/session/repository"
	sessionservice "chat-cqrs/internal/session/service"
	"chat-cqrs/internal/telemetry"
	"chat-cqrs/internal/telemetry/loki"
	telemetryotel "chat-cqrs/internal/telemetry/otel"
	userrepo "chat-cqrs/internal/user/repository"
)

// healthInterval is how often the gRPC health status is refreshed.
const healthInterval = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "chat-cqrs-worker",
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

	brokers := cfg.KafkaBrokersList()
	topics := command.Topics{
		UserCommands:    cfg.UserCommandsTopic,
		MessageCommands: cfg.MessageCommandsTopic,
		SessionCommands: cfg.SessionCommandsTopic,
	}
	publisher, err := producer.NewKafkaPublisher(producer.NewKafkaWriter(brokers), topics, metrics)
	if err != nil {
		log.Fatalf("kafka publisher: %v", err)
	}
	defer publisher.Close()

	sink, closeSink, err := newSink(ctx, cfg, providers)
	if err != nil {
		log.Fatalf("dead-letter sink: %v", err)
	}
	defer closeSink()
	escalator := retry.NewEscalator(publisher, sink, cfg.MaxRetry, metrics)

	sessions, err := sessionservice.NewManager(sessionrepo.NewMongoRepository(database),
		security.NewHasher(cfg.BcryptCost), publisher, cfg.SessionTTL(), metrics)
	if err != nil {
		log.Fatalf("session manager: %v", err)
	}
	messages := messageservice.NewMessageService(messagerepo.NewMongoRepository(database),
		userrepo.NewMongoRepository(database), publisher)
	activities := activityservice.NewActivityService(activityrepo.NewMongoRepository(database))

	userRegistry := activityhandler.NewRegistry(activities)
	messageRegistry := messagehandler.NewRegistry(messages)
	sessionRegistry := sessionhandler.NewRegistry(sessions)
	requireKinds("user-consumer", userRegistry.Missing(command.UserKinds()))
	requireKinds("message-consumer", messageRegistry.Missing(command.MessageKinds()))
	requireKinds("session-consumer", sessionRegistry.Missing(command.SessionKinds()))

	workers := []*consumer.Worker{
		newWorker(cfg, "user-consumer", topics.UserCommands,
			dispatch.NewProcessor("user-consumer", userRegistry, escalator, metrics)),
		newWorker(cfg, "message-consumer", topics.MessageCommands,
			dispatch.NewProcessor("message-consumer", messageRegistry, escalator, metrics)),
		newWorker(cfg, "session-consumer", topics.SessionCommands,
			dispatch.NewProcessor("session-consumer", sessionRegistry, escalator, metrics)),
	}

	checker := healthhandler.NewChecker(healthhandler.DefaultCheckTimeout)
	checker.Add("mongo", db.MongoPinger(mongoClient))
	checker.Add("kafka", func(ctx context.Context) error { return producer.PingBrokers(ctx, brokers) })
	healthServer := healthhandler.NewServer(checker)

	lis, err := net.Listen("tcp", cfg.HealthGRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer.Register(grpcServer)
	go func() {
		log.Printf("worker: gRPC health listening on %s", cfg.HealthGRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("worker: health serve: %v", err)
		}
	}()
	go healthServer.Run(ctx, healthInterval)

	log.Printf("worker: instance %s, dead-letter sink %s, max retry %d", providers.InstanceID, cfg.DeadLetterSink, cfg.MaxRetry)
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *consumer.Worker) {
			defer wg.Done()
			_ = w.Run(ctx)
			if err := w.Close(); err != nil {
				log.Printf("worker: close reader: %v", err)
			}
		}(w)
	}
	wg.Wait()

	grpcServer.GracefulStop()
	log.Println("worker: stopped")
}

// requireKinds stops startup when a registry leaves a published kind without a handler.
func requireKinds(name string, missing []command.Kind) {
	if len(missing) > 0 {
		log.Fatalf("worker: %s has no handler for %v", name, missing)
	}
}

// newWorker reads topic and its retry companion in a consumer group of its own, so the three readers
// never rebalance against each other.
func newWorker(cfg *config.Config, name, topic string, p consumer.Processor) *consumer.Worker {
	reader := consumer.NewKafkaReader(cfg.KafkaBrokersList(), cfg.KafkaGroupID+"."+name, topic)
	return consumer.NewWorker(name, reader, p)
}

// newSink builds the dead-letter sink selected by DEAD_LETTER_SINK and returns a function that
// releases what it opened.
func newSink(ctx context.Context, cfg *config.Config, providers *telemetryotel.Providers) (retry.Sink, func(), error) {
	switch cfg.DeadLetterSink {
	case config.SinkKafka:
		writer := producer.NewKafkaWriter(cfg.KafkaBrokersList())
		return deadletter.NewKafkaSink(writer, cfg.DeadLetterTopic), func() { _ = writer.Close() }, nil
	case config.SinkPostgres:
		conn, err := db.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return deadletter.NewPostgresSink(deadletterrepo.NewPostgresRepository(conn)), closeDB(conn), nil
	case config.SinkLoki:
		return deadletter.NewLokiSink(loki.NewClient(cfg.LokiURL, nil)), func() {}, nil
	default:
		return deadletter.NewLogSink(telemetryotel.NewEventEmitter(providers.LoggerProvider)), func() {}, nil
	}
}

func closeDB(conn *sql.DB) func() {
	return func() {
		if err := conn.Close(); err != nil {
			log.Printf("worker: postgres close: %v", err)
		}
	}
}
