// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Dead-letter sink kinds accepted by DEAD_LETTER_SINK.
const (
	SinkLog      = "log"
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
	SinkLoki     = "loki"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the command API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// HealthGRPCAddr is the address of the worker's gRPC health probe.
	HealthGRPCAddr string `mapstructure:"HEALTH_GRPC_ADDR"`

	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaGroupID is the consumer group shared by all command workers.
	KafkaGroupID         string `mapstructure:"KAFKA_GROUP_ID"`
	UserCommandsTopic    string `mapstructure:"USER_COMMANDS_TOPIC"`
	MessageCommandsTopic string `mapstructure:"MESSAGE_COMMANDS_TOPIC"`
	SessionCommandsTopic string `mapstructure:"SESSION_COMMANDS_TOPIC"`
	DeadLetterTopic      string `mapstructure:"DEAD_LETTER_TOPIC"`
	// KafkaTopicPartitions is used by cmd/migrate when creating topics.
	KafkaTopicPartitions int `mapstructure:"KAFKA_TOPIC_PARTITIONS"`

	// MaxRetry is the number of republishes a failing command gets before it is given up.
	MaxRetry int `mapstructure:"MAX_RETRY"`

	SessionTTLHours               int `mapstructure:"SESSION_TTL_HOURS"`
	SessionCleanupIntervalMinutes int `mapstructure:"SESSION_CLEANUP_INTERVAL_MINUTES"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12. Applies to passwords and session tokens.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// RedisURL enables the distributed sweep lock when set.
	RedisURL string `mapstructure:"REDIS_URL"`
	// DatabaseURL is the Postgres DSN; only needed for the postgres dead-letter sink and migrations.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// LokiURL is the Loki base URL (e.g. http://localhost:3100) for the loki dead-letter sink.
	LokiURL string `mapstructure:"LOKI_URL"`
	// DeadLetterSink selects where exhausted commands go: log, kafka, postgres or loki.
	DeadLetterSink string `mapstructure:"DEAD_LETTER_SINK"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HEALTH_GRPC_ADDR", ":9090")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "messaging")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_ID", "messaging-consumer")
	v.SetDefault("USER_COMMANDS_TOPIC", "user-commands")
	v.SetDefault("MESSAGE_COMMANDS_TOPIC", "message-commands")
	v.SetDefault("SESSION_COMMANDS_TOPIC", "session-commands")
	v.SetDefault("DEAD_LETTER_TOPIC", "dead-letter-commands")
	v.SetDefault("KAFKA_TOPIC_PARTITIONS", 3)
	v.SetDefault("MAX_RETRY", 5)
	v.SetDefault("SESSION_TTL_HOURS", 24)
	v.SetDefault("SESSION_CLEANUP_INTERVAL_MINUTES", 60)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("DEAD_LETTER_SINK", SinkLog)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if len(cfg.KafkaBrokersList()) == 0 {
		return nil, errors.New("config: KAFKA_BROKERS must be set")
	}
	if cfg.MaxRetry < 0 {
		return nil, errors.New("config: MAX_RETRY must not be negative")
	}
	if cfg.SessionTTLHours <= 0 {
		return nil, errors.New("config: SESSION_TTL_HOURS must be positive")
	}
	if cfg.SessionCleanupIntervalMinutes <= 0 {
		return nil, errors.New("config: SESSION_CLEANUP_INTERVAL_MINUTES must be positive")
	}
	if cfg.KafkaTopicPartitions <= 0 {
		cfg.KafkaTopicPartitions = 3
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	cfg.DeadLetterSink = strings.ToLower(strings.TrimSpace(cfg.DeadLetterSink))
	switch cfg.DeadLetterSink {
	case "":
		cfg.DeadLetterSink = SinkLog
	case SinkLog, SinkKafka:
	case SinkPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when DEAD_LETTER_SINK=postgres")
		}
	case SinkLoki:
		if cfg.LokiURL == "" {
			return nil, errors.New("config: LOKI_URL must be set when DEAD_LETTER_SINK=loki")
		}
	default:
		return nil, errors.New("config: DEAD_LETTER_SINK must be one of log, kafka, postgres, loki")
	}

	return &cfg, nil
}

// SessionTTL is the lifetime of a newly issued session token.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// SessionCleanupInterval is the period of the expired-session sweep.
func (c *Config) SessionCleanupInterval() time.Duration {
	return time.Duration(c.SessionCleanupIntervalMinutes) * time.Minute
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
