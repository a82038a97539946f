package config

import (
	"fmt"
	"os"
	"time"

	"github.com/GoBucketStore/go-bucket-store/env"
	"github.com/GoBucketStore/go-bucket-store/models"
)

type ConfigOption func(*models.Config)

// NewConfig builds a Config using functional options with sensible defaults.
// Panics if the event bus configuration is invalid.
func NewConfig(options ...ConfigOption) *models.Config {
	// Define sensible defaults first
	config := &models.Config{
		AppName: "GoBucketStore",
		Database: models.DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Minute * 10,
		},
		Logger: models.LoggerConfig{},
		Storage: models.StorageConfig{
			MaxValueBytes: models.DefaultMaxValueBytes,
			PublishEvents: true,
		},
		EventBus: models.EventBusConfig{
			Provider:  "gochannel",
			GoChannel: &models.GoChannelConfig{BufferSize: 100},
		},
		Plugins:          models.PluginsConfig{},
		PreParsedConfigs: make(map[string]any),
	}

	// Apply the options - they override defaults only if non-zero/non-empty
	for _, option := range options {
		option(config)
	}

	// Validate event bus configuration
	if err := validateEventBusConfig(&config.EventBus); err != nil {
		panic(fmt.Errorf("invalid event bus configuration: %w", err))
	}

	return config
}

func WithAppName(name string) ConfigOption {
	return func(c *models.Config) {
		if name != "" {
			c.AppName = name
		}
	}
}

func WithDatabase(config models.DatabaseConfig) ConfigOption {
	return func(c *models.Config) {
		if config.Provider != "" {
			c.Database.Provider = config.Provider
		}
		if envValue := os.Getenv(env.EnvDatabaseURL); envValue != "" {
			c.Database.URL = envValue
		} else if config.URL != "" {
			c.Database.URL = config.URL
		}
		if config.MaxOpenConns != 0 {
			c.Database.MaxOpenConns = config.MaxOpenConns
		}
		if config.MaxIdleConns != 0 {
			c.Database.MaxIdleConns = config.MaxIdleConns
		}
		if config.ConnMaxLifetime != 0 {
			c.Database.ConnMaxLifetime = config.ConnMaxLifetime
		}
	}
}

func WithLogger(config models.LoggerConfig) ConfigOption {
	return func(c *models.Config) {
		if config.Level != "" {
			c.Logger.Level = config.Level
		}
	}
}

func WithStorage(config models.StorageConfig) ConfigOption {
	return func(c *models.Config) {
		if config.MaxValueBytes != 0 {
			c.Storage.MaxValueBytes = config.MaxValueBytes
		}
		c.Storage.PublishEvents = config.PublishEvents
	}
}

func WithEventBus(config models.EventBusConfig) ConfigOption {
	return func(c *models.Config) {
		if config.Prefix != "" {
			c.EventBus.Prefix = config.Prefix
		}
		if config.MaxConcurrentHandlers > 0 {
			c.EventBus.MaxConcurrentHandlers = config.MaxConcurrentHandlers
		}
		if config.Provider != "" {
			c.EventBus.Provider = config.Provider
		}
		if config.GoChannel != nil {
			c.EventBus.GoChannel = config.GoChannel
		}
		if config.SQLite != nil {
			c.EventBus.SQLite = config.SQLite
		}
		if config.PostgreSQL != nil {
			c.EventBus.PostgreSQL = config.PostgreSQL
		}
		if config.Redis != nil {
			c.EventBus.Redis = config.Redis
		}
		if config.Kafka != nil {
			c.EventBus.Kafka = config.Kafka
		}
		if config.NATS != nil {
			c.EventBus.NATS = config.NATS
		}
		if config.RabbitMQ != nil {
			c.EventBus.RabbitMQ = config.RabbitMQ
		}
	}
}

func WithPlugins(config models.PluginsConfig) ConfigOption {
	return func(c *models.Config) {
		c.Plugins = config
	}
}

// validateEventBusConfig validates that the event bus provider has the correct configuration
func validateEventBusConfig(config *models.EventBusConfig) error {
	provider := config.Provider
	if provider == "" {
		provider = "gochannel"
	}

	// Validate that the selected provider has the correct config
	switch provider {
	case "gochannel":
		if config.GoChannel == nil {
			return fmt.Errorf("gochannel provider selected but gochannel config is missing")
		}

	case "sqlite":
		if config.SQLite == nil {
			return fmt.Errorf("sqlite provider selected but sqlite config is missing")
		}

	case "postgres":
		if config.PostgreSQL == nil {
			return fmt.Errorf("postgres provider selected but postgres config is missing")
		}
		if os.Getenv(env.EnvPostgresURL) == "" && config.PostgreSQL.URL == "" {
			return fmt.Errorf("postgres provider selected but postgres.url is empty and POSTGRES_URL env var is not set")
		}

	case "redis":
		if config.Redis == nil {
			return fmt.Errorf("redis provider selected but redis config is missing")
		}
		if os.Getenv(env.EnvRedisURL) == "" && config.Redis.URL == "" {
			return fmt.Errorf("redis provider selected but redis.url is empty and REDIS_URL env var is not set")
		}

	case "kafka":
		if config.Kafka == nil {
			return fmt.Errorf("kafka provider selected but kafka config is missing")
		}
		if config.Kafka.Brokers == "" {
			return fmt.Errorf("kafka provider selected but kafka.brokers is empty")
		}

	case "nats":
		if config.NATS == nil {
			return fmt.Errorf("nats provider selected but nats config is missing")
		}
		if os.Getenv(env.EnvNatsURL) == "" && config.NATS.URL == "" {
			return fmt.Errorf("nats provider selected but nats.url is empty and NATS_URL env var is not set")
		}

	case "rabbitmq":
		if config.RabbitMQ == nil {
			return fmt.Errorf("rabbitmq provider selected but rabbitmq config is missing")
		}
		if os.Getenv(env.EnvRabbitMQURL) == "" && config.RabbitMQ.URL == "" {
			return fmt.Errorf("rabbitmq provider selected but rabbitmq.url is empty and RABBITMQ_URL env var is not set")
		}
	}

	return nil
}
