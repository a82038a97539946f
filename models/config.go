package models

import (
	"time"
)

// Config holds the core configuration for the bucket store.
type Config struct {
	AppName  string         `json:"app_name" toml:"app_name"`
	Database DatabaseConfig `json:"database" toml:"database"`
	Logger   LoggerConfig   `json:"logger" toml:"logger"`
	Storage  StorageConfig  `json:"storage" toml:"storage"`
	EventBus EventBusConfig `json:"event_bus" toml:"event_bus"`
	Plugins  PluginsConfig  `json:"plugins" toml:"plugins"`
	// PreParsedConfigs stores the original typed plugin config objects.
	// This allows skipping mapstructure unmarshalling and preserving type safety.
	// Key: plugin ID, Value: typed config struct passed to Store.New()
	PreParsedConfigs map[string]any `json:"-" toml:"-"`
}

type DatabaseConfig struct {
	Provider        string        `json:"provider" toml:"provider" validate:"oneof=postgres sqlite"`
	URL             string        `json:"url" toml:"url" validate:"required"`
	MaxOpenConns    int           `json:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" toml:"conn_max_lifetime"`
}

type LoggerConfig struct {
	Level string `json:"level" toml:"level"`
}

// StorageConfig bounds what callers may write.
type StorageConfig struct {
	// MaxValueBytes caps the serialized size of JSON document values.
	// Zero means DefaultMaxValueBytes.
	MaxValueBytes int `json:"max_value_bytes" toml:"max_value_bytes" validate:"gte=0"`
	// PublishEvents toggles entry change events on the event bus.
	PublishEvents bool `json:"publish_events" toml:"publish_events"`
}

type EventBusConfig struct {
	Prefix                string            `json:"prefix" toml:"prefix"`
	MaxConcurrentHandlers int               `json:"max_concurrent_handlers" toml:"max_concurrent_handlers"`
	Provider              string            `json:"provider" toml:"provider"`
	GoChannel             *GoChannelConfig  `json:"go_channel" toml:"go_channel"`
	SQLite                *SQLiteConfig     `json:"sqlite" toml:"sqlite"`
	PostgreSQL            *PostgreSQLConfig `json:"postgres" toml:"postgres"`
	Redis                 *RedisConfig      `json:"redis" toml:"redis"`
	Kafka                 *KafkaConfig      `json:"kafka" toml:"kafka"`
	NATS                  *NatsConfig       `json:"nats" toml:"nats"`
	RabbitMQ              *RabbitMQConfig   `json:"rabbitmq" toml:"rabbitmq"`
}

type GoChannelConfig struct {
	BufferSize int `json:"buffer_size" toml:"buffer_size"`
}

type SQLiteConfig struct {
	DBPath string `json:"db_path" toml:"db_path"`
}

type PostgreSQLConfig struct {
	URL string `json:"url" toml:"url"`
}

type RedisConfig struct {
	URL           string `json:"url" toml:"url"`
	ConsumerGroup string `json:"consumer_group" toml:"consumer_group"`
}

type KafkaConfig struct {
	Brokers       string `json:"brokers" toml:"brokers"`
	ConsumerGroup string `json:"consumer_group" toml:"consumer_group"`
}

type NatsConfig struct {
	URL string `json:"url" toml:"url"`
}

type RabbitMQConfig struct {
	URL string `json:"url" toml:"url"`
}

// PluginsConfig maps plugin IDs to their configurations
type PluginsConfig map[string]any
