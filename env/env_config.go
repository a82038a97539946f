package env

const (
	// POSTGRES

	EnvPostgresURL = "POSTGRES_URL"

	// REDIS

	EnvRedisURL = "REDIS_URL"

	// KAFKA

	EnvKafkaBrokers = "KAFKA_BROKERS"

	// NATS

	EnvNatsURL = "NATS_URL"

	// RabbitMQ

	EnvRabbitMQURL = "RABBITMQ_URL"

	// EVENT BUS

	EnvEventBusConsumerGroup = "EVENT_BUS_CONSUMER_GROUP"

	// GO BUCKET STORE

	EnvConfigPath  = "GO_BUCKET_STORE_CONFIG_PATH"
	EnvDatabaseURL = "GO_BUCKET_STORE_DATABASE_URL"

	// ENVIRONMENT

	EnvGoEnvironment = "GO_ENV"
)
