package events

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	watermillSQL "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill-sqlite/wmsqlitezombiezen"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/GoBucketStore/go-bucket-store/env"
	"github.com/GoBucketStore/go-bucket-store/events"
	"github.com/GoBucketStore/go-bucket-store/models"
)

const defaultConsumerGroup = "gobucketstore_consumer_group"

// InitWatermillProvider builds the transport the change stream rides on.
// The environment variable for each transport wins over the config file so
// deployments can rotate broker credentials without editing config.
func InitWatermillProvider(config *models.EventBusConfig, logger watermill.LoggerAdapter) (models.PubSub, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	provider := events.EventBusProvider(config.Provider)

	switch provider {
	case events.ProviderGoChannel:
		return initGoChannel(logger, config.GoChannel)
	case events.ProviderRedis:
		return initRedis(logger, config.Redis)
	case events.ProviderRabbitMQ:
		return initRabbitMQ(logger, config.RabbitMQ)
	case events.ProviderKafka:
		return initKafka(logger, config.Kafka)
	case events.ProviderNATS:
		return initNATS(logger, config.NATS)
	case events.ProviderPostgres:
		return initPostgres(logger, config.PostgreSQL)
	case events.ProviderSQLite:
		return initSQLite(logger, config.SQLite)
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", config.Provider)
	}
}

// resolveSetting returns the environment override if set, otherwise the
// configured value.
func resolveSetting(envVar, configured string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return configured
}

func resolveConsumerGroup(configured string) string {
	group := resolveSetting(env.EnvEventBusConsumerGroup, configured)
	if group == "" {
		return defaultConsumerGroup
	}
	return group
}

// initGoChannel builds the in-process transport used by embedded deployments.
func initGoChannel(logger watermill.LoggerAdapter, config *models.GoChannelConfig) (models.PubSub, error) {
	bufferSize := 100
	if config != nil && config.BufferSize > 0 {
		bufferSize = config.BufferSize
	}

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            int64(bufferSize),
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)

	return NewWatermillPubSub(pubSub, pubSub), nil
}

// initSQLite builds a durable single-node transport over the ZombieZen driver.
func initSQLite(logger watermill.LoggerAdapter, config *models.SQLiteConfig) (models.PubSub, error) {
	dbPath := "events.db"
	if config != nil && config.DBPath != "" {
		dbPath = config.DBPath
	}

	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for sqlite database: %w", err)
		}
	}

	// The subscriber takes a DSN and manages its own connections.
	subscriber, err := wmsqlitezombiezen.NewSubscriber(
		dbPath,
		wmsqlitezombiezen.SubscriberOptions{
			InitializeSchema: true,
			Logger:           logger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite subscriber: %w", err)
	}

	// The publisher needs a dedicated connection taken from a pool.
	pool, err := sqlitex.NewPool("file:"+dbPath, sqlitex.PoolOptions{
		PoolSize: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite connection pool: %w", err)
	}

	conn, err := pool.Take(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite connection from pool: %w", err)
	}

	publisher, err := wmsqlitezombiezen.NewPublisher(
		conn,
		wmsqlitezombiezen.PublisherOptions{
			Logger: logger,
		},
	)
	if err != nil {
		pool.Put(conn)
		return nil, fmt.Errorf("failed to create sqlite publisher: %w", err)
	}

	return NewWatermillPubSub(publisher, subscriber), nil
}

// initPostgres builds a transport over a Postgres outbox table, handy when
// the change stream should share the store's own database.
func initPostgres(logger watermill.LoggerAdapter, config *models.PostgreSQLConfig) (models.PubSub, error) {
	var configured string
	if config != nil {
		configured = config.URL
	}
	url := resolveSetting(env.EnvPostgresURL, configured)
	if url == "" {
		return nil, fmt.Errorf("postgres config with url is required (set POSTGRES_URL env var or provide config)")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	subscriber, err := watermillSQL.NewSubscriber(
		db,
		watermillSQL.SubscriberConfig{
			SchemaAdapter:    watermillSQL.DefaultPostgreSQLSchema{},
			OffsetsAdapter:   watermillSQL.DefaultPostgreSQLOffsetsAdapter{},
			InitializeSchema: true,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres subscriber: %w", err)
	}

	publisher, err := watermillSQL.NewPublisher(
		db,
		watermillSQL.PublisherConfig{
			SchemaAdapter: watermillSQL.DefaultPostgreSQLSchema{},
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres publisher: %w", err)
	}

	return NewWatermillPubSub(publisher, subscriber), nil
}

func initRedis(logger watermill.LoggerAdapter, config *models.RedisConfig) (models.PubSub, error) {
	var configuredURL, configuredGroup string
	if config != nil {
		configuredURL = config.URL
		configuredGroup = config.ConsumerGroup
	}
	url := resolveSetting(env.EnvRedisURL, configuredURL)
	if url == "" {
		return nil, fmt.Errorf("redis config with url is required (set REDIS_URL env var or provide config)")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	subscriber, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client:        client,
			ConsumerGroup: resolveConsumerGroup(configuredGroup),
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis subscriber: %w", err)
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}

	return NewWatermillPubSub(publisher, subscriber), nil
}

func initKafka(logger watermill.LoggerAdapter, config *models.KafkaConfig) (models.PubSub, error) {
	var configuredBrokers, configuredGroup string
	if config != nil {
		configuredBrokers = config.Brokers
		configuredGroup = config.ConsumerGroup
	}
	brokersStr := resolveSetting(env.EnvKafkaBrokers, configuredBrokers)
	if brokersStr == "" {
		return nil, fmt.Errorf("kafka config with brokers is required")
	}

	brokerList := []string{}
	for b := range strings.SplitSeq(brokersStr, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokerList = append(brokerList, b)
		}
	}
	if len(brokerList) == 0 {
		return nil, fmt.Errorf("kafka config with brokers is required")
	}

	consumerGroup := resolveConsumerGroup(configuredGroup)

	logger.Debug("kafka init",
		watermill.LogFields{"brokers": strings.Join(brokerList, ","), "consumer_group": consumerGroup},
	)

	saramaSubscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaSubscriberConfig.Consumer.Offsets.Initial = sarama.OffsetNewest

	// Watermill uses a SyncProducer which requires Return.Successes=true;
	// batching keeps latency impact and broker load down.
	saramaProducerConfig := sarama.NewConfig()
	saramaProducerConfig.Producer.Return.Successes = true
	saramaProducerConfig.Producer.Return.Errors = true
	saramaProducerConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaProducerConfig.Producer.Retry.Max = 3
	saramaProducerConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaProducerConfig.Producer.Flush.Messages = 100
	saramaProducerConfig.Producer.Flush.MaxMessages = 1000
	saramaProducerConfig.Version = sarama.V4_1_0_0

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokerList,
			Unmarshaler:           kafka.DefaultMarshaler{},
			ConsumerGroup:         consumerGroup,
			OverwriteSaramaConfig: saramaSubscriberConfig,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokerList,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaProducerConfig,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return NewWatermillPubSub(publisher, subscriber), nil
}

func initNATS(logger watermill.LoggerAdapter, config *models.NatsConfig) (models.PubSub, error) {
	var configured string
	if config != nil {
		configured = config.URL
	}
	url := resolveSetting(env.EnvNatsURL, configured)
	if url == "" {
		return nil, fmt.Errorf("nats config with url is required (set NATS_URL env var or provide config)")
	}

	subscriber, err := nats.NewSubscriber(nats.SubscriberConfig{URL: url}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create nats subscriber: %w", err)
	}

	publisher, err := nats.NewPublisher(nats.PublisherConfig{URL: url}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create nats publisher: %w", err)
	}

	return NewWatermillPubSub(publisher, subscriber), nil
}

func initRabbitMQ(logger watermill.LoggerAdapter, config *models.RabbitMQConfig) (models.PubSub, error) {
	var configured string
	if config != nil {
		configured = config.URL
	}
	url := resolveSetting(env.EnvRabbitMQURL, configured)
	if url == "" {
		return nil, fmt.Errorf("rabbitmq config with url is required (set RABBITMQ_URL env var or provide config)")
	}

	rabbitmqConfig := amqp.NewDurableQueueConfig(url)

	subscriber, err := amqp.NewSubscriber(rabbitmqConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create rabbitmq subscriber: %w", err)
	}

	publisher, err := amqp.NewPublisher(rabbitmqConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create rabbitmq publisher: %w", err)
	}

	return NewWatermillPubSub(publisher, subscriber), nil
}
