package gobucketstore

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/uptrace/bun"

	"github.com/GoBucketStore/go-bucket-store/events"
	internalbootstrap "github.com/GoBucketStore/go-bucket-store/internal/bootstrap"
	internalevents "github.com/GoBucketStore/go-bucket-store/internal/events"
	internalmigrations "github.com/GoBucketStore/go-bucket-store/internal/migrations"
	internalrepositories "github.com/GoBucketStore/go-bucket-store/internal/repositories"
	internalservices "github.com/GoBucketStore/go-bucket-store/internal/services"
	"github.com/GoBucketStore/go-bucket-store/models"
	coreservices "github.com/GoBucketStore/go-bucket-store/services"
)

// InitLogger initializes the logger based on configuration
func InitLogger(config *models.Config) models.Logger {
	return internalbootstrap.InitLogger(internalbootstrap.LoggerOptions{Level: config.Logger.Level})
}

// InitDatabase creates a Bun DB connection based on provider
func InitDatabase(config *models.Config, logger models.Logger, logLevel string) (bun.IDB, error) {
	return internalbootstrap.InitDatabase(
		internalbootstrap.DatabaseOptions{
			Provider:        config.Database.Provider,
			URL:             config.Database.URL,
			MaxOpenConns:    config.Database.MaxOpenConns,
			MaxIdleConns:    config.Database.MaxIdleConns,
			ConnMaxLifetime: config.Database.ConnMaxLifetime,
		},
		logger,
		logLevel,
	)
}

// InitEventBus creates an event bus based on the configuration
func InitEventBus(config *models.Config) (models.EventBus, error) {
	// Default to gochannel if not specified
	provider := config.EventBus.Provider
	if provider == "" {
		provider = events.ProviderGoChannel.String()
	}

	eventBusConfig := config.EventBus
	eventBusConfig.Provider = provider
	if provider == events.ProviderGoChannel.String() && eventBusConfig.GoChannel == nil {
		eventBusConfig.GoChannel = &models.GoChannelConfig{
			BufferSize: 100,
		}
	}

	logger := watermill.NewStdLogger(false, false)

	pubsub, err := internalevents.InitWatermillProvider(&eventBusConfig, logger)
	if err != nil {
		return nil, err
	}

	return internalevents.NewEventBus(config, logger, pubsub), nil
}

// InitCoreServices wires the repository and storage service and registers
// them in the service registry.
func InitCoreServices(
	config *models.Config,
	db bun.IDB,
	eventBus models.EventBus,
	serviceRegistry models.ServiceRegistry,
	logger models.Logger,
) *coreservices.CoreServices {
	bucketRepo := internalrepositories.NewBunBucketRepository(db, config.Database.Provider, logger)
	bucketService := internalservices.NewBucketService(config, bucketRepo, eventBus, serviceRegistry, logger)

	serviceRegistry.Register(models.ServiceBucketStore.String(), bucketService)

	return &coreservices.CoreServices{
		BucketStoreService: bucketService,
	}
}

// RunCoreMigrations applies the bucket store schema migrations
func RunCoreMigrations(ctx context.Context, logger models.Logger, config *models.Config, db bun.IDB) error {
	return internalmigrations.RunCoreMigrations(ctx, logger, config.Logger.Level, config.Database.Provider, db)
}

// DropCoreMigrations rolls back the bucket store schema migrations
func DropCoreMigrations(ctx context.Context, logger models.Logger, config *models.Config, db bun.IDB) error {
	return internalmigrations.DropCoreMigrations(ctx, logger, config.Logger.Level, config.Database.Provider, db)
}
