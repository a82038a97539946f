package gobucketstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/uptrace/bun"

	internalplugins "github.com/GoBucketStore/go-bucket-store/internal/plugins"
	"github.com/GoBucketStore/go-bucket-store/internal/util"
	"github.com/GoBucketStore/go-bucket-store/models"
	coreservices "github.com/GoBucketStore/go-bucket-store/services"
)

// Store is the embeddable bucket store. It owns the database connection, the
// event bus and the plugin lifecycle, and exposes the storage operations.
type Store struct {
	Config *models.Config

	logger          models.Logger
	db              bun.IDB
	eventBus        models.EventBus
	serviceRegistry models.ServiceRegistry
	pluginRegistry  *internalplugins.PluginRegistry
	services        *coreservices.CoreServices

	// closeOnce ensures Close() is idempotent.
	closeOnce sync.Once
}

// New assembles a Store from the given configuration. Plugins still need to
// be registered and initialized afterwards, see RegisterPlugin and
// InitPlugins.
func New(config *models.Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	util.InitValidator()
	if err := util.ValidateStruct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := InitLogger(config)

	db, err := InitDatabase(config, logger, config.Logger.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	eventBus, err := InitEventBus(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}

	serviceRegistry := internalplugins.NewServiceRegistry()
	services := InitCoreServices(config, db, eventBus, serviceRegistry, logger)
	pluginRegistry := internalplugins.NewPluginRegistry(config, logger, db, serviceRegistry, eventBus)

	return &Store{
		Config:          config,
		logger:          logger,
		db:              db,
		eventBus:        eventBus,
		serviceRegistry: serviceRegistry,
		pluginRegistry:  pluginRegistry,
		services:        services,
	}, nil
}

// RegisterPlugin registers a plugin. Must be called before InitPlugins.
// The plugin's typed config is stored in PreParsedConfigs so manually
// constructed plugins do not also need a section in the Plugins map.
func (s *Store) RegisterPlugin(plugin models.Plugin) error {
	if err := s.pluginRegistry.Register(plugin); err != nil {
		return err
	}

	if s.Config.PreParsedConfigs == nil {
		s.Config.PreParsedConfigs = make(map[string]any)
	}
	s.Config.PreParsedConfigs[plugin.Metadata().ID] = plugin.Config()
	return nil
}

// InitPlugins initializes all registered plugins in registration order.
func (s *Store) InitPlugins() error {
	return s.pluginRegistry.InitAll()
}

// RunMigrations applies the core schema followed by plugin migrations.
func (s *Store) RunMigrations(ctx context.Context) error {
	if err := RunCoreMigrations(ctx, s.logger, s.Config, s.db); err != nil {
		return err
	}
	return s.pluginRegistry.RunMigrations(ctx)
}

// DropMigrations rolls back plugin migrations followed by the core schema.
func (s *Store) DropMigrations(ctx context.Context) error {
	if err := s.pluginRegistry.DropMigrations(ctx); err != nil {
		return err
	}
	return DropCoreMigrations(ctx, s.logger, s.Config, s.db)
}

// UpdateConfig swaps the active configuration and notifies plugins that
// watch for config changes.
func (s *Store) UpdateConfig(config *models.Config) error {
	if config == nil {
		return fmt.Errorf("config must not be nil")
	}
	if err := util.ValidateStruct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	*s.Config = *config
	s.pluginRegistry.NotifyConfigUpdate(s.Config)
	return nil
}

// EventBus exposes the event bus so embedders can subscribe to storage
// change events.
func (s *Store) EventBus() models.EventBus {
	return s.eventBus
}

// DB exposes the underlying database handle.
func (s *Store) DB() bun.IDB {
	return s.db
}

// Logger exposes the configured logger.
func (s *Store) Logger() models.Logger {
	return s.logger
}

// Close shuts down plugins, the event bus and the database connection.
func (s *Store) Close() error {
	var firstErr error
	s.closeOnce.Do(func() {
		s.pluginRegistry.CloseAll()

		if s.eventBus != nil {
			if err := s.eventBus.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		if db, ok := s.db.(*bun.DB); ok {
			if err := db.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

// ---------------------------------
// STORAGE OPERATIONS
// ---------------------------------

func (s *Store) Get(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string) (*models.Entry, error) {
	return s.services.BucketStoreService.Get(ctx, guildID, pluginID, bucket, key)
}

func (s *Store) Set(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string, value models.Value, ttl *time.Duration) (*models.Entry, error) {
	return s.services.BucketStoreService.Set(ctx, guildID, pluginID, bucket, key, value, ttl)
}

func (s *Store) SetIf(ctx context.Context, cond models.SetCondition, guildID models.GuildID, pluginID models.PluginID, bucket, key string, value models.Value, ttl *time.Duration) (*models.Entry, error) {
	return s.services.BucketStoreService.SetIf(ctx, cond, guildID, pluginID, bucket, key, value, ttl)
}

func (s *Store) Increment(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string, delta float64) (*models.Entry, error) {
	return s.services.BucketStoreService.Increment(ctx, guildID, pluginID, bucket, key, delta)
}

func (s *Store) Delete(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, key string) (*models.Entry, error) {
	return s.services.BucketStoreService.Delete(ctx, guildID, pluginID, bucket, key)
}

func (s *Store) DeleteMatching(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, keyPattern string) (int64, error) {
	return s.services.BucketStoreService.DeleteMatching(ctx, guildID, pluginID, bucket, keyPattern)
}

func (s *Store) DeleteGuild(ctx context.Context, guildID models.GuildID) (int64, error) {
	return s.services.BucketStoreService.DeleteGuild(ctx, guildID)
}

func (s *Store) List(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, keyPattern, afterKey string, limit int) ([]models.Entry, error) {
	return s.services.BucketStoreService.List(ctx, guildID, pluginID, bucket, keyPattern, afterKey, limit)
}

func (s *Store) Count(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket, keyPattern string) (int64, error) {
	return s.services.BucketStoreService.Count(ctx, guildID, pluginID, bucket, keyPattern)
}

func (s *Store) ListSorted(ctx context.Context, guildID models.GuildID, pluginID models.PluginID, bucket string, order models.SortOrder, offset, limit int) ([]models.Entry, error) {
	return s.services.BucketStoreService.ListSorted(ctx, guildID, pluginID, bucket, order, offset, limit)
}

func (s *Store) GuildUsageBytes(ctx context.Context, guildID models.GuildID) (int64, error) {
	return s.services.BucketStoreService.GuildUsageBytes(ctx, guildID)
}
