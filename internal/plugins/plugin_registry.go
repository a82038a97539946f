package plugins

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/GoBucketStore/go-bucket-store/internal/migrations"
	"github.com/GoBucketStore/go-bucket-store/internal/util"
	"github.com/GoBucketStore/go-bucket-store/models"
)

// PluginRegistry manages plugin registration and lifecycle
type PluginRegistry struct {
	config          *models.Config
	logger          models.Logger
	db              bun.IDB
	serviceRegistry models.ServiceRegistry
	eventBus        models.EventBus
	plugins         []models.Plugin
	configProvider  func() *models.Config
}

// NewPluginRegistry creates a new plugin registry
func NewPluginRegistry(
	config *models.Config,
	logger models.Logger,
	db bun.IDB,
	serviceRegistry models.ServiceRegistry,
	eventBus models.EventBus,
) *PluginRegistry {
	registry := &PluginRegistry{
		config:          config,
		logger:          logger,
		db:              db,
		serviceRegistry: serviceRegistry,
		eventBus:        eventBus,
		plugins:         make([]models.Plugin, 0),
	}

	registry.configProvider = func() *models.Config {
		return registry.config
	}

	return registry
}

// Register registers a plugin with the registry
func (r *PluginRegistry) Register(p models.Plugin) error {
	pluginID := p.Metadata().ID

	for _, existing := range r.plugins {
		if existing.Metadata().ID == pluginID {
			return fmt.Errorf("plugin with ID %q is already registered", pluginID)
		}
	}

	r.plugins = append(r.plugins, p)
	return nil
}

// SetConfigProvider allows the embedding application to inject a dynamic config provider
func (r *PluginRegistry) SetConfigProvider(provider func() *models.Config) {
	if provider != nil {
		r.configProvider = provider
	}
}

// InitAll initializes all enabled plugins
func (r *PluginRegistry) InitAll() error {
	for _, plugin := range r.plugins {
		pluginID := plugin.Metadata().ID
		cfg := r.configProvider()

		if !util.IsPluginEnabled(cfg, pluginID) {
			r.logger.Debug("plugin disabled, skipping initialization", "plugin", pluginID)
			continue
		}

		ctx := &models.PluginContext{
			DB:              r.db,
			EventBus:        r.eventBus,
			Logger:          r.logger,
			ServiceRegistry: r.serviceRegistry,
			GetConfig:       r.configProvider,
		}

		if err := plugin.Init(ctx); err != nil {
			r.logger.Error("failed to initialize plugin", "plugin", pluginID, "error", err)
			return err
		}

		r.logger.Info("plugin initialized", "plugin", pluginID)
	}

	return nil
}

// NotifyConfigUpdate pushes a new config to plugins implementing
// PluginWithConfigWatcher so they can re-decode their section.
func (r *PluginRegistry) NotifyConfigUpdate(config *models.Config) {
	for _, plugin := range r.plugins {
		watcher, ok := plugin.(models.PluginWithConfigWatcher)
		if !ok {
			continue
		}
		if err := watcher.OnConfigUpdate(config); err != nil {
			r.logger.Error("failed to apply config update", "plugin", plugin.Metadata().ID, "error", err)
		}
	}
}

// RunMigrations runs database migrations for all enabled plugins
func (r *PluginRegistry) RunMigrations(ctx context.Context) error {
	dbProvider := r.config.Database.Provider

	for _, plugin := range r.plugins {
		pluginID := plugin.Metadata().ID
		cfg := r.configProvider()

		if !util.IsPluginEnabled(cfg, pluginID) {
			r.logger.Debug("plugin disabled, skipping migrations", "plugin", pluginID)
			continue
		}

		migrator, ok := plugin.(models.PluginWithMigrations)
		if !ok {
			continue
		}

		sqlFS, err := migrator.Migrations(ctx, dbProvider)
		if err != nil {
			r.logger.Error("failed to get migrations",
				"plugin", pluginID,
				"error", err,
			)
			return err
		}

		if sqlFS == nil {
			r.logger.Debug("plugin has no migrations", "plugin", pluginID)
			continue
		}

		err = migrations.RunMigrations(ctx, r.logger, dbProvider, r.db, *sqlFS, "migrations/"+dbProvider)
		if err != nil {
			r.logger.Error("failed to run migrations",
				"plugin", pluginID,
				"error", err,
			)
			return err
		}

		r.logger.Debug("plugin migrations completed", "plugin", pluginID)
	}

	return nil
}

// DropMigrations drops database migrations for all registered plugins,
// in reverse registration order.
func (r *PluginRegistry) DropMigrations(ctx context.Context) error {
	dbProvider := r.config.Database.Provider

	for i := len(r.plugins) - 1; i >= 0; i-- {
		plugin := r.plugins[i]
		pluginID := plugin.Metadata().ID

		migrator, ok := plugin.(models.PluginWithMigrations)
		if !ok {
			continue
		}

		sqlFS, err := migrator.Migrations(ctx, dbProvider)
		if err != nil {
			r.logger.Error("failed to get migrations",
				"plugin", pluginID,
				"error", err,
			)
			return err
		}

		if sqlFS == nil {
			r.logger.Debug("plugin has no migrations", "plugin", pluginID)
			continue
		}

		err = migrations.DropMigrations(ctx, r.logger, dbProvider, r.db, *sqlFS, "migrations/"+dbProvider)
		if err != nil {
			r.logger.Error("failed to drop migrations",
				"plugin", pluginID,
				"error", err,
			)
			return err
		}

		r.logger.Debug("plugin migrations dropped", "plugin", pluginID)
	}

	return nil
}

func (r *PluginRegistry) Plugins() []models.Plugin {
	return r.plugins
}

func (r *PluginRegistry) GetConfig() *models.Config {
	return r.configProvider()
}

func (r *PluginRegistry) CloseAll() {
	for _, plugin := range r.plugins {
		if err := plugin.Close(); err != nil {
			r.logger.Error("failed to close plugin", "plugin", plugin.Metadata().ID, "error", err)
		}
	}
}

func (r *PluginRegistry) GetPlugin(pluginID string) models.Plugin {
	for _, plugin := range r.plugins {
		if plugin.Metadata().ID == pluginID {
			return plugin
		}
	}
	return nil
}
