package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	gobucketstore "github.com/GoBucketStore/go-bucket-store"
	gobucketstoreconfig "github.com/GoBucketStore/go-bucket-store/config"
	"github.com/GoBucketStore/go-bucket-store/env"
	gobucketstoreevents "github.com/GoBucketStore/go-bucket-store/events"
	"github.com/GoBucketStore/go-bucket-store/internal/bootstrap"
	gobucketstoremodels "github.com/GoBucketStore/go-bucket-store/models"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Run the bucket store in standalone mode
func main() {
	err := godotenv.Load()
	if err != nil {
		environment := os.Getenv(env.EnvGoEnvironment)
		if environment != "production" {
			log.Println("No .env file found, using environment variables and defaults")
		}
	}

	// Load configuration from TOML file if available
	tomlConfig := loadConfigFromFile()

	// Build config using functional options pattern to ensure all fields are set
	storeConfig := gobucketstoreconfig.NewConfig(
		gobucketstoreconfig.WithAppName(tomlConfig.AppName),
		gobucketstoreconfig.WithLogger(tomlConfig.Logger),
		gobucketstoreconfig.WithDatabase(tomlConfig.Database),
		gobucketstoreconfig.WithStorage(tomlConfig.Storage),
		gobucketstoreconfig.WithEventBus(tomlConfig.EventBus),
		gobucketstoreconfig.WithPlugins(tomlConfig.Plugins),
	)

	store, err := gobucketstore.New(storeConfig)
	if err != nil {
		log.Fatalf("failed to build store: %v", err)
	}
	logger := store.Logger()

	for _, plugin := range bootstrap.BuildPluginsFromConfig(storeConfig) {
		if err := store.RegisterPlugin(plugin); err != nil {
			logger.Error("failed to register plugin", "plugin", plugin.Metadata().ID, "error", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	if err := store.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	if err := store.InitPlugins(); err != nil {
		logger.Error("failed to initialize plugins", "error", err)
		os.Exit(1)
	}

	subscribeChangeLog(store, logger)

	logger.Info("bucket store running", "app", storeConfig.AppName, "database", storeConfig.Database.Provider)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownChan

	logger.Info("shutdown signal received", "signal", sig.String())
	if err := store.Close(); err != nil {
		logger.Error("failed to close store", "error", err)
		os.Exit(1)
	}
}

// subscribeChangeLog logs every storage change event at debug level.
func subscribeChangeLog(store *gobucketstore.Store, logger gobucketstoremodels.Logger) {
	eventTypes := []string{
		gobucketstoreevents.EventEntrySet,
		gobucketstoreevents.EventEntryDeleted,
		gobucketstoreevents.EventBucketPurged,
		gobucketstoreevents.EventGuildPurged,
	}

	for _, eventType := range eventTypes {
		if _, err := store.EventBus().Subscribe(eventType, func(ctx context.Context, event gobucketstoremodels.Event) error {
			logger.Debug("storage change", "type", event.Type, "payload", string(event.Payload))
			return nil
		}); err != nil {
			logger.Warn("failed to subscribe to storage events", "type", eventType, "error", err)
		}
	}
}

// loadConfigFromFile attempts to load configuration from TOML file if it exists
func loadConfigFromFile() gobucketstoremodels.Config {
	configPath := getEnv(env.EnvConfigPath, "config.toml")
	var config gobucketstoremodels.Config

	if _, err := os.Stat(configPath); err != nil {
		// File doesn't exist, return empty config - will use env vars and defaults
		return config
	}

	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		slog.Warn("Failed to parse TOML config file, will use environment variables and defaults", "path", configPath, "error", err)
	}

	return config
}
