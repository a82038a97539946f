package bootstrap

import (
	"fmt"

	"github.com/GoBucketStore/go-bucket-store/internal/util"
	"github.com/GoBucketStore/go-bucket-store/models"
	janitorplugin "github.com/GoBucketStore/go-bucket-store/plugins/janitor"
	quotaplugin "github.com/GoBucketStore/go-bucket-store/plugins/quota"
)

// PluginFactory defines a factory function for creating a plugin instance from typed config data.
type PluginFactory struct {
	ID                string
	ConfigParser      func(rawConfig any) (any, error)    // Parses raw config to typed config
	Constructor       func(typedConfig any) models.Plugin // Creates plugin from typed config
	RequiredByDefault bool                                // Whether this plugin must be enabled
}

// pluginFactories is an ordered list of registered plugin factories.
var pluginFactories = []PluginFactory{
	{
		ID:                models.PluginJanitor,
		RequiredByDefault: false,
		ConfigParser: func(rawConfig any) (any, error) {
			config := janitorplugin.JanitorPluginConfig{}
			if rawConfig != nil {
				if err := util.ParsePluginConfig(rawConfig, &config); err != nil {
					return nil, fmt.Errorf("failed to parse janitor plugin config: %w", err)
				}
			}
			return config, nil
		},
		Constructor: func(typedConfig any) models.Plugin {
			return janitorplugin.New(typedConfig.(janitorplugin.JanitorPluginConfig))
		},
	},
	{
		ID:                models.PluginQuota,
		RequiredByDefault: false,
		ConfigParser: func(rawConfig any) (any, error) {
			config := quotaplugin.QuotaPluginConfig{}
			if rawConfig != nil {
				if err := util.ParsePluginConfig(rawConfig, &config); err != nil {
					return nil, fmt.Errorf("failed to parse quota plugin config: %w", err)
				}
			}
			return config, nil
		},
		Constructor: func(typedConfig any) models.Plugin {
			return quotaplugin.New(typedConfig.(quotaplugin.QuotaPluginConfig))
		},
	},
}

// isPluginEnabled checks if a plugin is enabled in the raw config
func isPluginEnabled(rawConfig any, isRequiredByDefault bool) bool {
	if pluginConfig, ok := rawConfig.(map[string]any); ok {
		if enabled, ok := pluginConfig["enabled"].(bool); ok {
			return enabled
		}
	}
	// If config doesn't explicitly set enabled:
	// - Required plugins default to true (enabled)
	// - Optional plugins default to true if config is present, false if nil
	if rawConfig == nil {
		return isRequiredByDefault
	}
	return true
}

// BuildPluginsFromConfig builds an ordered list of enabled plugins from the configuration.
// It validates that all plugins in the configuration are registered and instantiates them
// in the order defined by pluginFactories.
func BuildPluginsFromConfig(config *models.Config) []models.Plugin {
	// Validate that all plugins in config exist in the registry
	registeredIDs := make(map[string]bool)
	for _, factory := range pluginFactories {
		registeredIDs[factory.ID] = true
	}

	for pluginID := range config.Plugins {
		if !registeredIDs[pluginID] {
			panic(fmt.Errorf("unknown plugin in configuration: %q", pluginID))
		}
	}

	// Instantiate plugins in the registered order
	var plugins []models.Plugin
	for _, factory := range pluginFactories {
		rawConfig := config.Plugins[factory.ID]
		enabled := isPluginEnabled(rawConfig, factory.RequiredByDefault)

		if factory.RequiredByDefault && !enabled {
			panic(fmt.Errorf("%s is required but not enabled", factory.ID))
		}

		if !enabled {
			continue
		}

		// Parse the raw config to typed config
		typedConfig, err := factory.ConfigParser(rawConfig)
		if err != nil {
			panic(fmt.Errorf("failed to parse plugin %s config: %w", factory.ID, err))
		}

		// Create the plugin with typed config
		plugin := factory.Constructor(typedConfig)

		if plugin != nil {
			plugins = append(plugins, plugin)
		}
	}

	return plugins
}
