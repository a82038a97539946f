package bootstrap

import (
	"testing"

	"github.com/GoBucketStore/go-bucket-store/models"
)

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic")
		}
	}()
	f()
}

func TestBuildPluginsFromConfig_ValidPlugins(t *testing.T) {
	cfg := &models.Config{
		Plugins: map[string]any{
			models.PluginJanitor: map[string]any{
				"enabled": true,
			},
		},
	}

	plugins := BuildPluginsFromConfig(cfg)

	if len(plugins) == 0 {
		t.Errorf("expected at least 1 plugin, got %d", len(plugins))
	}

	hasJanitor := false
	for _, p := range plugins {
		if p.Metadata().ID == models.PluginJanitor {
			hasJanitor = true
			break
		}
	}
	if !hasJanitor {
		t.Errorf("janitor plugin not found in plugins list")
	}
}

func TestBuildPluginsFromConfig_UnknownPlugin(t *testing.T) {
	cfg := &models.Config{
		Plugins: map[string]any{
			models.PluginJanitor: map[string]any{
				"enabled": true,
			},
			"unknown_plugin": map[string]any{
				"enabled": true,
			},
		},
	}

	assertPanic(t, func() { BuildPluginsFromConfig(cfg) })
}

func TestBuildPluginsFromConfig_DisabledPlugins(t *testing.T) {
	cfg := &models.Config{
		Plugins: map[string]any{
			models.PluginQuota: map[string]any{
				"enabled": false,
			},
		},
	}

	plugins := BuildPluginsFromConfig(cfg)

	for _, p := range plugins {
		if p.Metadata().ID == models.PluginQuota {
			t.Errorf("quota plugin should not be in plugins list when disabled")
		}
	}
}

func TestBuildPluginsFromConfig_PluginOrder(t *testing.T) {
	cfg := &models.Config{
		Plugins: map[string]any{
			models.PluginQuota: map[string]any{
				"enabled": true,
			},
			models.PluginJanitor: map[string]any{
				"enabled": true,
			},
		},
	}

	plugins := BuildPluginsFromConfig(cfg)

	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}

	if plugins[0].Metadata().ID != models.PluginJanitor {
		t.Errorf("expected %s to be first, got %s", models.PluginJanitor, plugins[0].Metadata().ID)
	}
}

func TestBuildPluginsFromConfig_EmptyConfig(t *testing.T) {
	cfg := &models.Config{
		Plugins: map[string]any{},
	}

	plugins := BuildPluginsFromConfig(cfg)

	if len(plugins) != 0 {
		t.Errorf("expected 0 plugins for empty config, got %d", len(plugins))
	}
}
