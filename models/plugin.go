package models

import (
	"context"
	"embed"

	"github.com/uptrace/bun"
)

// Well-known plugin identifiers.
const (
	PluginJanitor = "janitor"
	PluginQuota   = "quota"
)

// PluginMetadata contains metadata about a plugin
type PluginMetadata struct {
	ID          string
	Version     string
	Description string
}

// PluginContext is the context passed to plugins during initialization.
type PluginContext struct {
	DB              bun.IDB
	Logger          Logger
	EventBus        EventBus
	ServiceRegistry ServiceRegistry
	GetConfig       func() *Config
}

// Plugin is the base interface all plugins must implement
type Plugin interface {
	Metadata() PluginMetadata
	Config() any
	Init(ctx *PluginContext) error
	Close() error
}

// PluginWithMigrations is an optional interface for plugins that have database migrations
type PluginWithMigrations interface {
	// Migrations returns the embedded SQL migrations filesystem for the given
	// database provider ("postgres" or "sqlite"). Files follow the goose
	// naming convention, e.g. 20250901000001_create_table.sql.
	Migrations(ctx context.Context, dbProvider string) (*embed.FS, error)
}

// PluginWithConfigWatcher is an optional interface that plugins can implement
// to receive config updates after initialization. Plugins should re-decode
// their section with ParsePluginConfig so internal pointers stay stable.
type PluginWithConfigWatcher interface {
	OnConfigUpdate(config *Config) error
}

type PluginOption func(p Plugin)

// PluginRegistry manages plugin registration and lifecycle
type PluginRegistry interface {
	Register(p Plugin) error
	InitAll() error
	RunMigrations(ctx context.Context) error
	DropMigrations(ctx context.Context) error
	Plugins() []Plugin
	GetConfig() *Config
	CloseAll()
	GetPlugin(pluginID string) Plugin
}
