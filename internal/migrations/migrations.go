package migrations

import (
	"context"
	"embed"
	"fmt"
)

//go:embed migrations/sqlite/*.sql
var sqliteFS embed.FS

//go:embed migrations/postgres/*.sql
var postgresFS embed.FS

// GetMigrations returns the core schema migrations for the specified
// database provider.
func GetMigrations(ctx context.Context, provider string) (*embed.FS, error) {
	switch provider {
	case "sqlite":
		return &sqliteFS, nil
	case "postgres":
		return &postgresFS, nil
	default:
		return nil, fmt.Errorf("unsupported database provider: %s", provider)
	}
}
