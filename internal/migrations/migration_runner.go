package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"github.com/uptrace/bun"

	"github.com/GoBucketStore/go-bucket-store/models"
)

// MigrationOperation represents the type of migration operation
type MigrationOperation int

const (
	MigrateUpOperation MigrationOperation = iota
	MigrateDownOperation
)

// migrationRunner wraps a goose provider scoped to one embedded migration
// set (the core bucket_store schema or a plugin's schema).
type migrationRunner struct {
	logger   models.Logger
	provider *goose.Provider
}

func newMigrationRunner(
	logger models.Logger,
	db bun.IDB,
	sqlFs embed.FS,
	migrationsDir string,
	provider string,
	verbose bool,
) (*migrationRunner, error) {
	subFs, err := fs.Sub(sqlFs, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create sub filesystem: %w", err)
	}

	dialect, err := getDialect(provider)
	if err != nil {
		return nil, err
	}

	sqlDB := getSQLDB(db)
	if sqlDB == nil {
		return nil, fmt.Errorf("failed to get *sql.DB from bun.IDB")
	}

	providerInstance, err := goose.NewProvider(dialect, sqlDB, subFs, goose.WithVerbose(verbose))
	if err != nil {
		return nil, fmt.Errorf("failed to create goose provider: %w", err)
	}

	return &migrationRunner{
		logger:   logger,
		provider: providerInstance,
	}, nil
}

// run executes the migration operation and logs each applied migration
func (r *migrationRunner) run(ctx context.Context, op MigrationOperation, logLevel string) error {
	var results []*goose.MigrationResult
	var err error

	switch op {
	case MigrateUpOperation:
		results, err = r.provider.Up(ctx)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		for _, result := range results {
			r.logMigration(result, logLevel, "Migrated")
		}
	case MigrateDownOperation:
		results, err = r.provider.DownTo(ctx, 0)
		if err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		for _, result := range results {
			r.logMigration(result, "info", "Rolled back")
		}
	}

	return nil
}

func (r *migrationRunner) logMigration(result *goose.MigrationResult, level string, action string) {
	if r.logger == nil {
		return
	}
	msg := fmt.Sprintf("%s: %s (%s)", action, result.Source.Path, result.Duration)
	if level == "debug" {
		r.logger.Debug(msg)
		return
	}
	r.logger.Info(msg)
}

// RunCoreMigrations applies the bucket_store schema for the given provider.
func RunCoreMigrations(
	ctx context.Context,
	logger models.Logger,
	logLevel string,
	provider string,
	db bun.IDB,
) error {
	sqlFs, err := GetMigrations(ctx, provider)
	if err != nil {
		return err
	}

	runner, err := newMigrationRunner(logger, db, *sqlFs, "migrations/"+provider, provider, logLevel == "debug")
	if err != nil {
		return err
	}

	return runner.run(ctx, MigrateUpOperation, logLevel)
}

// DropCoreMigrations rolls back the bucket_store schema completely.
func DropCoreMigrations(
	ctx context.Context,
	logger models.Logger,
	logLevel string,
	provider string,
	db bun.IDB,
) error {
	sqlFs, err := GetMigrations(ctx, provider)
	if err != nil {
		return err
	}

	runner, err := newMigrationRunner(logger, db, *sqlFs, "migrations/"+provider, provider, logLevel == "debug")
	if err != nil {
		return err
	}

	return runner.run(ctx, MigrateDownOperation, logLevel)
}

// RunMigrations applies migrations from a plugin's embedded filesystem.
func RunMigrations(
	ctx context.Context,
	logger models.Logger,
	provider string,
	db bun.IDB,
	sqlFs embed.FS,
	migrationsDir string,
) error {
	runner, err := newMigrationRunner(logger, db, sqlFs, migrationsDir, provider, false)
	if err != nil {
		return err
	}

	return runner.run(ctx, MigrateUpOperation, "debug")
}

// DropMigrations rolls back migrations from a plugin's embedded filesystem.
func DropMigrations(
	ctx context.Context,
	logger models.Logger,
	provider string,
	db bun.IDB,
	sqlFs embed.FS,
	migrationsDir string,
) error {
	runner, err := newMigrationRunner(logger, db, sqlFs, migrationsDir, provider, false)
	if err != nil {
		return err
	}

	return runner.run(ctx, MigrateDownOperation, "info")
}

func getDialect(provider string) (database.Dialect, error) {
	switch provider {
	case "postgres":
		return goose.DialectPostgres, nil
	case "sqlite":
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("unsupported database provider: %s", provider)
	}
}

// getSQLDB extracts the raw *sql.DB goose needs from a bun handle.
func getSQLDB(db bun.IDB) *sql.DB {
	switch d := db.(type) {
	case *bun.DB:
		return d.DB
	default:
		return nil
	}
}
