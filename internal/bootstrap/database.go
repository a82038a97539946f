package bootstrap

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"

	"github.com/GoBucketStore/go-bucket-store/env"
	"github.com/GoBucketStore/go-bucket-store/models"
)

// DatabaseOptions configures database initialization
type DatabaseOptions struct {
	Provider        string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// InitDatabase opens the bun handle the bucket store runs on. The
// GO_BUCKET_STORE_DATABASE_URL environment variable overrides the configured
// connection string. Postgres is the production backend; sqlite serves
// embedded and test deployments.
func InitDatabase(opts DatabaseOptions, logger models.Logger, logLevel string) (bun.IDB, error) {
	if opts.Provider == "" {
		return nil, fmt.Errorf("database provider must be specified")
	}

	databaseURL := os.Getenv(env.EnvDatabaseURL)
	if databaseURL == "" {
		if opts.URL == "" {
			return nil, fmt.Errorf("database connection string must be specified via %s or config", env.EnvDatabaseURL)
		}
		databaseURL = opts.URL
	}

	switch opts.Provider {
	case "sqlite":
		sqlDB, err := openSQLite(databaseURL)
		if err != nil {
			return nil, err
		}
		return wireDB(sqlDB, sqlitedialect.New(), opts, logLevel), nil

	case "postgres":
		sqlDB, err := sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, err
		}
		return wireDB(sqlDB, pgdialect.New(), opts, logLevel), nil

	default:
		return nil, fmt.Errorf("unsupported database provider: %s", opts.Provider)
	}
}

// openSQLite anchors relative paths at the working directory and makes sure
// the parent directory exists before opening the file.
func openSQLite(path string) (*sql.DB, error) {
	if !filepath.IsAbs(path) {
		cwd, _ := os.Getwd()
		path = filepath.Join(cwd, path)
	}

	dbDir := filepath.Dir(path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	return sql.Open("sqlite3", path)
}

func wireDB(sqlDB *sql.DB, dialect schema.Dialect, opts DatabaseOptions, logLevel string) *bun.DB {
	db := bun.NewDB(sqlDB, dialect)
	configurePool(sqlDB, opts)
	if logLevel == "debug" {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
		))
	}
	return db
}

// configurePool sizes the pool from the host CPU count when the config
// leaves the limits unset.
func configurePool(sqlDB *sql.DB, opts DatabaseOptions) {
	numCPU := runtime.NumCPU()

	maxOpenConns := opts.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = numCPU * 4
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)

	maxIdleConns := opts.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = numCPU * 2
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)

	connMaxLifetime := opts.ConnMaxLifetime
	if connMaxLifetime == 0 {
		connMaxLifetime = 10 * time.Minute
	}
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
}
