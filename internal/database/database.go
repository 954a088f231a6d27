package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradementor/capitalengine/internal/config"
	"github.com/tradementor/capitalengine/internal/logging"
	_ "github.com/mattn/go-sqlite3"
)

// Database abstracts both PostgreSQL and SQLite connections.
// Use this interface for all database operations to keep callers driver agnostic.
type Database interface {
	DBPool
	Kind() DBType
	Close() error
	HealthCheck(ctx context.Context) error
}

// DBType enumerates supported database drivers.
type DBType string

const (
	DBTypeSQLite   DBType = "sqlite"
	DBTypePostgres DBType = "postgres"
)

// DetectDBType normalizes a driver string to a DBType.
func DetectDBType(driver string) DBType {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql":
		return DBTypePostgres
	default:
		return DBTypeSQLite
	}
}

// NewDatabaseConnection creates a database connection based on the driver
// configuration. Supports sqlite and postgres.
func NewDatabaseConnection(ctx context.Context, cfg *config.DatabaseConfig, log *logging.StandardLogger) (Database, error) {
	switch DetectDBType(cfg.Driver) {
	case DBTypeSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "capitalengine.db"
		}
		log.Info("connecting to sqlite database: " + path)
		return NewSQLiteConnection(path)

	case DBTypePostgres:
		log.Info(fmt.Sprintf("connecting to postgres database: %s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.DBName))
		return NewPostgresConnection(ctx, cfg, log)

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}
