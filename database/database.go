package database

import (
	"context"
	"fmt"

	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/database/postgres"
	"github.com/sagarc03/cryptosheet/database/redis"
	"github.com/sagarc03/cryptosheet/database/sqlite"
)

// Config holds the configuration for connecting to a store backend.
type Config struct {
	// Type selects the backend: redis, sqlite or postgres.
	Type cryptosheet.StoreType
	// DSN is the connection string. For redis it is a redis:// URL.
	DSN string
	// Tables names the SQL tables. Ignored by redis.
	Tables cryptosheet.Tables
	// AutoMigrate makes serve create the SQL schema on startup.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// Database is a connected store backend.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetStore() cryptosheet.Store
	Close() error
}

// Connect opens the configured backend. Migrations are not run; call
// Migrate (or Validate in deployments that manage the schema themselves).
func Connect(ctx context.Context, cfg Config) (Database, error) {
	switch cfg.Type {
	case cryptosheet.StoreRedis:
		db, err := redis.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	case cryptosheet.StoreSQLite:
		if err := cfg.Tables.Validate(); err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case cryptosheet.StorePostgres:
		if err := cfg.Tables.Validate(); err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
