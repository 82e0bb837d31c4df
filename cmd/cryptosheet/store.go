package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/config"
	"github.com/sagarc03/cryptosheet/database"
)

// openStore connects to the configured store, pings it and checks the
// schema. With migrate set the schema is created first.
func openStore(ctx context.Context, cfg *config.Config, migrate bool) (database.Database, error) {
	db, err := database.Connect(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}

	if err = db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	if migrate {
		if err = db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate store: %w", err)
		}
		slog.Debug("store migration complete", "type", cfg.Store.Type)
	}

	if err = db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate store schema: %w", err)
	}

	return db, nil
}

// openService is openStore for commands that work through the service.
func openService(ctx context.Context, cfg *config.Config) (*cryptosheet.Service, func(), error) {
	db, err := openStore(ctx, cfg, false)
	if err != nil {
		return nil, nil, err
	}
	return cryptosheet.NewService(db.GetStore()), func() { _ = db.Close() }, nil
}
