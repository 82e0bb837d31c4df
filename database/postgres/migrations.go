package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func pgxIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func createValuesTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`, pgxIdent(tableName))

	_, err := pool.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("create values table: %w", err)
	}
	return nil
}

// DropTables removes every table created by Migrate.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	_, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", pgxIdent(tableName)))
	if err != nil {
		return fmt.Errorf("drop values table: %w", err)
	}
	return nil
}
