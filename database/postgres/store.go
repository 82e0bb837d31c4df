// Package postgres implements the cryptosheet.Store interface on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/database/internal"
)

// Store keeps every key as one row of the values table. Only the plain
// string commands listed in internal.Commands are supported.
type Store struct {
	pool *pgxpool.Pool
	// tableName is already quoted.
	tableName string
}

func NewStore(pool *pgxpool.Pool, tables cryptosheet.Tables) (*Store, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new store: %w", err)
	}

	return &Store{pool: pool, tableName: pgxIdent(tables.Values)}, nil
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE name = $1`, s.tableName)

	var value []byte
	if err := s.pool.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cryptosheet.ErrNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) (string, error) {
	if err := s.set(ctx, key, value); err != nil {
		return "", err
	}
	return "OK", nil
}

func (s *Store) set(ctx context.Context, key string, value []byte) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, s.tableName)

	if value == nil {
		value = []byte{}
	}
	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE name = ANY($1)`, s.tableName)

	tag, err := s.pool.Exec(ctx, query, keys)
	if err != nil {
		return 0, fmt.Errorf("del: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (s *Store) Do(ctx context.Context, name string, args ...string) (any, error) {
	return internal.Do(ctx, kv{s}, name, args)
}

// kv adapts Store to internal.KV.
type kv struct {
	s *Store
}

func (k kv) Get(ctx context.Context, key string) ([]byte, error) {
	return k.s.Get(ctx, key)
}

func (k kv) Set(ctx context.Context, key string, value []byte) error {
	return k.s.set(ctx, key, value)
}

func (k kv) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	query := fmt.Sprintf(`INSERT INTO %s (name, value) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, k.s.tableName)

	if value == nil {
		value = []byte{}
	}
	tag, err := k.s.pool.Exec(ctx, query, key, value)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (k kv) GetDel(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = $1 RETURNING value`, k.s.tableName)

	var value []byte
	if err := k.s.pool.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cryptosheet.ErrNotFound
		}
		return nil, fmt.Errorf("getdel: %w", err)
	}

	return value, nil
}

func (k kv) Append(ctx context.Context, key string, value []byte) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s AS t (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = t.value || EXCLUDED.value, updated_at = NOW()
		RETURNING octet_length(value)
	`, k.s.tableName)

	if value == nil {
		value = []byte{}
	}
	var n int64
	if err := k.s.pool.QueryRow(ctx, query, key, value).Scan(&n); err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}

	return n, nil
}

func (k kv) Del(ctx context.Context, keys ...string) (int64, error) {
	return k.s.Del(ctx, keys...)
}
