// Package sqlite implements the cryptosheet.Store interface on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/database/internal"
)

// store keeps every key as one row of the values table. Only the plain
// string commands listed in internal.Commands are supported.
type store struct {
	db        *sql.DB
	tableName string
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	return s.get(ctx, s.db, key)
}

func (s *store) get(ctx context.Context, q execer, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE name = ?`, quoteIdentifier(s.tableName)) //nolint:gosec // G201: table name is validated

	var value []byte
	if err := q.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptosheet.ErrNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}

	return value, nil
}

func (s *store) Set(ctx context.Context, key string, value []byte) (string, error) {
	if err := s.set(ctx, s.db, key, value); err != nil {
		return "", err
	}
	return "OK", nil
}

func (s *store) set(ctx context.Context, q execer, key string, value []byte) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		quoteIdentifier(s.tableName))

	if value == nil {
		value = []byte{}
	}
	if _, err := q.ExecContext(ctx, query, key, value, now()); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

func (s *store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	query := fmt.Sprintf(`DELETE FROM %s WHERE name IN (%s)`, quoteIdentifier(s.tableName), placeholders) //nolint:gosec // G201: table name is validated

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("del: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("del: rows affected: %w", err)
	}

	return n, nil
}

func (s *store) Do(ctx context.Context, name string, args ...string) (any, error) {
	return internal.Do(ctx, kv{s}, name, args)
}

func (s *store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *store) Close() error {
	return s.db.Close()
}

// kv adapts store to internal.KV.
type kv struct {
	s *store
}

func (k kv) Get(ctx context.Context, key string) ([]byte, error) {
	return k.s.Get(ctx, key)
}

func (k kv) Set(ctx context.Context, key string, value []byte) error {
	return k.s.set(ctx, k.s.db, key, value)
}

func (k kv) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (name, value, updated_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`,
		quoteIdentifier(k.s.tableName))

	if value == nil {
		value = []byte{}
	}
	res, err := k.s.db.ExecContext(ctx, query, key, value, now())
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setnx: rows affected: %w", err)
	}

	return n == 1, nil
}

func (k kv) GetDel(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = ? RETURNING value`, quoteIdentifier(k.s.tableName)) //nolint:gosec // G201: table name is validated

	var value []byte
	if err := k.s.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptosheet.ErrNotFound
		}
		return nil, fmt.Errorf("getdel: %w", err)
	}

	return value, nil
}

// Append concatenates in Go inside a transaction; SQLite's || operator
// would turn the blob into text.
func (k kv) Append(ctx context.Context, key string, value []byte) (int64, error) {
	tx, err := k.s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := k.s.get(ctx, tx, key)
	if err != nil && !errors.Is(err, cryptosheet.ErrNotFound) {
		return 0, fmt.Errorf("append: %w", err)
	}

	next := append(current, value...)
	if err := k.s.set(ctx, tx, key, next); err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append: commit: %w", err)
	}

	return int64(len(next)), nil
}

func (k kv) Del(ctx context.Context, keys ...string) (int64, error) {
	return k.s.Del(ctx, keys...)
}
