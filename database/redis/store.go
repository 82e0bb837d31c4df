// Package redis implements the cryptosheet.Store interface on a Redis
// server, passing allow-listed commands straight through.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sagarc03/cryptosheet"
)

type Store struct {
	client goredis.UniversalClient
}

func NewStore(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cryptosheet.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) (string, error) {
	reply, err := s.client.Set(ctx, key, value, 0).Result()
	if err != nil {
		return "", fmt.Errorf("set: %w", err)
	}
	return reply, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("del: %w", err)
	}
	return n, nil
}

// Do sends name and args as one command. A nil bulk reply is returned as
// nil; server error replies are returned as errors carrying the server's
// message.
func (s *Store) Do(ctx context.Context, name string, args ...string) (any, error) {
	cmd := make([]any, 0, len(args)+1)
	cmd = append(cmd, name)
	for _, a := range args {
		cmd = append(cmd, a)
	}

	reply, err := s.client.Do(ctx, cmd...).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return normalize(reply), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

// normalize converts a reply into JSON-friendly values.
func normalize(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []byte:
		return string(x)
	default:
		return x
	}
}
