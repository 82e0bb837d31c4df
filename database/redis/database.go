package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sagarc03/cryptosheet"
)

type database struct {
	client *goredis.Client
}

// Connect creates a client for the Redis server at url
// (redis://[user:password@]host:port/db or rediss:// for TLS). No
// connection is made until the first command.
func Connect(_ context.Context, url string) (*database, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	// RESP2 replies only contain strings, integers, arrays and nil, which
	// map directly onto JSON.
	opts.Protocol = 2

	return &database{client: goredis.NewClient(opts)}, nil
}

// Ping verifies the server is reachable.
func (d *database) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Migrate is a no-op; Redis has no schema.
func (d *database) Migrate(context.Context) error {
	return nil
}

// Validate checks that the server answers.
func (d *database) Validate(ctx context.Context) error {
	if err := d.Ping(ctx); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

func (d *database) GetStore() cryptosheet.Store {
	return NewStore(d.client)
}

func (d *database) Close() error {
	return d.client.Close()
}
