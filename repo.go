package cryptosheet

import "context"

// Store is the remote data store behind the gateway. Implementations must
// be safe for concurrent use.
//
// All methods accept a context for cancellation and timeout control.
type Store interface {
	// Get returns the raw value stored at key.
	//
	// Returns ErrNotFound when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key, replacing any previous value, and returns the
	// store's status reply (for example "OK").
	Set(ctx context.Context, key string, value []byte) (string, error)

	// Del removes the given keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Do runs a single store command with string arguments and returns the
	// decoded reply: nil, string, int64, float64, bool, []any or
	// map[string]any. Callers are responsible for checking the command
	// against the allow-list.
	//
	// Backends that cannot run name return an error wrapping
	// ErrNotImplemented.
	Do(ctx context.Context, name string, args ...string) (any, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's connections.
	Close() error
}
