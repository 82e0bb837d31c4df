// Package internal holds the string command interpreter shared by the SQL
// store backends.
package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sagarc03/cryptosheet"
)

// KV is the storage surface a SQL backend provides to the interpreter.
// Get and GetDel return cryptosheet.ErrNotFound for missing keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	GetDel(ctx context.Context, key string) ([]byte, error)
	Append(ctx context.Context, key string, value []byte) (int64, error)
	Del(ctx context.Context, keys ...string) (int64, error)
}

// Commands lists the commands Do understands.
var Commands = []string{"APPEND", "DEL", "EXISTS", "GET", "GETDEL", "MGET", "MSET", "SETNX", "SET", "STRLEN"}

type command struct {
	minArgs int
	// maxArgs < 0 means unbounded.
	maxArgs int
	run     func(ctx context.Context, kv KV, args []string) (any, error)
}

var commands = map[string]command{
	"GET":    {minArgs: 1, maxArgs: 1, run: get},
	"SET":    {minArgs: 2, maxArgs: 2, run: set},
	"SETNX":  {minArgs: 2, maxArgs: 2, run: setNX},
	"GETDEL": {minArgs: 1, maxArgs: 1, run: getDel},
	"APPEND": {minArgs: 2, maxArgs: 2, run: appendValue},
	"STRLEN": {minArgs: 1, maxArgs: 1, run: strlen},
	"DEL":    {minArgs: 1, maxArgs: -1, run: del},
	"EXISTS": {minArgs: 1, maxArgs: -1, run: exists},
	"MGET":   {minArgs: 1, maxArgs: -1, run: mget},
	"MSET":   {minArgs: 2, maxArgs: -1, run: mset},
}

// Do runs name against kv. Replies follow the Redis conventions: "OK" for
// writes, int64 counts, a string or nil for reads and []any for MGET.
// Unknown commands return an error wrapping cryptosheet.ErrNotImplemented.
func Do(ctx context.Context, kv KV, name string, args []string) (any, error) {
	cmd, ok := commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not available on this store", cryptosheet.ErrNotImplemented, name)
	}

	if len(args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(args) > cmd.maxArgs) {
		return nil, fmt.Errorf("wrong number of arguments for '%s' command", strings.ToLower(name))
	}

	return cmd.run(ctx, kv, args)
}

func get(ctx context.Context, kv KV, args []string) (any, error) {
	return optional(kv.Get(ctx, args[0]))
}

func set(ctx context.Context, kv KV, args []string) (any, error) {
	if err := kv.Set(ctx, args[0], []byte(args[1])); err != nil {
		return nil, err
	}
	return "OK", nil
}

func setNX(ctx context.Context, kv KV, args []string) (any, error) {
	ok, err := kv.SetNX(ctx, args[0], []byte(args[1]))
	if err != nil {
		return nil, err
	}
	if ok {
		return int64(1), nil
	}
	return int64(0), nil
}

func getDel(ctx context.Context, kv KV, args []string) (any, error) {
	return optional(kv.GetDel(ctx, args[0]))
}

func appendValue(ctx context.Context, kv KV, args []string) (any, error) {
	return kv.Append(ctx, args[0], []byte(args[1]))
}

func strlen(ctx context.Context, kv KV, args []string) (any, error) {
	v, err := kv.Get(ctx, args[0])
	if errors.Is(err, cryptosheet.ErrNotFound) {
		return int64(0), nil
	}
	if err != nil {
		return nil, err
	}
	return int64(len(v)), nil
}

func del(ctx context.Context, kv KV, args []string) (any, error) {
	return kv.Del(ctx, args...)
}

// exists counts every argument that names a present key, so repeated keys
// are counted repeatedly.
func exists(ctx context.Context, kv KV, args []string) (any, error) {
	var n int64
	for _, key := range args {
		_, err := kv.Get(ctx, key)
		if errors.Is(err, cryptosheet.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		n++
	}
	return n, nil
}

func mget(ctx context.Context, kv KV, args []string) (any, error) {
	out := make([]any, 0, len(args))
	for _, key := range args {
		v, err := optional(kv.Get(ctx, key))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func mset(ctx context.Context, kv KV, args []string) (any, error) {
	if len(args)%2 != 0 {
		return nil, errors.New("wrong number of arguments for 'mset' command")
	}
	for i := 0; i < len(args); i += 2 {
		if err := kv.Set(ctx, args[i], []byte(args[i+1])); err != nil {
			return nil, err
		}
	}
	return "OK", nil
}

// optional turns a missing key into a nil reply.
func optional(v []byte, err error) (any, error) {
	if errors.Is(err, cryptosheet.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return string(v), nil
}
