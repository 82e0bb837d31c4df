package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/database/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (cryptosheet.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	db, err := redis.Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, db.Validate(context.Background()))

	return db.GetStore(), mr
}

func TestConnect_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := redis.Connect(context.Background(), "http://localhost:6379")
	assert.Error(t, err)
}

func TestStore_GetSetDel(t *testing.T) {
	t.Parallel()
	s, mr := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, cryptosheet.ErrNotFound)

	reply, err := s.Set(ctx, "greeting", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "OK", reply)

	got, err := s.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
	mr.CheckGet(t, "greeting", "hello")

	n, err := s.Del(ctx, "greeting", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, mr.Exists("greeting"))
}

func TestStore_Do(t *testing.T) {
	t.Parallel()
	s, mr := setupTestStore(t)
	ctx := context.Background()

	reply, err := s.Do(ctx, "HSET", "user", "name", "ada", "lang", "go")
	require.NoError(t, err)
	assert.Equal(t, int64(2), reply)
	assert.Equal(t, "ada", mr.HGet("user", "name"))

	reply, err = s.Do(ctx, "HGETALL", "user")
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"name", "ada", "lang", "go"}, reply)

	reply, err = s.Do(ctx, "GET", "nope")
	require.NoError(t, err)
	assert.Nil(t, reply)

	reply, err = s.Do(ctx, "ZADD", "board", "10", "a", "20", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), reply)

	reply, err = s.Do(ctx, "ZRANGE", "board", "0", "-1", "WITHSCORES")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "10", "b", "20"}, reply)
}

func TestStore_DoServerError(t *testing.T) {
	t.Parallel()
	s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Set(ctx, "plain", []byte("v"))
	require.NoError(t, err)

	_, err = s.Do(ctx, "HGET", "plain", "f")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WRONGTYPE")
	assert.NotErrorIs(t, err, cryptosheet.ErrNotImplemented)
}

func TestStore_Ping(t *testing.T) {
	t.Parallel()
	s, mr := setupTestStore(t)

	require.NoError(t, s.Ping(context.Background()))
	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}
