package cryptosheet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sagarc03/cryptosheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type SpyStore struct {
	mock.Mock
}

func (s *SpyStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := s.Called(ctx, key)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (s *SpyStore) Set(ctx context.Context, key string, value []byte) (string, error) {
	args := s.Called(ctx, key, value)
	return args.String(0), args.Error(1)
}

func (s *SpyStore) Del(ctx context.Context, keys ...string) (int64, error) {
	args := s.Called(ctx, keys)
	return args.Get(0).(int64), args.Error(1)
}

func (s *SpyStore) Do(ctx context.Context, name string, cmdArgs ...string) (any, error) {
	args := s.Called(ctx, name, cmdArgs)
	return args.Get(0), args.Error(1)
}

func (s *SpyStore) Ping(ctx context.Context) error {
	return s.Called(ctx).Error(0)
}

func (s *SpyStore) Close() error {
	return s.Called().Error(0)
}

func newService(t *testing.T) (*cryptosheet.Service, *SpyStore) {
	t.Helper()
	store := new(SpyStore)
	return cryptosheet.NewService(store), store
}

func TestService_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("plain key", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Get", ctx, "price").Return([]byte("42"), nil)

		entry, err := service.Fetch(ctx, "price")
		require.NoError(t, err)
		assert.True(t, entry.Exists)
		assert.Equal(t, []byte("42"), entry.Value)
		assert.Empty(t, entry.Mimetype)
		store.AssertExpectations(t)
	})

	t.Run("missing plain key", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Get", ctx, "price").Return(nil, cryptosheet.ErrNotFound)

		entry, err := service.Fetch(ctx, "price")
		require.NoError(t, err)
		assert.False(t, entry.Exists)
		assert.Nil(t, entry.Value)
	})

	t.Run("blob key", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Get", ctx, "logo:file:mimetype").Return([]byte("image/png"), nil)
		store.On("Get", ctx, "logo:file").Return([]byte{0x89, 0x50}, nil)

		entry, err := service.Fetch(ctx, "logo:file")
		require.NoError(t, err)
		assert.Equal(t, "image/png", entry.Mimetype)
		assert.Equal(t, []byte{0x89, 0x50}, entry.Value)
		store.AssertExpectations(t)
	})

	t.Run("blob without mimetype does not exist", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Get", ctx, "logo:file:mimetype").Return(nil, cryptosheet.ErrNotFound)

		_, err := service.Fetch(ctx, "logo:file")
		require.Error(t, err)
		assert.ErrorIs(t, err, cryptosheet.ErrInvalidInput)
		assert.Equal(t, "key does not exist", err.Error())
		store.AssertNotCalled(t, "Get", ctx, "logo:file")
	})

	t.Run("reserved key never reaches store", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)

		_, err := service.Fetch(ctx, "health")
		assert.ErrorIs(t, err, cryptosheet.ErrInvalidInput)
		store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Get", ctx, "price").Return(nil, errors.New("connection refused"))

		_, err := service.Fetch(ctx, "price")
		require.Error(t, err)
		assert.ErrorIs(t, err, cryptosheet.ErrUpstream)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := service.Fetch(cctx, "price")
		assert.ErrorIs(t, err, context.Canceled)
		store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})
}

func TestService_Put(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Set", ctx, "price", []byte("42")).Return("OK", nil)

		reply, err := service.Put(ctx, "price", []byte("42"))
		require.NoError(t, err)
		assert.Equal(t, "OK", reply)
	})

	t.Run("invalid key", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)

		_, err := service.Put(ctx, "bad key", []byte("x"))
		assert.ErrorIs(t, err, cryptosheet.ErrInvalidInput)
		store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reserved key", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)

		_, err := service.Put(ctx, "CMD", []byte("x"))
		require.Error(t, err)
		assert.Equal(t, "key is reserved", err.Error())
		store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removed", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Del", ctx, []string{"price"}).Return(int64(1), nil)

		updated, err := service.Delete(ctx, "price")
		require.NoError(t, err)
		assert.True(t, updated)
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Del", ctx, []string{"price"}).Return(int64(0), nil)

		updated, err := service.Delete(ctx, "price")
		require.NoError(t, err)
		assert.False(t, updated)
	})

	t.Run("blob drops mimetype first", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		mimeCall := store.On("Del", ctx, []string{"logo:file:mimetype"}).Return(int64(1), nil)
		store.On("Del", ctx, []string{"logo:file"}).Return(int64(1), nil).NotBefore(mimeCall)

		updated, err := service.Delete(ctx, "logo:file")
		require.NoError(t, err)
		assert.True(t, updated)
		store.AssertExpectations(t)
	})
}

func TestService_Command(t *testing.T) {
	ctx := context.Background()

	t.Run("forwards args verbatim", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Do", ctx, "HSET", []string{"h", "f", "v"}).Return(int64(1), nil)

		reply, err := service.Command(ctx, "HSET", []string{"h", "f", "v"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), reply)
		store.AssertExpectations(t)
	})

	t.Run("unsupported command", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)

		_, err := service.Command(ctx, "FLUSHALL", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, cryptosheet.ErrInvalidInput)
		assert.Equal(t, "unsupported command", err.Error())
		store.AssertNotCalled(t, "Do", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lowercase is unsupported", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)

		_, err := service.Command(ctx, "get", []string{"k"})
		assert.ErrorIs(t, err, cryptosheet.ErrInvalidInput)
		store.AssertNotCalled(t, "Do", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("backend cannot run command", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Do", ctx, "ZADD", []string{"z", "1", "a"}).
			Return(nil, errors.Join(cryptosheet.ErrNotImplemented, errors.New("ZADD")))

		_, err := service.Command(ctx, "ZADD", []string{"z", "1", "a"})
		assert.ErrorIs(t, err, cryptosheet.ErrNotImplemented)
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Do", ctx, "INCR", []string{"k"}).Return(nil, errors.New("WRONGTYPE"))

		_, err := service.Command(ctx, "INCR", []string{"k"})
		assert.ErrorIs(t, err, cryptosheet.ErrUpstream)
		assert.Contains(t, err.Error(), "WRONGTYPE")
	})
}

func TestService_StoreBlob(t *testing.T) {
	ctx := context.Background()

	t.Run("writes value then mimetype", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		data := []byte("hello")
		valueCall := store.On("Set", ctx, "doc:file", data).Return("OK", nil)
		store.On("Set", ctx, "doc:file:mimetype", []byte("text/plain")).Return("OK", nil).NotBefore(valueCall)

		res, err := service.StoreBlob(ctx, "doc:file", cryptosheet.Upload{Name: "a.txt", Mimetype: "text/plain", Data: data})
		require.NoError(t, err)
		assert.Equal(t, cryptosheet.UploadResult{Response: "OK", Mimetype: "text/plain", OriginalName: "a.txt", Size: 5}, res)
		store.AssertExpectations(t)
	})

	t.Run("default mimetype", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Set", ctx, "doc:file", []byte{1}).Return("OK", nil)
		store.On("Set", ctx, "doc:file:mimetype", []byte(cryptosheet.DefaultMimetype)).Return("OK", nil)

		res, err := service.StoreBlob(ctx, "doc:file", cryptosheet.Upload{Data: []byte{1}})
		require.NoError(t, err)
		assert.Equal(t, cryptosheet.DefaultMimetype, res.Mimetype)
	})

	t.Run("key without suffix", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)

		_, err := service.StoreBlob(ctx, "doc", cryptosheet.Upload{Data: []byte{1}})
		require.Error(t, err)
		assert.ErrorIs(t, err, cryptosheet.ErrInvalidInput)
		assert.Equal(t, "key must end with :file", err.Error())
		store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reserved key without suffix", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)

		_, err := service.StoreBlob(ctx, "health", cryptosheet.Upload{Data: []byte{1}})
		require.Error(t, err)
		assert.Equal(t, "key must end with :file", err.Error())
		store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("value write fails", func(t *testing.T) {
		t.Parallel()
		service, store := newService(t)
		store.On("Set", ctx, "doc:file", []byte{1}).Return("", errors.New("OOM"))

		_, err := service.StoreBlob(ctx, "doc:file", cryptosheet.Upload{Data: []byte{1}})
		assert.ErrorIs(t, err, cryptosheet.ErrUpstream)
		store.AssertNumberOfCalls(t, "Set", 1)
	})
}
