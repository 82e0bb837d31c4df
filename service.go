package cryptosheet

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMimetype is recorded for uploads that do not declare a content type.
const DefaultMimetype = "application/octet-stream"

// Entry is the result of a fetch. For blob keys Mimetype is set and Value
// holds the raw bytes; for plain keys Exists reports whether the key was
// present.
type Entry struct {
	Key      Key
	Value    []byte
	Exists   bool
	Mimetype string
}

// Upload is a blob received from a caller.
type Upload struct {
	Name     string
	Mimetype string
	Data     []byte
}

// Service validates caller input and dispatches it to a Store. Every key is
// checked before the store is touched.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Fetch returns the value stored at raw.
//
// For ":file" keys the mimetype record is read first; a missing mimetype
// means the blob does not exist and is reported as a bad request even if a
// raw value happens to be present.
func (s *Service) Fetch(ctx context.Context, raw string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, fmt.Errorf("fetch: %w", err)
	}

	key, err := ParseKey(raw)
	if err != nil {
		return Entry{}, err
	}

	if key.IsBlob() {
		return s.fetchBlob(ctx, key)
	}

	value, err := s.store.Get(ctx, key.String())
	if errors.Is(err, ErrNotFound) {
		return Entry{Key: key}, nil
	}
	if err != nil {
		return Entry{}, Upstream(fmt.Errorf("fetch %s: %w", key, err))
	}

	return Entry{Key: key, Value: value, Exists: true}, nil
}

func (s *Service) fetchBlob(ctx context.Context, key Key) (Entry, error) {
	mimetype, err := s.store.Get(ctx, key.MimetypeKey())
	if errors.Is(err, ErrNotFound) || (err == nil && len(mimetype) == 0) {
		return Entry{}, BadRequest("key does not exist").With("key", key.String())
	}
	if err != nil {
		return Entry{}, Upstream(fmt.Errorf("fetch %s: %w", key.MimetypeKey(), err))
	}

	value, err := s.store.Get(ctx, key.String())
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Entry{}, Upstream(fmt.Errorf("fetch %s: %w", key, err))
	}

	return Entry{Key: key, Value: value, Exists: true, Mimetype: string(mimetype)}, nil
}

// Put stores value at raw and returns the store's reply.
func (s *Service) Put(ctx context.Context, raw string, value []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("put: %w", err)
	}

	key, err := ParseKey(raw)
	if err != nil {
		return "", err
	}

	reply, err := s.store.Set(ctx, key.String(), value)
	if err != nil {
		return "", Upstream(fmt.Errorf("put %s: %w", key, err))
	}

	return reply, nil
}

// Delete removes raw and reports whether a record was actually removed.
// Deleting a ":file" key also drops its mimetype record; the mimetype goes
// first so a concurrent fetch never sees a mimetype without a value.
func (s *Service) Delete(ctx context.Context, raw string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}

	key, err := ParseKey(raw)
	if err != nil {
		return false, err
	}

	if key.IsBlob() {
		if _, err := s.store.Del(ctx, key.MimetypeKey()); err != nil {
			return false, Upstream(fmt.Errorf("delete %s: %w", key.MimetypeKey(), err))
		}
	}

	n, err := s.store.Del(ctx, key.String())
	if err != nil {
		return false, Upstream(fmt.Errorf("delete %s: %w", key, err))
	}

	return n == 1, nil
}

// Command runs an allow-listed store command with args passed through
// verbatim.
func (s *Service) Command(ctx context.Context, name string, args []string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("command: %w", err)
	}

	if !IsAllowedCommand(name) {
		return nil, BadRequest("unsupported command").With("cmd", name)
	}

	reply, err := s.store.Do(ctx, name, args...)
	if errors.Is(err, ErrNotImplemented) {
		return nil, &RequestError{Kind: ErrNotImplemented, Message: err.Error(), Err: err, Fields: map[string]any{"cmd": name}}
	}
	if err != nil {
		return nil, Upstream(fmt.Errorf("command %s: %w", name, err))
	}

	return reply, nil
}

// StoreBlob stores an uploaded blob under raw, which must carry the
// ":file" suffix. The value is written before the mimetype record so the
// blob only becomes visible once both are present.
func (s *Service) StoreBlob(ctx context.Context, raw string, up Upload) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{}, fmt.Errorf("store blob: %w", err)
	}

	key, err := ParseBlobKey(raw)
	if err != nil {
		return UploadResult{}, err
	}

	mimetype := up.Mimetype
	if mimetype == "" {
		mimetype = DefaultMimetype
	}

	reply, err := s.store.Set(ctx, key.String(), up.Data)
	if err != nil {
		return UploadResult{}, Upstream(fmt.Errorf("store blob %s: %w", key, err))
	}

	if _, err := s.store.Set(ctx, key.MimetypeKey(), []byte(mimetype)); err != nil {
		return UploadResult{}, Upstream(fmt.Errorf("store blob %s: %w", key.MimetypeKey(), err))
	}

	return UploadResult{
		Response:     reply,
		Mimetype:     mimetype,
		OriginalName: up.Name,
		Size:         int64(len(up.Data)),
	}, nil
}

// Ping checks the store connection.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}
