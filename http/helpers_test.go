package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/database"
	csHTTP "github.com/sagarc03/cryptosheet/http"
	"github.com/sagarc03/cryptosheet/proxy"
	"github.com/sagarc03/cryptosheet/sandbox"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

// MockService is a mock implementation of http.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Fetch(ctx context.Context, key string) (cryptosheet.Entry, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(cryptosheet.Entry), args.Error(1)
}

func (m *MockService) Put(ctx context.Context, key string, value []byte) (string, error) {
	args := m.Called(ctx, key, value)
	return args.String(0), args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockService) Command(ctx context.Context, name string, cmdArgs []string) (any, error) {
	args := m.Called(ctx, name, cmdArgs)
	return args.Get(0), args.Error(1)
}

func (m *MockService) StoreBlob(ctx context.Context, key string, up cryptosheet.Upload) (cryptosheet.UploadResult, error) {
	args := m.Called(ctx, key, up)
	return args.Get(0).(cryptosheet.UploadResult), args.Error(1)
}

// newTestRouter wires the real service against miniredis together with a
// real sandbox executor and proxy client.
func newTestRouter(t *testing.T, cfg csHTTP.HandlerConfig) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	db, err := database.Connect(context.Background(), database.Config{
		Type: cryptosheet.StoreRedis,
		DSN:  "redis://" + mr.Addr(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := cryptosheet.NewService(db.GetStore())
	runner := sandbox.New(sandbox.Config{})
	fetcher := proxy.NewClient(proxy.Config{})

	return csHTTP.NewHandler(&cfg, svc, fetcher, runner).Router(), mr
}

func newMockRouter(cfg csHTTP.HandlerConfig, svc csHTTP.Service) http.Handler {
	return csHTTP.NewHandler(&cfg, svc, proxy.NewClient(proxy.Config{}), sandbox.New(sandbox.Config{})).Router()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(cryptosheet.SecretHeader, testSecret)
	return req
}

func authed(req *http.Request) *http.Request {
	req.Header.Set(cryptosheet.SecretHeader, testSecret)
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type filePart struct {
	Name     string
	Mimetype string
	Data     []byte
}

func uploadRequest(t *testing.T, key string, file *filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if key != "" {
		require.NoError(t, mw.WriteField("key", key))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+file.Name+`"`)
		h.Set("Content-Type", file.Mimetype)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.Data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return authed(req)
}
