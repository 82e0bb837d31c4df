package clientcli_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sagarc03/cryptosheet/clientcli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestClient(t *testing.T, handler http.HandlerFunc) *clientcli.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := clientcli.New(&clientcli.Config{Endpoint: server.URL + "/", Secret: testSecret})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestNew(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := clientcli.New(nil)
		assert.ErrorIs(t, err, clientcli.ErrConfigRequired)
	})

	t.Run("empty endpoint uses default", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("options", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{}, clientcli.WithHTTPClient(&http.Client{}), clientcli.WithTimeout(time.Second))
		require.NoError(t, err)
		assert.NotNil(t, client)
	})
}

func TestClient_SecretHeader(t *testing.T) {
	t.Parallel()

	t.Run("sent when configured", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, testSecret, r.Header.Get("X-CRYPTOSHEET-SECRET"))
			writeJSON(w, http.StatusOK, map[string]any{"value": nil})
		})
		_, err := client.Get(context.Background(), "k")
		require.NoError(t, err)
	})

	t.Run("omitted in open mode", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, present := r.Header["X-Cryptosheet-Secret"]
			assert.False(t, present)
			writeJSON(w, http.StatusOK, map[string]any{"value": nil})
		}))
		t.Cleanup(server.Close)

		client, err := clientcli.New(&clientcli.Config{Endpoint: server.URL})
		require.NoError(t, err)
		_, err = client.Get(context.Background(), "k")
		require.NoError(t, err)
	})
}

func TestClient_Health(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("OK"))
	})
	assert.NoError(t, client.Health(context.Background()))
}

func TestClient_Get(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/basic", r.URL.Path)
		switch r.URL.Query().Get("key") {
		case "price":
			writeJSON(w, http.StatusOK, map[string]any{"value": "42"})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"value": nil})
		}
	})

	res, err := client.Get(context.Background(), "price")
	require.NoError(t, err)
	require.NotNil(t, res.Value)
	assert.Equal(t, "42", *res.Value)

	res, err = client.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, res.Value)

	_, err = client.Get(context.Background(), "")
	assert.ErrorIs(t, err, clientcli.ErrEmptyKey)
}

func TestClient_Set(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/basic", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body := decodeBody(t, r)
		assert.Equal(t, "wallet", body["key"])
		assert.Equal(t, map[string]any{"chain": "eth"}, body["value"])
		writeJSON(w, http.StatusOK, map[string]any{"response": "OK"})
	})

	res, err := client.Set(context.Background(), "wallet", json.RawMessage(`{"chain":"eth"}`))
	require.NoError(t, err)
	assert.Equal(t, &clientcli.SetResult{Key: "wallet", Response: "OK"}, res)
}

func TestClient_Delete(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Query().Get("key") {
		case "a":
			writeJSON(w, http.StatusOK, map[string]any{"updated": true})
		case "b":
			writeJSON(w, http.StatusOK, map[string]any{"updated": false})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "key is reserved", "code": "invalid_input"})
		}
	})

	results, err := client.Delete(context.Background(), clientcli.DeleteOptions{Keys: []string{"a", "b", "health"}})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Deleted)
	assert.NoError(t, results[0].Err)
	assert.False(t, results[1].Deleted)
	assert.NoError(t, results[1].Err)
	assert.ErrorIs(t, results[2].Err, clientcli.ErrBadRequest)
	assert.True(t, clientcli.HasDeleteErrors(results))
	assert.False(t, clientcli.HasDeleteErrors(results[:2]))

	_, err = client.Delete(context.Background(), clientcli.DeleteOptions{})
	assert.ErrorIs(t, err, clientcli.ErrNoKeys)
}

func TestClient_Command(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cmd", r.URL.Path)
		body := decodeBody(t, r)
		switch body["cmd"] {
		case "INCR":
			assert.Equal(t, []any{"counter"}, body["args"])
			writeJSON(w, http.StatusOK, map[string]any{"response": 1})
		case "KEYS":
			assert.Equal(t, []any{}, body["args"])
			writeJSON(w, http.StatusNotImplemented, map[string]any{"error": "unsupported command", "code": "not_implemented", "cmd": "KEYS"})
		}
	})

	res, err := client.Command(context.Background(), "INCR", []string{"counter"})
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(res.Response))

	_, err = client.Command(context.Background(), "KEYS", nil)
	assert.ErrorIs(t, err, clientcli.ErrNotImplemented)

	var apiErr *clientcli.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not_implemented", apiErr.Code)
	assert.Equal(t, "unsupported command", apiErr.Message)
}

func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get":
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "https://api.example.com/price?sym=eth", r.URL.RawQuery)
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"eth": 1}, "status": 200, "statusText": "OK"})
		case "/url":
			body := decodeBody(t, r)
			assert.Equal(t, "https://api.example.com/orders", body["url"])
			assert.Equal(t, "post", body["method"])
			assert.Equal(t, map[string]any{"qty": float64(2)}, body["body"])
			assert.Equal(t, map[string]any{"x-api-key": "k"}, body["headers"])
			writeJSON(w, http.StatusOK, map[string]any{"data": "created", "status": 201, "statusText": "Created"})
		}
	})

	res, err := client.Fetch(context.Background(), clientcli.FetchOptions{URL: "https://api.example.com/price?sym=eth"})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.JSONEq(t, `{"eth":1}`, string(res.Data))

	res, err = client.Fetch(context.Background(), clientcli.FetchOptions{
		URL:     "https://api.example.com/orders",
		Method:  "post",
		Body:    json.RawMessage(`{"qty":2}`),
		Headers: map[string]string{"x-api-key": "k"},
	})
	require.NoError(t, err)
	assert.Equal(t, 201, res.Status)
	assert.Equal(t, "Created", res.StatusText)

	_, err = client.Fetch(context.Background(), clientcli.FetchOptions{})
	assert.ErrorIs(t, err, clientcli.ErrEmptyURL)
}

func TestClient_Eval(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eval", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			script, err := url.PathUnescape(r.URL.RawQuery)
			require.NoError(t, err)
			assert.Equal(t, "_.sum([1, 2])", script)
			writeJSON(w, http.StatusOK, map[string]any{"result": 3})
		case http.MethodPost:
			body := decodeBody(t, r)
			assert.Equal(t, "ethers.utils.id('a')", body["script"])
			assert.Equal(t, float64(1500), body["timeout"])
			assert.Equal(t, true, body["useEthers"])
			writeJSON(w, http.StatusOK, map[string]any{"result": "0x3ac2"})
		}
	})

	res, err := client.Eval(context.Background(), clientcli.EvalOptions{Script: "_.sum([1, 2])"})
	require.NoError(t, err)
	assert.JSONEq(t, `3`, string(res.Result))

	res, err = client.Eval(context.Background(), clientcli.EvalOptions{
		Script:    "ethers.utils.id('a')",
		Timeout:   1500 * time.Millisecond,
		UseEthers: true,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `"0x3ac2"`, string(res.Result))

	_, err = client.Eval(context.Background(), clientcli.EvalOptions{Script: "  "})
	assert.ErrorIs(t, err, clientcli.ErrEmptyScript)
}

func TestClient_Upload(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "report:file", r.FormValue("key"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(content))
		assert.Equal(t, "report.txt", header.Filename)
		assert.Equal(t, "text/plain; charset=utf-8", header.Header.Get("Content-Type"))

		writeJSON(w, http.StatusOK, map[string]any{
			"response":     "OK",
			"mimetype":     header.Header.Get("Content-Type"),
			"originalname": header.Filename,
			"size":         len(content),
		})
	})

	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	res, err := client.Upload(context.Background(), clientcli.UploadOptions{LocalPath: path, Key: "report:file"})
	require.NoError(t, err)
	assert.Equal(t, "OK", res.Response)
	assert.Equal(t, "report.txt", res.OriginalName)
	assert.Equal(t, int64(11), res.Size)

	_, err = client.Upload(context.Background(), clientcli.UploadOptions{LocalPath: path, Key: "report"})
	assert.ErrorIs(t, err, clientcli.ErrNotBlobKey)

	_, err = client.Upload(context.Background(), clientcli.UploadOptions{Key: "report:file"})
	assert.ErrorIs(t, err, clientcli.ErrEmptyPath)

	_, err = client.Upload(context.Background(), clientcli.UploadOptions{LocalPath: filepath.Join(t.TempDir(), "nope"), Key: "x:file"})
	assert.Error(t, err)
}

func TestClient_Download(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path != "/logo:file" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "key does not exist", "code": "invalid_input"})
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	})

	t.Run("to file", func(t *testing.T) {
		t.Parallel()
		dest := filepath.Join(t.TempDir(), "sub", "logo.png")

		res, rc, err := client.Download(context.Background(), clientcli.DownloadOptions{Key: "logo:file", LocalPath: dest})
		require.NoError(t, err)
		assert.Nil(t, rc)
		assert.Equal(t, "image/png", res.ContentType)
		assert.Equal(t, int64(7), res.Size)

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "PNGDATA", string(data))
	})

	t.Run("to stdout", func(t *testing.T) {
		t.Parallel()
		res, rc, err := client.Download(context.Background(), clientcli.DownloadOptions{Key: "logo:file", LocalPath: "-"})
		require.NoError(t, err)
		require.NotNil(t, rc)
		defer func() { _ = rc.Close() }()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "PNGDATA", string(data))
		assert.Equal(t, "-", res.LocalPath)
	})

	t.Run("missing blob", func(t *testing.T) {
		t.Parallel()
		_, _, err := client.Download(context.Background(), clientcli.DownloadOptions{Key: "gone:file", LocalPath: "-"})
		assert.ErrorIs(t, err, clientcli.ErrBadRequest)

		var apiErr *clientcli.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "key does not exist", apiErr.Message)
	})

	t.Run("not a blob key", func(t *testing.T) {
		t.Parallel()
		_, _, err := client.Download(context.Background(), clientcli.DownloadOptions{Key: "logo"})
		assert.ErrorIs(t, err, clientcli.ErrNotBlobKey)
	})
}

func TestClient_APIErrors(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("key") {
		case "limited":
			w.Header().Set("Retry-After", "42")
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "Too many requests", "code": "rate_limited", "retryAfter": 42})
		case "denied":
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid X-CRYPTOSHEET-SECRET", "code": "unauthorized"})
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
		}
	})

	_, err := client.Get(context.Background(), "limited")
	assert.ErrorIs(t, err, clientcli.ErrRateLimited)
	var apiErr *clientcli.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 42*time.Second, apiErr.RetryAfter)
	assert.Equal(t, "rate_limited", apiErr.Code)

	_, err = client.Get(context.Background(), "denied")
	assert.ErrorIs(t, err, clientcli.ErrUnauthorized)
	assert.NotErrorIs(t, err, clientcli.ErrRateLimited)

	_, err = client.Get(context.Background(), "other")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "bad gateway")
}

func TestClient_ContextCancelled(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"updated": true})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := client.Delete(ctx, clientcli.DeleteOptions{Keys: []string{"a", "b"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
