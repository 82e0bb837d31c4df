package clientcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// secretHeader carries the shared secret.
const secretHeader = "X-CRYPTOSHEET-SECRET"

// Client performs operations against a cryptosheet gateway.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	// Apply defaults
	cfg = cfg.WithDefaults()

	c := &Client{
		config: &Config{
			Endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
			Secret:   cfg.Secret,
		},
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	// Apply options
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Get reads a plain value.
func (c *Client) Get(ctx context.Context, key string) (*GetResult, error) {
	if key == "" {
		return nil, fmt.Errorf("get: %w", ErrEmptyKey)
	}

	var out struct {
		Value *string `json:"value"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/basic?key="+url.QueryEscape(key), nil, &out); err != nil {
		return nil, err
	}

	return &GetResult{Key: key, Value: out.Value}, nil
}

// Set stores value at key. A JSON string is stored as its text; any other
// JSON value is stored as JSON text.
func (c *Client) Set(ctx context.Context, key string, value json.RawMessage) (*SetResult, error) {
	if key == "" {
		return nil, fmt.Errorf("set: %w", ErrEmptyKey)
	}

	body := map[string]any{"key": key, "value": value}
	var out struct {
		Response string `json:"response"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/basic", body, &out); err != nil {
		return nil, err
	}

	return &SetResult{Key: key, Response: out.Response}, nil
}

// Delete deletes one or more keys.
// Continues on error, collecting results for all keys.
func (c *Client) Delete(ctx context.Context, opts DeleteOptions) ([]DeleteResult, error) {
	if len(opts.Keys) == 0 {
		return nil, ErrNoKeys
	}

	results := make([]DeleteResult, 0, len(opts.Keys))

	for _, key := range opts.Keys {
		// Check context cancellation
		if err := ctx.Err(); err != nil {
			return results, err
		}

		var out struct {
			Updated bool `json:"updated"`
		}
		err := c.doJSON(ctx, http.MethodDelete, "/basic?key="+url.QueryEscape(key), nil, &out)
		results = append(results, DeleteResult{Key: key, Deleted: err == nil && out.Updated, Err: err})
	}

	return results, nil
}

// HasDeleteErrors returns true if any delete operation failed.
func HasDeleteErrors(results []DeleteResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Command runs an allow-listed store command.
func (c *Client) Command(ctx context.Context, cmd string, args []string) (*CommandResult, error) {
	if args == nil {
		args = []string{}
	}

	body := map[string]any{"cmd": cmd, "args": args}
	var out struct {
		Response json.RawMessage `json:"response"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/cmd", body, &out); err != nil {
		return nil, err
	}

	return &CommandResult{Cmd: cmd, Args: args, Response: out.Response}, nil
}

// Fetch sends a request through the gateway's proxy.
func (c *Client) Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("fetch: %w", ErrEmptyURL)
	}

	var out FetchResult
	if opts.Method == "" && len(opts.Body) == 0 && len(opts.Headers) == 0 {
		if err := c.doJSON(ctx, http.MethodGet, "/get?"+opts.URL, nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	body := map[string]any{"url": opts.URL, "method": opts.Method}
	if len(opts.Body) > 0 {
		body["body"] = opts.Body
	}
	if len(opts.Headers) > 0 {
		body["headers"] = opts.Headers
	}
	if err := c.doJSON(ctx, http.MethodPost, "/url", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Eval runs a script in the gateway's sandbox.
func (c *Client) Eval(ctx context.Context, opts EvalOptions) (*EvalResult, error) {
	if strings.TrimSpace(opts.Script) == "" {
		return nil, fmt.Errorf("eval: %w", ErrEmptyScript)
	}

	var out EvalResult
	if opts.Timeout <= 0 && !opts.UseEthers {
		if err := c.doJSON(ctx, http.MethodGet, "/eval?"+url.PathEscape(opts.Script), nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	body := map[string]any{
		"script":    opts.Script,
		"timeout":   opts.Timeout.Milliseconds(),
		"useEthers": opts.UseEthers,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/eval", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload stores a local file as a blob. The multipart body is streamed.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) (*UploadResult, error) {
	if opts.LocalPath == "" {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}
	if !strings.HasSuffix(opts.Key, ":file") {
		return nil, fmt.Errorf("upload: %w", ErrNotBlobKey)
	}

	file, err := os.Open(opts.LocalPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(opts.LocalPath)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadBody(mw, opts.Key, filepath.Base(opts.LocalPath), contentType, file))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var meta serverUploadResult
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &UploadResult{
		LocalPath:    opts.LocalPath,
		Key:          opts.Key,
		Response:     meta.Response,
		Mimetype:     meta.Mimetype,
		OriginalName: meta.OriginalName,
		Size:         meta.Size,
	}, nil
}

func writeUploadBody(mw *multipart.Writer, key, filename, contentType string, file io.Reader) error {
	if err := mw.WriteField("key", key); err != nil {
		return err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": "file", "filename": filename}))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}

	return mw.Close()
}

// Download downloads a blob.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	if opts.Key == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyKey)
	}
	if !strings.HasSuffix(opts.Key, ":file") {
		return nil, nil, fmt.Errorf("download: %w", ErrNotBlobKey)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/"+url.PathEscape(opts.Key), http.NoBody)
	if err != nil {
		return nil, nil, err
	}

	// Execute request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, parseServerError(resp, body)
	}

	result := &DownloadResult{
		Key:         opts.Key,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}

	// If stdout requested, return the body for the caller to handle
	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = strings.TrimSuffix(opts.Key, ":file")
	}
	result.LocalPath = localPath

	// Create parent directories if needed
	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = resp.Body.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, resp.Body)
	_ = resp.Body.Close()
	if copyErr != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// Health checks that the gateway is up. It needs no secret.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", http.NoBody)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.Endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.config.Secret != "" {
		req.Header.Set(secretHeader, c.config.Secret)
	}
	return req, nil
}

// do executes req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseServerError(resp, body)
	}
	return body, nil
}

// doJSON sends in as a JSON body (when non-nil) and decodes the response
// into out.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	raw, err := c.do(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// detectContentType returns MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}

	return mimeType
}

// parseServerError extracts the error envelope from a failed response.
func parseServerError(resp *http.Response, body []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}

	var env serverError
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Code = env.Code
		apiErr.Message = env.Error
	}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	return apiErr
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return "server error: " + strconv.Itoa(e.StatusCode) + " " + e.Code + " - " + e.Message
	}
	return "server error: " + strconv.Itoa(e.StatusCode) + " - " + e.Body
}

// Is reports whether target matches this error.
// It matches if target is an *APIError with the same StatusCode.
func (e *APIError) Is(target error) bool {
	var t *APIError
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// Sentinel errors for common API error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrBadRequest is returned for invalid input (400).
	ErrBadRequest = &APIError{StatusCode: http.StatusBadRequest}

	// ErrUnauthorized is returned when the shared secret is missing or wrong (401).
	ErrUnauthorized = &APIError{StatusCode: http.StatusUnauthorized}

	// ErrRateLimited is returned when the caller is over its budget (429).
	// RetryAfter on the returned error says when to try again.
	ErrRateLimited = &APIError{StatusCode: http.StatusTooManyRequests}

	// ErrNotImplemented is returned when the store cannot run a command (501).
	ErrNotImplemented = &APIError{StatusCode: http.StatusNotImplemented}
)
