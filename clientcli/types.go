package clientcli

import (
	"encoding/json"
	"time"
)

// GetResult is the value stored at a key. Value is nil when the key does
// not exist.
type GetResult struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// SetResult is the store's reply to a write.
type SetResult struct {
	Key      string `json:"key"`
	Response string `json:"response"`
}

// DeleteOptions configures a delete operation.
type DeleteOptions struct {
	Keys []string
}

// DeleteResult represents the result of deleting a single key.
type DeleteResult struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
	Err     error  `json:"-"` // nil on success
}

// CommandResult is the reply to an allow-listed store command.
type CommandResult struct {
	Cmd      string          `json:"cmd"`
	Args     []string        `json:"args"`
	Response json.RawMessage `json:"response"`
}

// FetchOptions configures a proxied request. With only URL set the
// request goes through GET /get; anything else uses POST /url.
type FetchOptions struct {
	URL     string
	Method  string
	Body    json.RawMessage
	Headers map[string]string
}

// FetchResult mirrors the gateway's proxy envelope.
type FetchResult struct {
	Data       json.RawMessage   `json:"data"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// EvalOptions configures a script run. A zero Timeout runs the script
// through GET /eval with the server's default timeout.
type EvalOptions struct {
	Script    string
	Timeout   time.Duration
	UseEthers bool
}

// EvalResult holds the value the script evaluated to.
type EvalResult struct {
	Result json.RawMessage `json:"result"`
}

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath   string
	Key         string // must end with ":file"
	ContentType string // optional, auto-detect if empty
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath    string `json:"local_path"`
	Key          string `json:"key"`
	Response     string `json:"response"`
	Mimetype     string `json:"mimetype"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size_bytes"`
	Err          error  `json:"-"` // nil on success
}

// DownloadOptions configures a blob download.
type DownloadOptions struct {
	Key       string
	LocalPath string // empty = derive from key, "-" = stdout
}

// DownloadResult represents the result of downloading a blob.
type DownloadResult struct {
	Key         string `json:"key"`
	LocalPath   string `json:"local_path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
}

// serverUploadResult mirrors the JSON response of POST /upload.
type serverUploadResult struct {
	Response     string `json:"response"`
	Mimetype     string `json:"mimetype"`
	OriginalName string `json:"originalname"`
	Size         int64  `json:"size"`
}

// serverError mirrors the gateway's error envelope.
type serverError struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}
