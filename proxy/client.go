package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sagarc03/cryptosheet"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 10 << 20
	DefaultMaxRedirects = 5
)

// Request is an outbound request. Body holds a JSON value: a JSON string is
// sent as its text, any other value is sent JSON-encoded with a JSON content
// type unless Headers sets one.
type Request struct {
	URL     string
	Method  string
	Body    json.RawMessage
	Headers map[string]string
}

// Response is the proxied response. Data is the decoded JSON body when the
// body is valid JSON and the body text otherwise.
type Response struct {
	Data       any               `json:"data"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
}

// Config configures a Client. Zero Timeout and MaxBodyBytes fall back to
// the defaults.
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	// MaxRedirects caps followed redirects. Zero returns the first 3xx
	// response as is; a negative value uses DefaultMaxRedirects.
	MaxRedirects int
	Policy       *Policy
}

// Client sends policy-checked outbound requests. Any upstream status is a
// successful fetch; only transport failures are errors.
type Client struct {
	http    *http.Client
	policy  *Policy
	maxBody int64
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MaxRedirects < 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.Policy == nil {
		cfg.Policy = &Policy{}
	}

	dialer := &net.Dialer{
		Timeout: cfg.Timeout,
		Control: cfg.Policy.control,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil

	policy := cfg.Policy
	maxRedirects := cfg.MaxRedirects

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if maxRedirects == 0 {
					return http.ErrUseLastResponse
				}
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				if _, err := policy.CheckURL(req.URL.String()); err != nil {
					return fmt.Errorf("redirect to %s: %w", req.URL.Redacted(), ErrBlockedAddress)
				}
				return nil
			},
		},
		policy:  policy,
		maxBody: cfg.MaxBodyBytes,
	}
}

// Policy returns the client's policy.
func (c *Client) Policy() *Policy {
	return c.policy
}

// Get proxies a plain GET to rawURL.
func (c *Client) Get(ctx context.Context, rawURL string) (Response, error) {
	return c.Do(ctx, Request{URL: rawURL, Method: "get"})
}

// Do validates req against the policy and sends it.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	u, err := c.policy.CheckURL(req.URL)
	if err != nil {
		return Response{}, err
	}

	method, err := c.policy.CheckMethod(req.Method)
	if err != nil {
		return Response{}, err
	}

	body, isJSON, err := encodeBody(req.Body)
	if err != nil {
		return Response{}, cryptosheet.BadRequest("invalid body").With("url", req.URL)
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), u.String(), body)
	if err != nil {
		return Response{}, cryptosheet.BadRequest("malformed url").With("url", req.URL)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if isJSON && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, ErrBlockedAddress) {
			return Response{}, cryptosheet.BadRequest("address not allowed").With("url", req.URL)
		}
		return Response{}, cryptosheet.Upstream(fmt.Errorf("proxy %s %s: %w", method, u.Redacted(), err))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return Response{}, cryptosheet.Upstream(fmt.Errorf("proxy %s %s: read body: %w", method, u.Redacted(), err))
	}
	if int64(len(raw)) > c.maxBody {
		return Response{}, cryptosheet.Upstream(fmt.Errorf("proxy %s %s: response body exceeds %d bytes", method, u.Redacted(), c.maxBody))
	}

	return Response{
		Data:       decodeData(raw),
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    flattenHeaders(resp.Header),
	}, nil
}

func encodeBody(raw json.RawMessage) (io.Reader, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, false, fmt.Errorf("decode body: %w", err)
		}
		return strings.NewReader(s), false, nil
	}

	if !json.Valid(trimmed) {
		return nil, false, errors.New("decode body: invalid json")
	}
	return bytes.NewReader(trimmed), true, nil
}

func decodeData(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return string(raw)
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	return string(raw)
}

// statusText returns the reason phrase sent by the upstream, falling back
// to the standard text for the code.
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}
