package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/proxy"
)

const maxJSONBody = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// payload is a decoded JSON object body with its fields kept raw so each
// route can report type mismatches with its own message.
type payload map[string]json.RawMessage

func decodePayload(w http.ResponseWriter, r *http.Request) (payload, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, cryptosheet.BadRequest("request body too large").With("limit", tooLarge.Limit)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}

	p := payload{}
	if len(bytes.TrimSpace(body)) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, cryptosheet.BadRequest("invalid JSON body")
	}
	return p, nil
}

// has reports whether name is present and not null.
func (p payload) has(name string) bool {
	raw, ok := p[name]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// str returns name as a string. ok is false when the field is missing or
// not a JSON string.
func (p payload) str(name string) (string, bool) {
	var s string
	if !p.has(name) || json.Unmarshal(p[name], &s) != nil {
		return "", false
	}
	return s, true
}

// value decodes name into a generic value, keeping numbers as json.Number.
func (p payload) value(name string) any {
	if !p.has(name) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(p[name]))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// scalarString renders a decoded JSON value as a command argument or
// header value.
func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}

// setRequest is POST /basic.
type setRequest struct {
	Key   string `validate:"required"`
	Value []byte `validate:"required"`
}

func parseSetRequest(p payload) (setRequest, error) {
	key, _ := p.str("key")
	req := setRequest{Key: key}

	// Falsy values (0, false, "") count as missing.
	if v := p.value("value"); truthy(v) {
		if s, ok := v.(string); ok {
			req.Value = []byte(s)
		} else {
			req.Value = bytes.TrimSpace(p["value"])
		}
	}

	if err := validate.Struct(req); err != nil {
		return setRequest{}, cryptosheet.BadRequest("need key and value in body")
	}
	return req, nil
}

// commandRequest is POST /cmd.
type commandRequest struct {
	Cmd  string `validate:"required"`
	Args []string
}

func parseCommandRequest(p payload) (commandRequest, error) {
	if !p.has("cmd") || !p.has("args") {
		return commandRequest{}, cryptosheet.BadRequest("need cmd and args")
	}

	cmd, ok := p.str("cmd")
	if !ok {
		return commandRequest{}, cryptosheet.BadRequest("cmd must be string")
	}

	items, ok := p.value("args").([]any)
	if !ok {
		return commandRequest{}, cryptosheet.BadRequest("args must be array")
	}

	req := commandRequest{Cmd: cmd, Args: make([]string, len(items))}
	for i, item := range items {
		req.Args[i] = scalarString(item)
	}

	if err := validate.Struct(req); err != nil {
		return commandRequest{}, cryptosheet.BadRequest("need cmd and args")
	}
	return req, nil
}

// urlRequest is POST /url.
type urlRequest struct {
	URL     string `validate:"required"`
	Method  string
	Body    json.RawMessage
	Headers map[string]string
}

func parseURLRequest(p payload) (proxy.Request, error) {
	target, _ := p.str("url")
	method, _ := p.str("method")
	if method == "" {
		method = "get"
	}
	req := urlRequest{URL: target, Method: method}

	if p.has("body") {
		req.Body = p["body"]
	}
	if headers, ok := p.value("headers").(map[string]any); ok {
		req.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			req.Headers[k] = scalarString(v)
		}
	}

	if err := validate.Struct(req); err != nil {
		return proxy.Request{}, cryptosheet.BadRequest("need url in body")
	}

	return proxy.Request{URL: req.URL, Method: req.Method, Body: req.Body, Headers: req.Headers}, nil
}

// evalRequest is POST /eval.
type evalRequest struct {
	Script    string `validate:"required"`
	UseEthers bool
	Timeout   any
}

func parseEvalRequest(p payload) (evalRequest, error) {
	script, _ := p.str("script")
	req := evalRequest{
		Script:    script,
		UseEthers: truthy(p.value("useEthers")),
		Timeout:   p.value("timeout"),
	}

	if err := validate.Struct(req); err != nil || strings.TrimSpace(req.Script) == "" {
		return evalRequest{}, cryptosheet.BadRequest("no script provided")
	}
	return req, nil
}
