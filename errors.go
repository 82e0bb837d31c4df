package cryptosheet

import (
	"errors"
	"maps"
)

var (
	// ErrNotFound is returned when a key does not exist in the store
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when request validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when the shared secret does not match
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited is returned when a caller exceeds its request budget
	ErrRateLimited = errors.New("rate limited")
	// ErrUpstream is returned when the store or a proxied endpoint fails
	ErrUpstream = errors.New("upstream failure")
	// ErrTimeout is returned when a sandboxed script exceeds its deadline
	ErrTimeout = errors.New("execution timed out")
	// ErrScript is returned when a sandboxed script fails to compile or throws
	ErrScript = errors.New("script error")
	// ErrNotImplemented is returned when a store backend cannot run a command
	ErrNotImplemented = errors.New("not implemented")
)

// RequestError is an error reported back to the caller. Message is shown
// verbatim and Fields are echoed next to it in the error envelope.
//
// Kind is one of the sentinel errors above, so errors.Is works against it.
type RequestError struct {
	Kind    error
	Message string
	Fields  map[string]any
	Err     error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// With returns a copy of e with the key/value pair added to Fields.
func (e *RequestError) With(key string, value any) *RequestError {
	out := *e
	out.Fields = make(map[string]any, len(e.Fields)+1)
	maps.Copy(out.Fields, e.Fields)
	out.Fields[key] = value
	return &out
}

// BadRequest builds an ErrInvalidInput request error.
func BadRequest(message string) *RequestError {
	return &RequestError{Kind: ErrInvalidInput, Message: message}
}

// Upstream builds an ErrUpstream request error whose message is taken from err.
func Upstream(err error) *RequestError {
	return &RequestError{Kind: ErrUpstream, Message: err.Error(), Err: err}
}
