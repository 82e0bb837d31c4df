package http

import (
	"errors"
	"net/http"

	"github.com/sagarc03/cryptosheet"
)

// Error codes reported in the "code" field of the error envelope.
const (
	CodeInvalidInput   = "invalid_input"
	CodeUnauthorized   = "unauthorized"
	CodeRateLimited    = "rate_limited"
	CodeNotFound       = "not_found"
	CodeMethod         = "method_not_allowed"
	CodeUpstream       = "upstream_error"
	CodeTimeout        = "timeout"
	CodeScript         = "script_error"
	CodeNotImplemented = "not_implemented"
	CodeInternal       = "internal_error"
)

var errorKinds = []struct {
	kind   error
	status int
	code   string
}{
	{cryptosheet.ErrInvalidInput, http.StatusBadRequest, CodeInvalidInput},
	{cryptosheet.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
	{cryptosheet.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
	{cryptosheet.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented},
	{cryptosheet.ErrTimeout, http.StatusInternalServerError, CodeTimeout},
	{cryptosheet.ErrScript, http.StatusInternalServerError, CodeScript},
	{cryptosheet.ErrUpstream, http.StatusInternalServerError, CodeUpstream},
	{cryptosheet.ErrNotFound, http.StatusNotFound, CodeNotFound},
}

// classify maps err to its HTTP status and envelope code.
func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}
