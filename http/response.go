package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/cryptosheet"
)

// WriteError writes the JSON error envelope: {"error", "code", ...fields}.
// Fields never override error or code.
func WriteError(w http.ResponseWriter, status int, code, message string, fields map[string]any) {
	body := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		body[k] = v
	}
	body["error"] = message
	body["code"] = code

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the error envelope for err. Request errors surface
// their message and fields; anything else is reported as an internal
// error without details.
func HandleError(w http.ResponseWriter, err error) {
	status, code := classify(err)

	if status >= http.StatusInternalServerError {
		slog.Error("request error", "error", err, "code", code)
	} else {
		slog.Debug("request rejected", "error", err, "code", code)
	}

	var reqErr *cryptosheet.RequestError
	if !errors.As(err, &reqErr) {
		WriteError(w, status, code, "Internal server error", nil)
		return
	}

	WriteError(w, status, code, reqErr.Message, reqErr.Fields)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
