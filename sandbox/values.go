package sandbox

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/dop251/goja"
)

// throw raises a TypeError inside the running script.
func throw(vm *goja.Runtime, format string, args ...any) {
	panic(vm.NewTypeError(fmt.Sprintf(format, args...)))
}

// bytesArg decodes a string argument using enc ("utf8", "hex" or "base64").
// A "0x" prefix is accepted for hex input.
func bytesArg(vm *goja.Runtime, v goja.Value, enc string) []byte {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		throw(vm, "data argument is required")
	}

	s := v.String()
	switch strings.ToLower(enc) {
	case "", "utf8", "utf-8":
		return []byte(s)
	case "hex":
		b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil {
			throw(vm, "invalid hex data: %s", err)
		}
		return b
	case "base64":
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			throw(vm, "invalid base64 data: %s", err)
		}
		return b
	default:
		throw(vm, "unsupported encoding: %s", enc)
	}
	return nil
}

// encodeBytes renders b using enc ("hex" by default, or "base64").
func encodeBytes(vm *goja.Runtime, b []byte, enc string) string {
	switch strings.ToLower(enc) {
	case "", "hex":
		return hex.EncodeToString(b)
	case "base64":
		return base64.StdEncoding.EncodeToString(b)
	default:
		throw(vm, "unsupported encoding: %s", enc)
	}
	return ""
}

// optString returns v as a string, or "" when it is undefined or null.
func optString(v goja.Value) string {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

// toFloat converts an exported number to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	default:
		return 0, false
	}
}
