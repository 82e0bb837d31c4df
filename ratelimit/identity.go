package ratelimit

import (
	"encoding/hex"
	"net"
	"net/http"

	"github.com/zeebo/blake3"
)

// Identity is a caller fingerprint used as the limiter bucket key.
type Identity string

// FallbackIdentity is the shared bucket for requests without a client
// address.
const FallbackIdentity Identity = ""

// Identify derives the caller identity from the client address alone.
// Request headers are caller controlled and never take part. RemoteAddr is
// used as-is; put a real-IP middleware in front when the gateway runs
// behind a trusted proxy.
func Identify(r *http.Request) Identity {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return FallbackIdentity
	}

	sum := blake3.Sum256([]byte(host))
	return Identity(hex.EncodeToString(sum[:16]))
}

// Short returns a log-friendly prefix of the identity.
func (id Identity) Short() string {
	if id == FallbackIdentity {
		return "fallback"
	}
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}
