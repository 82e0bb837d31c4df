package cryptosheet

import (
	"regexp"
	"strings"
)

// BlobSuffix marks a key whose value is a binary blob.
const BlobSuffix = ":file"

const mimetypeSuffix = ":mimetype"

// SecretHeader carries the shared secret on authenticated requests.
const SecretHeader = "X-CRYPTOSHEET-SECRET"

var keyPattern = regexp.MustCompile("^[a-zA-Z0-9\\-_`]+$")

// reservedKeys are the static path segments of the HTTP surface. A user key
// with one of these names would be shadowed by the route.
var reservedKeys = map[string]struct{}{
	"a":       {},
	"health":  {},
	"basic":   {},
	"cmd":     {},
	"get":     {},
	"url":     {},
	"eval":    {},
	"upload":  {},
	"metrics": {},
}

// Key is a validated store key.
type Key string

// IsBlob reports whether the key carries the blob suffix.
func (k Key) IsBlob() bool {
	return strings.HasSuffix(string(k), BlobSuffix)
}

// MimetypeKey returns the key of the companion mimetype record.
func (k Key) MimetypeKey() string {
	return string(k) + mimetypeSuffix
}

func (k Key) String() string {
	return string(k)
}

// IsValidKey reports whether raw matches the key pattern once a single
// trailing ":file" is stripped.
func IsValidKey(raw string) bool {
	return keyPattern.MatchString(strings.TrimSuffix(raw, BlobSuffix))
}

// IsReservedKey reports whether raw collides with a reserved path segment,
// ignoring case.
func IsReservedKey(raw string) bool {
	_, ok := reservedKeys[strings.ToLower(raw)]
	return ok
}

// ParseKey validates raw and returns it as a Key. The reserved check runs
// first so that "health" reports "key is reserved" rather than passing the
// pattern.
func ParseKey(raw string) (Key, error) {
	if IsReservedKey(raw) {
		return "", BadRequest("key is reserved").With("key", raw)
	}
	if !IsValidKey(raw) {
		return "", BadRequest("invalid key").With("key", raw)
	}
	return Key(raw), nil
}

// ParseBlobKey validates raw as an upload key. The ":file" suffix is
// checked before the reserved and pattern checks, so "health" reports the
// missing suffix.
func ParseBlobKey(raw string) (Key, error) {
	if !strings.HasSuffix(raw, BlobSuffix) {
		return "", BadRequest("key must end with " + BlobSuffix).With("key", raw)
	}
	return ParseKey(raw)
}
