package cryptosheet

import (
	"errors"
	"fmt"
	"regexp"
)

// Blob is a binary value stored under a ":file" key together with its
// mimetype.
type Blob struct {
	Key      Key
	Mimetype string
	Data     []byte
}

// UploadResult describes a stored blob.
type UploadResult struct {
	Response     string `json:"response"`
	Mimetype     string `json:"mimetype"`
	OriginalName string `json:"originalname"`
	Size         int64  `json:"size"`
}

// StoreType names a store backend.
type StoreType string

const (
	StoreRedis    StoreType = "redis"
	StoreSQLite   StoreType = "sqlite"
	StorePostgres StoreType = "postgres"
)

func (s StoreType) IsValid() bool {
	switch s {
	case StoreRedis, StoreSQLite, StorePostgres:
		return true
	default:
		return false
	}
}

func ParseStoreType(s string) (StoreType, error) {
	st := StoreType(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid store type: %s (valid types: redis, sqlite, postgres)", s)
	}
	return st, nil
}

// Tables holds configurable table names for the SQL store backends.
// This allows several gateways to share one database.
type Tables struct {
	Values string `mapstructure:"values"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.Values == "" {
		return errors.New("validate tables: values table name cannot be empty")
	}

	if !IsValidTableName(t.Values) {
		return fmt.Errorf("validate tables: invalid values table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.Values)
	}

	return nil
}
