package clientcli

import "errors"

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
)

// Errors for configuration validation.
var (
	ErrSecretRequired = errors.New("secret is required")
	ErrConfigRequired = errors.New("config is required")
)

// Errors for input validation.
var (
	ErrNoKeys      = errors.New("no keys provided")
	ErrEmptyKey    = errors.New("key is required")
	ErrEmptyPath   = errors.New("path is required")
	ErrEmptyURL    = errors.New("url is required")
	ErrEmptyScript = errors.New("script is required")
	ErrNotBlobKey  = errors.New(`key must end with ":file"`)
)
