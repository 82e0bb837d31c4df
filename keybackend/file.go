package keybackend

import (
	"fmt"
	"os"
	"strings"
)

// LoadSecretFromFile reads the shared secret from path. Surrounding
// whitespace, including the trailing newline most editors and secret
// mounts add, is trimmed.
func LoadSecretFromFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("load secret %s: %w", path, ErrEmptySecret)
	}

	return secret, nil
}
