// Package keybackend resolves the gateway's shared secret.
package keybackend

// SecretConfig holds configuration for loading the shared secret.
type SecretConfig struct {
	Secret string `mapstructure:"secret"`      // Inline secret from config or env
	File   string `mapstructure:"secret_file"` // Path to a file holding the secret
}

// ResolveSecret returns the configured shared secret. The file takes
// precedence over the inline value when both are set. An empty result
// means no secret is configured and the gateway runs in open mode.
func ResolveSecret(cfg SecretConfig) (string, error) {
	if cfg.File != "" {
		return LoadSecretFromFile(cfg.File)
	}
	return cfg.Secret, nil
}
