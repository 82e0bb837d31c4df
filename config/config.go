package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/database"
	cryptohttp "github.com/sagarc03/cryptosheet/http"
	"github.com/sagarc03/cryptosheet/keybackend"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for cryptosheet.
type Config struct {
	Env       string                `mapstructure:"env" validate:"required,oneof=dev prod"`
	Server    ServerConfig          `mapstructure:"server"`
	Store     database.Config       `mapstructure:"store"`
	Auth      AuthConfig            `mapstructure:"auth"`
	RateLimit RateLimitConfig       `mapstructure:"ratelimit"`
	Proxy     ProxyConfig           `mapstructure:"proxy"`
	Sandbox   SandboxConfig         `mapstructure:"sandbox"`
	Upload    UploadConfig          `mapstructure:"upload"`
	CORS      cryptohttp.CORSConfig `mapstructure:"cors"`
	Metrics   MetricsConfig         `mapstructure:"metrics"`
	Log       LogConfig             `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
	TrustProxyHeaders bool          `mapstructure:"trust_proxy_headers"`
	TLS               TLSConfig     `mapstructure:"tls"`
}

// TLSConfig enables HTTPS when both files are set.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file" validate:"required_with=KeyFile"`
	KeyFile  string `mapstructure:"key_file" validate:"required_with=CertFile"`
}

// Enabled reports whether TLS is configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	keybackend.SecretConfig `mapstructure:",squash"`
	ProtectReads            bool `mapstructure:"protect_reads"`
}

// RateLimitConfig holds the per-identity request budget.
type RateLimitConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Requests      int           `mapstructure:"requests" validate:"min=1"`
	Window        time.Duration `mapstructure:"window" validate:"min=1ms"`
	MaxIdentities int           `mapstructure:"max_identities" validate:"min=1"`
}

// ProxyConfig holds outbound request settings.
type ProxyConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" validate:"min=1ms"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" validate:"min=1"`
	MaxRedirects int           `mapstructure:"max_redirects" validate:"min=0"`
	BlockPrivate bool          `mapstructure:"block_private"`
	AllowedHosts []string      `mapstructure:"allowed_hosts"`
}

// SandboxConfig holds script execution limits.
type SandboxConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout" validate:"min=1ms"`
	MaxTimeout     time.Duration `mapstructure:"max_timeout" validate:"min=1ms"`
	MaxConcurrent  int64         `mapstructure:"max_concurrent" validate:"min=1"`
	MaxCallStack   int           `mapstructure:"max_call_stack" validate:"min=1"`
}

// UploadConfig holds blob upload limits.
type UploadConfig struct {
	MaxSize int64 `mapstructure:"max_size" validate:"min=1"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"store-type":    "store.type",
	"store-dsn":     "store.dsn",
	"port":          "server.port",
	"secret-file":   "auth.secret_file",
	"protect-reads": "auth.protect_reads",
	"log-level":     "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// needs a default so that AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.trust_proxy_headers", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")

	v.SetDefault("store.type", string(cryptosheet.StoreRedis))
	v.SetDefault("store.dsn", "redis://localhost:6379/0")
	v.SetDefault("store.tables.values", "cryptosheet_values")
	v.SetDefault("store.auto_migrate", true)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.secret_file", "")
	v.SetDefault("auth.protect_reads", true)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests", 60)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("ratelimit.max_identities", 100_000)

	v.SetDefault("proxy.timeout", "10s")
	v.SetDefault("proxy.max_body_bytes", 10<<20)
	v.SetDefault("proxy.max_redirects", 5)
	v.SetDefault("proxy.block_private", false)
	v.SetDefault("proxy.allowed_hosts", []string{})

	v.SetDefault("sandbox.default_timeout", "30s")
	v.SetDefault("sandbox.max_timeout", "5s")
	v.SetDefault("sandbox.max_concurrent", 16)
	v.SetDefault("sandbox.max_call_stack", 1024)

	v.SetDefault("upload.max_size", cryptohttp.DefaultMaxUploadBytes)

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", cryptosheet.SecretHeader})
	v.SetDefault("cors.exposed_headers", []string{"RateLimit-Limit", "RateLimit-Remaining", "Retry-After"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("metrics.enabled", false)

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("CRYPTOSHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the rules that span fields.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if !c.Store.Type.IsValid() {
		return fmt.Errorf("validate config: unsupported store type: %s", c.Store.Type)
	}
	if c.Store.DSN == "" {
		return errors.New("validate config: store.dsn is required")
	}
	if c.Store.Type != cryptosheet.StoreRedis {
		if err := c.Store.Tables.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}

	return nil
}
