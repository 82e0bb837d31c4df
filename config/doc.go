// Package config provides configuration loading and validation for
// cryptosheet.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (CRYPTOSHEET_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// All config keys map to environment variables with the CRYPTOSHEET_ prefix:
//   - server.port → CRYPTOSHEET_SERVER_PORT
//   - store.dsn → CRYPTOSHEET_STORE_DSN
//   - auth.secret → CRYPTOSHEET_AUTH_SECRET
//
// # Configuration Structure
//
//   - env: dev (text logs) or prod (JSON logs)
//   - server: port, timeouts, TLS files, trust_proxy_headers
//   - store: type (redis, sqlite, postgres), dsn and SQL table names
//   - auth: secret or secret_file, protect_reads
//   - ratelimit: enabled, requests per window, window, max_identities
//   - proxy: timeout, max_body_bytes, max_redirects, block_private, allowed_hosts
//   - sandbox: default_timeout, max_timeout, max_concurrent, max_call_stack
//   - upload: max_size
//   - cors: go-chi/cors options
//   - metrics: enabled
//   - log: level
package config
