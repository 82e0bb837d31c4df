package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "cryptosheet",
	Short:   "Gated HTTP gateway for a key-value store, outbound fetches and sandboxed scripts",
	Long: `cryptosheet exposes a key-value store, an outbound HTTP proxy and a
JavaScript sandbox with crypto helpers behind one small HTTP API, guarded by
a shared secret and a per-caller rate limit.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg.Env, cfg.Log.Level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file paths, merged left to right (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("store-type", "", "store type: redis, sqlite, postgres (default: redis, env: CRYPTOSHEET_STORE_TYPE)")
	rootCmd.PersistentFlags().String("store-dsn", "", "store connection string (env: CRYPTOSHEET_STORE_DSN)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: CRYPTOSHEET_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
