package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the store connection",
	Long: `Connect to the configured store, ping it and validate the schema.

Exits non-zero when the store is unreachable or the SQL table does not
match the expected layout. Useful as a readiness check before serve.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	start := time.Now()
	db, err := openStore(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	service := cryptosheet.NewService(db.GetStore())
	if err := service.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("check: %w", err)
	}

	slog.Info("store ok", "type", cfg.Store.Type, "latency", time.Since(start))
	return nil
}
