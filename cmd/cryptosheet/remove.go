package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/cryptosheet/config"
)

var removeCmd = &cobra.Command{
	Use:   "remove [flags] <key1> [key2] ...",
	Short: "Remove keys from the store",
	Long: `Delete keys from the store. Removing a blob key (ending in ":file")
also removes its mimetype record.

Examples:
  # Remove a single key
  cryptosheet remove price-eth

  # Remove several keys, including a blob
  cryptosheet remove price-eth logo_png:file

  # Remove quietly (suppress per-key output)
  cryptosheet remove -q price-eth`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var removeQuiet bool

func init() {
	removeCmd.Flags().BoolVarP(&removeQuiet, "quiet", "q", false, "suppress per-key output")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	service, closeStore, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	removed := 0
	notFound := 0

	for _, key := range args {
		ok, deleteErr := service.Delete(ctx, key)
		if deleteErr != nil {
			return fmt.Errorf("remove %s: %w", key, deleteErr)
		}
		if !ok {
			notFound++
			if !removeQuiet {
				slog.Warn("not found", "key", key)
			}
			continue
		}
		removed++
		if !removeQuiet {
			slog.Info("removed", "key", key)
		}
	}

	slog.Info("remove complete", "removed", removed, "not_found", notFound)
	return nil
}
