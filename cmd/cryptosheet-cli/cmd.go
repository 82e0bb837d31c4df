package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var cmdCmd = &cobra.Command{
	Use:   "cmd <command> [arg...]",
	Short: "Run an allow-listed store command",
	Long: `Run one of the store commands the gateway allows, such as INCR,
HSET, HGETALL or EXPIRE. The command name is upper-cased before sending
and arguments are sent as strings.

Examples:
  cryptosheet-cli cmd incr visits
  cryptosheet-cli cmd hset wallet chain eth
  cryptosheet-cli cmd --json hgetall wallet`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCmd,
}

func init() {
	// Arguments such as "-1" belong to the store command.
	cmdCmd.Flags().SetInterspersed(false)
}

func runCmd(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.Command(cmd.Context(), strings.ToUpper(args[0]), args[1:])
	if err != nil {
		return handleError(os.Stderr, err)
	}

	return getFormatter().FormatCommand(os.Stdout, result)
}
