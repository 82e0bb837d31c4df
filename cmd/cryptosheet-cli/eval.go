package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sagarc03/cryptosheet/clientcli"
	"github.com/spf13/cobra"
)

var (
	evalFile    string
	evalTimeout time.Duration
	evalEthers  bool
)

var evalCmd = &cobra.Command{
	Use:   "eval [script]",
	Short: "Run a script in the gateway sandbox",
	Long: `Run JavaScript in the gateway's sandbox and print its result.

The script comes from the argument, from --file, or from stdin when the
argument is "-". crypto and lodash (also bound to _) are always available.
Pass --ethers to load the ethers helpers.

Examples:
  cryptosheet-cli eval '_.sum([1, 2, 3])'
  cryptosheet-cli eval --ethers "ethers.utils.id('hello')"
  cryptosheet-cli eval -f script.js --timeout 2s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVarP(&evalFile, "file", "f", "", "read the script from a file")
	evalCmd.Flags().DurationVarP(&evalTimeout, "timeout", "t", 0, "script timeout (default: the gateway's default)")
	evalCmd.Flags().BoolVar(&evalEthers, "ethers", false, "load the ethers helpers")
}

func runEval(cmd *cobra.Command, args []string) error {
	script, err := readScript(args, evalFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.Eval(cmd.Context(), clientcli.EvalOptions{
		Script:    script,
		Timeout:   evalTimeout,
		UseEthers: evalEthers,
	})
	if err != nil {
		return handleError(os.Stderr, err)
	}

	return getFormatter().FormatEval(os.Stdout, result)
}

func readScript(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", fmt.Errorf("pass either a script or --file, not both")
	case file != "":
		b, err := os.ReadFile(file) //#nosec G304 -- file is user-provided input
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		return string(b), nil
	case len(args) == 0:
		return "", clientcli.ErrEmptyScript
	case args[0] == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		return string(b), nil
	default:
		return args[0], nil
	}
}
