package main

import (
	"encoding/json"
	"os"

	"github.com/sagarc03/cryptosheet/clientcli"
	"github.com/spf13/cobra"
)

var setRaw bool

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a value",
	Long: `Read the value stored at a key.

Prints "(nil)" when the key does not exist.

Examples:
  cryptosheet-cli get eth_price
  cryptosheet-cli get --json wallet`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value",
	Long: `Store a value at a key.

The value is parsed as JSON when it is valid JSON, so objects and arrays
are stored as JSON text. Anything else is stored as a plain string. Use
--raw to always store the argument as a string.

Examples:
  cryptosheet-cli set eth_price 3120.55
  cryptosheet-cli set wallet '{"chain":"eth","address":"0xabc"}'
  cryptosheet-cli set --raw version 1.0`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <key> [key...]",
	Aliases: []string{"rm"},
	Short:   "Delete keys",
	Long: `Delete one or more keys. Blob keys (ending in ":file") are deleted the same way.

Examples:
  cryptosheet-cli delete eth_price
  cryptosheet-cli delete a b c
  cryptosheet-cli delete -q report:file`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	setCmd.Flags().BoolVar(&setRaw, "raw", false, "store the value as a plain string")
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.Get(cmd.Context(), args[0])
	if err != nil {
		return handleError(os.Stderr, err)
	}

	return getFormatter().FormatGet(os.Stdout, result)
}

func runSet(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.Set(cmd.Context(), args[0], parseValue(args[1], setRaw))
	if err != nil {
		return handleError(os.Stderr, err)
	}

	return getFormatter().FormatSet(os.Stdout, result)
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Delete(cmd.Context(), clientcli.DeleteOptions{Keys: args})
	if err != nil {
		return handleError(os.Stderr, err)
	}

	if err := getFormatter().FormatDelete(os.Stdout, results); err != nil {
		return err
	}

	// Return error if any deletes failed
	if clientcli.HasDeleteErrors(results) {
		return &exitError{code: 1}
	}

	return nil
}

// parseValue turns a command line argument into a JSON value. Valid JSON
// passes through unless raw is set; anything else becomes a JSON string.
func parseValue(arg string, raw bool) json.RawMessage {
	if !raw && json.Valid([]byte(arg)) {
		return json.RawMessage(arg)
	}
	b, _ := json.Marshal(arg)
	return b
}
