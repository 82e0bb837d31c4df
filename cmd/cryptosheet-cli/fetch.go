package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sagarc03/cryptosheet/clientcli"
	"github.com/spf13/cobra"
)

var (
	fetchMethod  string
	fetchData    string
	fetchHeaders []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Send a request through the gateway proxy",
	Long: `Send an HTTP request to an allowed host through the gateway.

With no method, body or headers the request uses GET /get. Otherwise it is
sent as a structured request through POST /url.

Examples:
  cryptosheet-cli fetch 'https://api.coingecko.com/api/v3/ping'
  cryptosheet-cli fetch -X post -d '{"qty":2}' -H 'x-api-key: k' https://api.example.com/orders`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchMethod, "method", "X", "", "HTTP method")
	fetchCmd.Flags().StringVarP(&fetchData, "data", "d", "", "request body (JSON or plain text)")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaders, "header", "H", nil, "request header as 'Name: value' (repeatable)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	headers, err := parseHeaders(fetchHeaders)
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	opts := clientcli.FetchOptions{
		URL:     args[0],
		Method:  strings.ToLower(fetchMethod),
		Headers: headers,
	}
	if fetchData != "" {
		opts.Body = parseValue(fetchData, false)
	}

	result, err := client.Fetch(cmd.Context(), opts)
	if err != nil {
		return handleError(os.Stderr, err)
	}

	return getFormatter().FormatFetch(os.Stdout, result)
}

func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
