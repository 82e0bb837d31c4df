package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sagarc03/cryptosheet/clientcli"
	"github.com/spf13/cobra"
)

var uploadContentType string

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> [key]",
	Short: "Upload a file as a blob",
	Long: `Upload a file as a blob.

Blob keys end in ":file". When the key is omitted it is derived from the
file name, and the suffix is added when missing.

Examples:
  cryptosheet-cli upload ./logo.png
  cryptosheet-cli upload ./report.pdf q3_report
  cryptosheet-cli upload --content-type application/json ./data abi:file`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadContentType, "content-type", "t", "", "override content-type")
}

func runUpload(cmd *cobra.Command, args []string) error {
	localPath := args[0]
	key := ""
	if len(args) > 1 {
		key = args[1]
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	opts := clientcli.UploadOptions{
		LocalPath:   localPath,
		Key:         blobKey(key, localPath),
		ContentType: uploadContentType,
	}

	result, err := client.Upload(cmd.Context(), opts)
	if err != nil {
		results := []clientcli.UploadResult{{LocalPath: localPath, Key: opts.Key, Err: err}}
		if jsonOutput {
			_ = getFormatter().FormatUpload(os.Stdout, results)
			return &exitError{code: 1}
		}
		return handleError(os.Stderr, err)
	}

	return getFormatter().FormatUpload(os.Stdout, []clientcli.UploadResult{*result})
}

// blobKey returns key with the blob suffix, deriving it from the file name
// when key is empty.
func blobKey(key, localPath string) string {
	if key == "" {
		key = strings.TrimSuffix(filepath.Base(localPath), filepath.Ext(localPath))
	}
	if !strings.HasSuffix(key, ":file") {
		key += ":file"
	}
	return key
}
