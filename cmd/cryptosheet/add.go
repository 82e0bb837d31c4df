package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/config"
)

var addCmd = &cobra.Command{
	Use:   "add [flags] <file1> [file2] ...",
	Short: "Import files into the store as blobs",
	Long: `Import local files into the store as blob keys, the same records
POST /upload writes.

Each file is stored under a key derived from its path: characters a key
cannot hold are replaced with "_" and the ":file" suffix is appended, so
"img/logo.png" becomes "img_logo_png:file". The mimetype is taken from
the file extension.

Examples:
  # Add a single file
  cryptosheet add ./logo.png

  # Add with a key prefix
  cryptosheet add --prefix assets- ./logo.png

  # Add a directory recursively
  cryptosheet add -r ./assets

  # Skip keys that already hold a blob
  cryptosheet add --no-clobber ./logo.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addPrefix    string
	addRecursive bool
	addNoClobber bool
	addQuiet     bool
)

func init() {
	addCmd.Flags().StringVarP(&addPrefix, "prefix", "p", "", "key prefix")
	addCmd.Flags().BoolVarP(&addRecursive, "recursive", "r", false, "recursively add directories")
	addCmd.Flags().BoolVarP(&addNoClobber, "no-clobber", "n", false, "skip keys that already hold a blob")
	addCmd.Flags().BoolVarP(&addQuiet, "quiet", "q", false, "suppress per-file output")
	rootCmd.AddCommand(addCmd)
}

// fileEntry is a file to import and the key it is stored under.
type fileEntry struct {
	sourcePath string
	key        string
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	// Collect files from all arguments
	var files []fileEntry
	for _, arg := range args {
		entries, collectErr := collectFiles(arg, addRecursive, addPrefix)
		if collectErr != nil {
			return fmt.Errorf("collect files from %s: %w", arg, collectErr)
		}
		files = append(files, entries...)
	}

	if len(files) == 0 {
		slog.Info("no files to add")
		return nil
	}

	service, closeStore, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	added := 0
	skipped := 0

	for _, entry := range files {
		if addNoClobber {
			if _, fetchErr := service.Fetch(ctx, entry.key); fetchErr == nil {
				skipped++
				if !addQuiet {
					slog.Info("skipped (exists)", "key", entry.key)
				}
				continue
			}
		}

		data, readErr := os.ReadFile(entry.sourcePath) //nolint:gosec // Paths are given on the command line
		if readErr != nil {
			return fmt.Errorf("read %s: %w", entry.sourcePath, readErr)
		}

		res, storeErr := service.StoreBlob(ctx, entry.key, cryptosheet.Upload{
			Name:     filepath.Base(entry.sourcePath),
			Mimetype: detectContentType(entry.sourcePath),
			Data:     data,
		})
		if storeErr != nil {
			return fmt.Errorf("add %s: %w", entry.key, storeErr)
		}

		added++
		if !addQuiet {
			slog.Info("added", "key", entry.key, "mimetype", res.Mimetype, "size", res.Size)
		}
	}

	slog.Info("add complete", "added", added, "skipped", skipped)
	return nil
}

// collectFiles gathers files from a path, optionally recursively, and
// derives the key for each.
func collectFiles(path string, recursive bool, prefix string) ([]fileEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		key, keyErr := keyForPath(prefix, filepath.Base(path))
		if keyErr != nil {
			return nil, keyErr
		}
		return []fileEntry{{sourcePath: path, key: key}}, nil
	}

	// Directory
	if !recursive {
		return nil, fmt.Errorf("%s is a directory (use -r to add recursively)", path)
	}

	var entries []fileEntry
	walkErr := filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		// Compute relative path from the base directory
		relPath, relErr := filepath.Rel(path, walkPath)
		if relErr != nil {
			return relErr
		}

		key, keyErr := keyForPath(prefix, filepath.ToSlash(relPath))
		if keyErr != nil {
			return keyErr
		}

		entries = append(entries, fileEntry{sourcePath: walkPath, key: key})
		return nil
	})

	if walkErr != nil {
		return nil, walkErr
	}

	return entries, nil
}

// keyForPath maps a relative file path onto a blob key.
func keyForPath(prefix, rel string) (string, error) {
	var b strings.Builder
	for _, r := range prefix + rel {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '`':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	key := b.String() + cryptosheet.BlobSuffix
	if _, err := cryptosheet.ParseKey(key); err != nil {
		return "", fmt.Errorf("derive key for %s: %w", rel, err)
	}
	return key, nil
}

// detectContentType determines the MIME type from a file's extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return cryptosheet.DefaultMimetype
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		return cryptosheet.DefaultMimetype
	}

	return contentType
}
