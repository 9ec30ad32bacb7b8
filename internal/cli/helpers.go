package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/banchi-geo/banchi/pkg/client"
	"github.com/banchi-geo/banchi/pkg/geocoder"
)

// setupLogging maps the --debug flag onto the default logger.
func setupLogging(cmd *cobra.Command) {
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// openTree picks the address tree provider. An explicit --db-dir wins,
// then an explicit --url, then the BANCHI_DB_DIR and BANCHI_SERVER_URL
// environment variables, then the per-user default directory.
func openTree(cmd *cobra.Command) (geocoder.Tree, error) {
	dbDir, _ := cmd.Flags().GetString("db-dir")
	url, _ := cmd.Flags().GetString("url")

	if dbDir == "" && url == "" {
		if dir := os.Getenv(geocoder.EnvDBDir); dir != "" {
			dbDir = dir
		} else if u := os.Getenv(geocoder.EnvServerURL); u != "" {
			url = u
		}
	}
	if dbDir == "" && url != "" {
		return client.New(url), nil
	}

	dir, err := geocoder.DBDir(dbDir)
	if err != nil {
		return nil, err
	}
	tr, err := geocoder.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("no dictionary in %s (install one or set %s): %w",
			dir, geocoder.EnvDBDir, err)
	}
	return tr, nil
}

// printJSON writes v as one UTF-8 JSON line, keeping Japanese text
// readable.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
