package geocoder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read when no explicit path or endpoint is
// given.
const (
	// EnvDBDir points at the installed dictionary directory.
	EnvDBDir = "BANCHI_DB_DIR"
	// EnvServerURL points at a remote server endpoint.
	EnvServerURL = "BANCHI_SERVER_URL"
)

// DBDir resolves the dictionary directory: an explicit path wins,
// then the BANCHI_DB_DIR environment variable, then the per-user
// default ~/.banchi/db.
func DBDir(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if dir := os.Getenv(EnvDBDir); dir != "" {
		if strings.HasPrefix(strings.ToLower(dir), "http") {
			return "", fmt.Errorf(
				"%w: %s holds an URL; set %s for a remote server instead",
				ErrConfig, EnvDBDir, EnvServerURL)
		}
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate the default dictionary directory: %w", err)
	}
	return filepath.Join(home, ".banchi", "db"), nil
}
