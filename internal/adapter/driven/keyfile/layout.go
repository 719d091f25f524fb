package keyfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppName names the application directory under the OS config root.
const AppName = "esdesk"

// DirPermissions is used when creating the data directory.
const DirPermissions = 0o700

// Layout is the resolved set of on-disk locations.
type Layout struct {
	Dir       string
	LegacyDir string
}

// ResolveLayout computes the data directory and the legacy directory. Empty
// overrides fall back to os.UserConfigDir()/esdesk and $HOME/.esdesk. When
// the home directory cannot be determined LegacyDir is empty.
func ResolveLayout(dirOverride, legacyOverride string) (Layout, error) {
	dir := dirOverride
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Layout{}, fmt.Errorf("resolve config directory: %w", err)
		}
		dir = filepath.Join(base, AppName)
	}

	legacy := legacyOverride
	if legacy == "" {
		if home, err := os.UserHomeDir(); err == nil {
			legacy = filepath.Join(home, "."+AppName)
		}
	}

	return Layout{Dir: filepath.Clean(dir), LegacyDir: cleanOrEmpty(legacy)}, nil
}

// DBPath returns the SQLite database location.
func (l Layout) DBPath() string {
	return filepath.Join(l.Dir, AppName+".db")
}

// KeyPath returns the encryption key file location.
func (l Layout) KeyPath() string {
	return filepath.Join(l.Dir, "db.key")
}

// Ensure creates the data directory if it does not exist.
func (l Layout) Ensure() error {
	if err := os.MkdirAll(l.Dir, DirPermissions); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

func cleanOrEmpty(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
