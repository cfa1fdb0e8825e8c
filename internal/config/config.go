package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "versionable"

// GetDataDir resolves the base directory for all versionable storage. It
// checks VERSIONABLE_DIR first, then XDG paths, and finally falls back to
// the user's home directory.
func GetDataDir() string {
	if explicit := os.Getenv("VERSIONABLE_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), appName)
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, appName)
}

// GetDBPath returns the absolute path to the SQLite database file.
func GetDBPath() string {
	return filepath.Join(GetDataDir(), "versions.db")
}

// GetConfigPath returns the settings file location: VERSIONABLE_CONFIG when
// set, otherwise config.yaml under the XDG config home.
func GetConfigPath() string {
	if explicit := os.Getenv("VERSIONABLE_CONFIG"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	configHome := xdg.ConfigHome
	if configHome == "" {
		return filepath.Join(GetDataDir(), "config.yaml")
	}
	return filepath.Join(configHome, appName, "config.yaml")
}
