// Package config provides configuration management for transferctl.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/s3transfer/transferctl/internal/constants"
)

// ConfigDirectory returns the directory holding the config file, the
// persisted client state and the log directory.
//
// Locations:
//   - Windows: %APPDATA%\transferctl
//   - Unix: ~/.config/transferctl
func ConfigDirectory() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, constants.AppDirName)
		}
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), constants.AppDirName)
		}
		return filepath.Join(homeDir, ".config", constants.AppDirName)
	}
	return filepath.Join(configDir, constants.AppDirName)
}

// DefaultConfigPath returns the default INI config file path.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDirectory(), "config")
}

// DefaultStatePath returns the default path of the persisted key-value state
// (recent buckets, bearer token).
func DefaultStatePath() string {
	return filepath.Join(ConfigDirectory(), "state.json")
}

// LogDirectory returns the directory used for rotated log files.
func LogDirectory() string {
	return filepath.Join(ConfigDirectory(), "logs")
}

// EnsureLogDirectory creates the log directory if it doesn't exist.
// Uses 0700 permissions to restrict log access to owner only.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}
