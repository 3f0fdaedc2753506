package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "hiveauth"

// UserConfigDir returns the OS-specific user configuration directory for hiveauth.
// On Linux: ~/.config/hiveauth
// On macOS: ~/Library/Application Support/hiveauth
// On Windows: %APPDATA%\hiveauth
func UserConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	return filepath.Join(configDir, appName), nil
}

// UserCacheDir returns the OS-specific user cache directory for hiveauth.
// On Linux: ~/.cache/hiveauth
// On macOS: ~/Library/Caches/hiveauth
func UserCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}

	return filepath.Join(cacheDir, appName), nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// It sets the directory permissions to 0700 (owner read/write/execute only).
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
