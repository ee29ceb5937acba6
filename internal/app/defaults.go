package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns the application's default paths. Environment variables
// take precedence:
//   - HOARD_CONFIG_PATH: config file location (default: ~/.config/hoard.toml)
//   - HOARD_HOME: organization root for hoard data (default: ~/.local/share/hoard)
func GetDefaults() (map[string]string, error) {
	configPath, err := pathFromEnv("HOARD_CONFIG_PATH", ".config", "hoard.toml")
	if err != nil {
		return nil, err
	}
	rootDir, err := pathFromEnv("HOARD_HOME", ".local", "share", "hoard")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"root_dir":    rootDir,
		"log_dir":     filepath.Join(rootDir, "log"),
	}, nil
}

// pathFromEnv returns the value of the named environment variable when set,
// otherwise the given path elements joined under the home directory.
func pathFromEnv(envVar string, fallback ...string) (string, error) {
	if path := os.Getenv(envVar); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, fallback...)...), nil
}
