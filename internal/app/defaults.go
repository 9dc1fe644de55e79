package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "OSWL_CONFIG_PATH"
	// EnvHome overrides the base directory for oswl data.
	EnvHome = "OSWL_HOME"
)

// Defaults holds the application default paths.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - OSWL_CONFIG_PATH: config file location (default: ~/.config/oswl.toml)
//   - OSWL_HOME: base directory for oswl data (default: ~/.local/share/oswl)
func GetDefaults() (*Defaults, error) {
	configPath, err := envOrHome(EnvConfigPath, ".config", "oswl.toml")
	if err != nil {
		return nil, err
	}

	baseDir, err := envOrHome(EnvHome, ".local", "share", "oswl")
	if err != nil {
		return nil, err
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the value of env if set, otherwise the path built from
// elem under the user's home directory.
func envOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
