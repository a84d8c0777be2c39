package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - WORKTRACK_CONFIG_PATH: config file location (default: ~/.config/worktrack.toml)
//   - WORKTRACK_HOME: base directory for worktrack data (default: ~/.local/share/worktrack)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking WORKTRACK_CONFIG_PATH first,
// then falling back to the default ~/.config/worktrack.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("WORKTRACK_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "worktrack.toml"), nil
}

// getBaseDir returns the base directory for worktrack data, checking WORKTRACK_HOME
// first, then falling back to the XDG default ~/.local/share/worktrack.
func getBaseDir() (string, error) {
	if path := os.Getenv("WORKTRACK_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "worktrack"), nil
}
