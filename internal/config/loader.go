package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name looked up in the
// current and home directories.
const DefaultConfigFile = ".scanagent"

// ErrConfigNotFound is returned when the configuration file does not
// exist. Callers decide whether that is fatal: an explicitly passed
// path must exist, the implicit lookup may come up empty.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile parses per-server overrides from the YAML file at
// path.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	if cf.Servers == nil {
		cf.Servers = make(map[string]ServerConfig)
	}
	return &cf, nil
}

// FindConfigFile resolves the configuration file location. A non-empty
// configPath wins when the file exists. Otherwise .scanagent is probed
// in the current directory, then in the home directory. Returns "" when
// nothing was found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		return existingPath(configPath)
	}

	if cwd, err := os.Getwd(); err == nil {
		if p := existingPath(filepath.Join(cwd, DefaultConfigFile)); p != "" {
			return p
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		if p := existingPath(filepath.Join(home, DefaultConfigFile)); p != "" {
			return p
		}
	}

	return ""
}

// existingPath returns path when a file exists there, "" otherwise.
func existingPath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
