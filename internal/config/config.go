// Package config provides viper-backed configuration for rollsync.
//
// Precedence: command-line flags > ROLLSYNC_* environment variables >
// rollsync.yaml > built-in defaults. Flags are applied by the CLI layer;
// this package owns everything below them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// defaults holds every known key. Keys absent here are not valid config.
var defaults = map[string]interface{}{
	"stats-db":  "",
	"member-db": "",

	"backup.dir":       "backups",
	"backup.prefix":    "members",
	"backup.retention": 3,

	"status.regular-min":    27,
	"status.occasional-min": 1,

	"log.file":        "",
	"log.max-size-mb": 10,
	"log.max-backups": 3,

	"watch.debounce": "2s",
}

// Initialize sets up viper: defaults, config file discovery, and the
// ROLLSYNC_* environment variable mapping. Missing config files are fine;
// malformed ones are an error.
func Initialize() error {
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	viper.SetConfigName("rollsync")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "rollsync"))
	}

	viper.SetEnvPrefix("ROLLSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string { return viper.GetString(key) }

// GetInt returns an integer config value.
func GetInt(key string) int { return viper.GetInt(key) }

// GetBool returns a boolean config value.
func GetBool(key string) bool { return viper.GetBool(key) }

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration { return viper.GetDuration(key) }

// ConfigFileUsed returns the path of the config file viper loaded, or ""
// when running on defaults and environment only.
func ConfigFileUsed() string { return viper.ConfigFileUsed() }

// Keys returns all known config keys, for `rollsync config show`.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	return keys
}

// WriteDefault writes a rollsync.yaml populated with the defaults.
// Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	// Nest dotted keys so the file reads naturally.
	tree := make(map[string]interface{})
	for key, value := range defaults {
		parts := strings.Split(key, ".")
		node := tree
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}

	data, err := yaml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
