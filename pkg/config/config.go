package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	histerrors "github.com/stormalone/reedline/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	History HistoryConfig `mapstructure:"history" toml:"history"`
	Log     LogConfig     `mapstructure:"log" toml:"log"`
}

// HistoryConfig holds command history store configuration
type HistoryConfig struct {
	DatabasePath   string        `mapstructure:"database_path" toml:"database_path"`
	IgnorePatterns []string      `mapstructure:"ignore_patterns" toml:"ignore_patterns"` // Commands `record` skips
	MmapSize       int64         `mapstructure:"mmap_size" toml:"mmap_size"`             // Bytes; 0 disables memory mapping
	BusyTimeout    time.Duration `mapstructure:"busy_timeout" toml:"busy_timeout"`       // Wait on another writer's lock
	BusyRetries    int           `mapstructure:"busy_retries" toml:"busy_retries"`       // Retries after SQLITE_BUSY
	Hostname       string        `mapstructure:"hostname" toml:"hostname"`               // Overrides os.Hostname when set
}

// LogConfig holds diagnostic logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" toml:"format"` // text or json
}

// ValidLogLevels is the list of supported log levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidLogFormats is the list of supported log formats.
var ValidLogFormats = []string{"text", "json"}

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	config := &Config{}

	// Set defaults
	setDefaults()

	// Unmarshal the config
	if err := viper.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	// Expand paths
	if err := expandPaths(config); err != nil {
		return nil, errors.Wrap(err, "failed to expand paths")
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return config, nil
}

// Validate validates the configuration and returns any validation errors.
func (c *Config) Validate() error {
	if c.History.DatabasePath == "" {
		return histerrors.NewConfigError("history.database_path", "must not be empty")
	}
	for _, pattern := range c.History.IgnorePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return histerrors.NewConfigError("history.ignore_patterns", "invalid pattern "+quote(pattern))
		}
	}
	if c.History.MmapSize < 0 {
		return histerrors.NewConfigError("history.mmap_size", "must not be negative")
	}
	if c.History.BusyTimeout < 0 {
		return histerrors.NewConfigError("history.busy_timeout", "must not be negative")
	}
	if c.History.BusyRetries < 0 {
		return histerrors.NewConfigError("history.busy_retries", "must not be negative")
	}
	if !contains(ValidLogLevels, c.Log.Level) {
		return histerrors.NewConfigError("log.level",
			"invalid level "+quote(c.Log.Level)+": must be one of: debug, info, warn, error")
	}
	if !contains(ValidLogFormats, c.Log.Format) {
		return histerrors.NewConfigError("log.format",
			"invalid format "+quote(c.Log.Format)+": must be one of: text, json")
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, valid := range values {
		if v == valid {
			return true
		}
	}
	return false
}

func quote(s string) string {
	return `"` + s + `"`
}

// DefaultConfigPath returns the config file location used when --config is
// not given.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".config", "rlhist", "config.toml")
}

// setDefaults sets default configuration values
func setDefaults() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory if home dir can't be determined
		homeDir = "."
	}

	// History defaults
	viper.SetDefault("history.database_path", filepath.Join(homeDir, ".local", "share", "rlhist", "history.db"))
	viper.SetDefault("history.ignore_patterns", []string{})
	viper.SetDefault("history.mmap_size", int64(1_000_000_000))
	viper.SetDefault("history.busy_timeout", 5*time.Second)
	viper.SetDefault("history.busy_retries", 3)
	viper.SetDefault("history.hostname", "")

	// Log defaults
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "text")
}

// expandPaths expands ~ and environment variables in paths
func expandPaths(config *Config) error {
	var err error

	config.History.DatabasePath, err = expandPath(os.ExpandEnv(config.History.DatabasePath))
	if err != nil {
		return err
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, path[1:]), nil
}
