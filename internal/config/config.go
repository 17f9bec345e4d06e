// Package config handles threadview configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for threadview.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Loader window settings
	Loader LoaderConfig `yaml:"loader" mapstructure:"loader"`

	// Landing protocol settings
	Landing LandingConfig `yaml:"landing" mapstructure:"landing"`

	// External change watcher settings
	Watch WatchConfig `yaml:"watch" mapstructure:"watch"`
}

// GlobalConfig contains global settings.
type GlobalConfig struct {
	// DataDir is where threadview stores its data (default: ~/.local/share/threadview).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/threadview).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`

	// SelfAddress is the local user's address; interactions written by it are outgoing.
	SelfAddress string `yaml:"self_address" mapstructure:"self_address"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// MaxConnections is the maximum number of database connections.
	MaxConnections int `yaml:"max_connections" mapstructure:"max_connections"`

	// BusyTimeout is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// LoaderConfig sizes the load window.
type LoaderConfig struct {
	// InitialWindowSize is how many interactions the first load materializes.
	InitialWindowSize int `yaml:"initial_window_size" mapstructure:"initial_window_size"`

	// PageSize is how many interactions LoadOlder/LoadNewer add.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`

	// MaxWindowSize caps the window; the far side is trimmed when exceeded.
	MaxWindowSize int `yaml:"max_window_size" mapstructure:"max_window_size"`
}

// LandingConfig tunes the safe-landing protocol.
type LandingConfig struct {
	// PollInterval is how often the landing predicate is re-evaluated.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// Strict turns assertion-level failures into panics (development builds).
	Strict bool `yaml:"strict" mapstructure:"strict"`
}

// WatchConfig tunes the out-of-process change watcher.
type WatchConfig struct {
	// Enabled turns the watcher on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Interval is how often the database change counters are polled.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:     filepath.Join(homeDir, ".local", "share", "threadview"),
			ConfigDir:   filepath.Join(homeDir, ".config", "threadview"),
			SelfAddress: "me",
		},
		Database: DatabaseConfig{
			Path:           "", // Will be set to DataDir/threadview.db
			MaxConnections: 4,
			BusyTimeoutMs:  5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Loader: LoaderConfig{
			InitialWindowSize: 50,
			PageSize:          50,
			MaxWindowSize:     300,
		},
		Landing: LandingConfig{
			PollInterval: time.Millisecond,
			Strict:       false,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Interval: 250 * time.Millisecond,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database.max_connections must be at least 1")
	}

	if c.Loader.InitialWindowSize < 1 {
		return fmt.Errorf("loader.initial_window_size must be at least 1")
	}

	if c.Loader.PageSize < 1 {
		return fmt.Errorf("loader.page_size must be at least 1")
	}

	if c.Loader.MaxWindowSize < c.Loader.InitialWindowSize || c.Loader.MaxWindowSize < c.Loader.PageSize {
		return fmt.Errorf("loader.max_window_size must be at least initial_window_size and page_size")
	}

	if c.Landing.PollInterval <= 0 || c.Landing.PollInterval > time.Second {
		return fmt.Errorf("landing.poll_interval must be between 0 and 1s")
	}

	if c.Watch.Enabled && c.Watch.Interval < 10*time.Millisecond {
		return fmt.Errorf("watch.interval must be at least 10ms")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "threadview.db")
}
