package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Inbox    InboxConfig    `yaml:"inbox"`
	Backup   BackupConfig   `yaml:"backup"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// InboxConfig holds drop-directory import settings.
type InboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// DebounceSeconds is how long the watcher waits after the last file
	// event before sweeping the inbox.
	DebounceSeconds int `yaml:"debounce_seconds"`
	// MaxImportsPerSecond caps the sustained import rate during a sweep.
	MaxImportsPerSecond int `yaml:"max_imports_per_second"`
}

// BackupConfig holds database backup settings.
type BackupConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Path           string `yaml:"path"`
	RetentionCount int    `yaml:"retention_count"`
	MaxAgeDays     int    `yaml:"max_age_days"`
	IntervalHours  int    `yaml:"interval_hours"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxFiles   int    `yaml:"file_max_files"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "data/backbeat.db",
		},
		Inbox: InboxConfig{
			Enabled:             false,
			Path:                "data/inbox",
			DebounceSeconds:     1,
			MaxImportsPerSecond: 10,
		},
		Backup: BackupConfig{
			Enabled:        false,
			RetentionCount: 5,
			MaxAgeDays:     30,
			IntervalHours:  24,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator input
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("BB_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("BB_INBOX_PATH"); v != "" {
		c.Inbox.Path = v
		c.Inbox.Enabled = true
	}
	if v := os.Getenv("BB_BACKUP_PATH"); v != "" {
		c.Backup.Path = v
	}
	if v := os.Getenv("BB_BACKUP_RETENTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Backup.RetentionCount = n
		}
	}
	if v := os.Getenv("BB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BB_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("BB_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Inbox.Enabled && c.Inbox.Path == "" {
		return fmt.Errorf("inbox path is required when the inbox is enabled")
	}
	if c.Inbox.DebounceSeconds < 0 {
		return fmt.Errorf("inbox debounce must not be negative")
	}
	if c.Inbox.MaxImportsPerSecond <= 0 {
		c.Inbox.MaxImportsPerSecond = 10
	}
	if c.Backup.RetentionCount < 1 {
		return fmt.Errorf("backup retention must be at least 1")
	}
	if c.Backup.IntervalHours < 1 {
		return fmt.Errorf("backup interval must be at least 1 hour")
	}
	return nil
}
