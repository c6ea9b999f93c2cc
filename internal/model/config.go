package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BackendConfig holds connection settings for the notification backend.
type BackendConfig struct {
	// BaseURL is the root URL of the REST API (e.g., https://api.example.com).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// UserID is the account whose notifications are shown.
	UserID string `mapstructure:"user_id" yaml:"user_id"`

	// TimeoutSec bounds a single HTTP round trip.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// FeedConfig holds pagination settings.
type FeedConfig struct {
	// PageSize is the per-source page size; a merged page holds up to one
	// page from every source.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// DefaultFilter is the filter the feed opens with.
	DefaultFilter string `mapstructure:"default_filter" yaml:"default_filter"`

	// ScopedIDs makes dedup key on (category, id) instead of id alone.
	ScopedIDs bool `mapstructure:"scoped_ids" yaml:"scoped_ids"`
}

// UnreadConfig holds unread-count polling settings.
type UnreadConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// StoreConfig points at the local SQLite database for hidden records.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
	File        string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Feed    FeedConfig    `mapstructure:"feed" yaml:"feed"`
	Unread  UnreadConfig  `mapstructure:"unread" yaml:"unread"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// Timeout returns the backend timeout as a duration.
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// PollInterval returns the unread poll interval as a duration.
func (c UnreadConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// Validate reports configuration that would make the client unusable.
func (c *AppConfig) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.UserID == "" {
		return fmt.Errorf("backend.user_id is required")
	}
	if c.Feed.PageSize < 1 {
		return fmt.Errorf("feed.page_size must be positive, got %d", c.Feed.PageSize)
	}
	if _, err := ParseFilterKind(c.Feed.DefaultFilter); err != nil {
		return fmt.Errorf("feed.default_filter: %w", err)
	}
	return nil
}

// configDir returns ~/.config/notifeed, falling back to the working directory.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "notifeed")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/notifeed/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendConfig{
			BaseURL:    "http://localhost:8085",
			TimeoutSec: 30,
		},
		Feed: FeedConfig{
			PageSize:      10,
			DefaultFilter: string(FilterAll),
		},
		Unread: UnreadConfig{PollIntervalSec: 30},
		Store:  StoreConfig{Path: filepath.Join(configDir(), "notifeed.db")},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(configDir(), "notifeed.log"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed NOTIFEED_ override file values
// (NOTIFEED_BACKEND_USER_ID overrides backend.user_id). If the file does not
// exist, defaults plus environment are used.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("notifeed")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults double as the key registry AutomaticEnv needs for Unmarshal.
	v.SetDefault("backend.base_url", def.Backend.BaseURL)
	v.SetDefault("backend.user_id", def.Backend.UserID)
	v.SetDefault("backend.timeout_sec", def.Backend.TimeoutSec)
	v.SetDefault("feed.page_size", def.Feed.PageSize)
	v.SetDefault("feed.default_filter", def.Feed.DefaultFilter)
	v.SetDefault("feed.scoped_ids", def.Feed.ScopedIDs)
	v.SetDefault("unread.poll_interval_sec", def.Unread.PollIntervalSec)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.development", def.Log.Development)
	v.SetDefault("log.file", def.Log.File)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Feed.PageSize <= 0 {
		cfg.Feed.PageSize = def.Feed.PageSize
	}
	if cfg.Unread.PollIntervalSec <= 0 {
		cfg.Unread.PollIntervalSec = def.Unread.PollIntervalSec
	}
	if cfg.Backend.TimeoutSec <= 0 {
		cfg.Backend.TimeoutSec = def.Backend.TimeoutSec
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("feed", cfg.Feed)
	v.Set("unread", cfg.Unread)
	v.Set("store", cfg.Store)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
