package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/ibeckermayer/feedrelay/internal/types"
)

// AppName names the config, cache and data directories.
const AppName = "feedrelay"

// EnvPrefix prefixes environment overrides, e.g. FEEDRELAY_RELAY_ENDPOINT.
const EnvPrefix = "FEEDRELAY"

// Relay delivery modes
const (
	ModeHTTP  = "http"
	ModeLocal = "local"
)

// DOM adapters
const (
	AdapterCSS   = "css"
	AdapterXPath = "xpath"
)

// Config holds all application configuration
type Config struct {
	Version int           `toml:"version" split_words:"true"`
	Scraper ScraperConfig `toml:"scraper" split_words:"true"`
	Relay   RelayConfig   `toml:"relay" split_words:"true"`
	Store   StoreConfig   `toml:"store" split_words:"true"`
	Control ControlConfig `toml:"control" split_words:"true"`
	API     APIConfig     `toml:"api" split_words:"true"`
	Logging LoggingConfig `toml:"logging" split_words:"true"`
}

type ScraperConfig struct {
	FeedURL          string `toml:"feed_url" split_words:"true"`
	Headless         bool   `toml:"headless" split_words:"true"`
	UserDataDir      string `toml:"user_data_dir" split_words:"true"`
	Adapter          string `toml:"adapter" split_words:"true"`
	AutoScroll       bool   `toml:"auto_scroll" split_words:"true"`
	ScrollIntervalMS int    `toml:"scroll_interval_ms" split_words:"true"`
}

type RelayConfig struct {
	Mode                 string `toml:"mode" split_words:"true"`
	Endpoint             string `toml:"endpoint" split_words:"true"`
	FlushIntervalSeconds int    `toml:"flush_interval_seconds" split_words:"true"`
	Origin               string `toml:"origin" split_words:"true"`
	CacheBatches         bool   `toml:"cache_batches" split_words:"true"`
}

type StoreConfig struct {
	Path string `toml:"path" split_words:"true"`
}

type ControlConfig struct {
	Addr string `toml:"addr" split_words:"true"`
}

type APIConfig struct {
	Addr   string `toml:"addr" split_words:"true"`
	DBPath string `toml:"db_path" split_words:"true"`
}

type LoggingConfig struct {
	Level       string `toml:"level" split_words:"true"`
	Development bool   `toml:"development" split_words:"true"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Scraper: ScraperConfig{
			FeedURL:          "https://x.com/home",
			Headless:         false,
			Adapter:          AdapterCSS,
			AutoScroll:       false,
			ScrollIntervalMS: 1500,
		},
		Relay: RelayConfig{
			Mode:                 ModeHTTP,
			Endpoint:             "http://127.0.0.1:8000/tweets",
			FlushIntervalSeconds: 5,
			Origin:               types.DefaultOrigin,
		},
		Control: ControlConfig{
			Addr: "127.0.0.1:8765",
		},
		API: APIConfig{
			Addr: "127.0.0.1:8000",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// FlushInterval is the fixed period of the outbound queue timer.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Relay.FlushIntervalSeconds) * time.Second
}

// ScrollInterval is the auto-scroll step period.
func (c *Config) ScrollInterval() time.Duration {
	return time.Duration(c.Scraper.ScrollIntervalMS) * time.Millisecond
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Relay.Mode {
	case ModeHTTP:
		if c.Relay.Endpoint == "" {
			return fmt.Errorf("relay.endpoint is required in %q mode", ModeHTTP)
		}
	case ModeLocal:
	default:
		return fmt.Errorf("unknown relay mode: %q", c.Relay.Mode)
	}

	switch c.Scraper.Adapter {
	case AdapterCSS, AdapterXPath:
	default:
		return fmt.Errorf("unknown scraper adapter: %q", c.Scraper.Adapter)
	}

	if c.Relay.FlushIntervalSeconds <= 0 {
		return fmt.Errorf("relay.flush_interval_seconds must be positive, got %d", c.Relay.FlushIntervalSeconds)
	}
	if c.Scraper.AutoScroll && c.Scraper.ScrollIntervalMS <= 0 {
		return fmt.Errorf("scraper.scroll_interval_ms must be positive, got %d", c.Scraper.ScrollIntervalMS)
	}
	if c.Relay.Origin == "" {
		c.Relay.Origin = types.DefaultOrigin
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, AppName), nil
}

// DataDir holds the sqlite databases and the browser profile.
func DataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", AppName), nil
}

// StorePath returns the local persistence database path, defaulting into DataDir.
func (c *Config) StorePath() (string, error) {
	return pathOrDefault(c.Store.Path, "records.db")
}

// APIDBPath returns the receiver database path, defaulting into DataDir.
func (c *Config) APIDBPath() (string, error) {
	return pathOrDefault(c.API.DBPath, "receiver.db")
}

// ProfileDir returns the persistent Chrome profile directory.
func (c *Config) ProfileDir() (string, error) {
	return pathOrDefault(c.Scraper.UserDataDir, "chrome-profile")
}

func pathOrDefault(path, name string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Load reads config from disk and applies environment overrides
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path on top of the defaults, then applies
// FEEDRELAY_* environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays FEEDRELAY_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
