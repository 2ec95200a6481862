// Package config loads the worker's configuration the way the upstream
// Rust client does (app_config.rs): defaults, then a TOML file, then
// environment variable overrides — translated to the Go ecosystem's
// equivalent layering (BurntSushi/toml for the file, caarlos0/env for the
// environment overlay, keyed off the same DRAGONFLY_ prefix the original
// client used).
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config is the full set of tunables named in spec §6.
type Config struct {
	BaseURL      string `toml:"base_url" env:"BASE_URL"`
	Auth0Domain  string `toml:"auth0_domain" env:"AUTH0_DOMAIN"`
	Audience     string `toml:"audience" env:"AUDIENCE"`
	GrantType    string `toml:"grant_type" env:"GRANT_TYPE"`
	ClientID     string `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"CLIENT_SECRET"`
	Username     string `toml:"username" env:"USERNAME"`
	Password     string `toml:"password" env:"PASSWORD"`

	Threads      int   `toml:"threads" env:"THREADS"`
	BulkSize     int   `toml:"bulk_size" env:"BULK_SIZE"`
	LoadDuration int   `toml:"load_duration" env:"LOAD_DURATION"` // seconds
	MaxScanSize  int64 `toml:"max_scan_size" env:"MAX_SCAN_SIZE"` // bytes
}

func defaults() Config {
	return Config{
		BaseURL:      "https://dragonfly.vipyrsec.com",
		GrantType:    "password",
		Threads:      runtime.GOMAXPROCS(0),
		BulkSize:     20,
		LoadDuration: 60,
		MaxScanSize:  128 * 1024 * 1024,
	}
}

// Load builds the configuration: defaults, overridden by path (if it
// exists — a missing config file is not an error, matching the upstream
// client's optional Config.toml/Config-dev.toml layers), overridden by
// DRAGONFLY_-prefixed environment variables.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "DRAGONFLY_"}); err != nil {
		return Config{}, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must not be empty")
	}
	if c.Threads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", c.Threads)
	}
	if c.BulkSize <= 0 {
		return fmt.Errorf("bulk_size must be positive, got %d", c.BulkSize)
	}
	if c.MaxScanSize <= 0 {
		return fmt.Errorf("max_scan_size must be positive, got %d", c.MaxScanSize)
	}
	return nil
}
