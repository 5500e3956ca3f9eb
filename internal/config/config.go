// Package config loads tagsync settings from a YAML file and the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const DefaultManifestURL = "https://raw.githubusercontent.com/minis-patchers/SynDelta/main/SynWeaponKeywords/index.json"

// Config holds every setting. Values come from defaults, then the YAML file,
// then TAGSYNC_* environment variables.
type Config struct {
	DataDir      string        `yaml:"data_dir" env:"TAGSYNC_DATA_DIR"`
	ManifestURL  string        `yaml:"manifest_url" env:"TAGSYNC_MANIFEST_URL"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"TAGSYNC_FETCH_TIMEOUT"`
	StoreDSN     string        `yaml:"store_dsn" env:"TAGSYNC_STORE_DSN"`
	OverlayDir   string        `yaml:"overlay_dir" env:"TAGSYNC_OVERLAY_DIR"`
	StripPrefix  string        `yaml:"strip_prefix" env:"TAGSYNC_STRIP_PREFIX"`
	LogLevel     string        `yaml:"log_level" env:"TAGSYNC_LOG_LEVEL"`
}

func Default() *Config {
	return &Config{
		DataDir:      "data",
		ManifestURL:  DefaultManifestURL,
		FetchTimeout: 5 * time.Second,
		StoreDSN:     "sqlite://data/items.db",
		StripPrefix:  "WeapType",
		LogLevel:     "info",
	}
}

// Load reads the config file at path, if any, and applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// ParseEnv fills target from the environment. Fields whose variable is unset
// keep their current value.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.ManifestURL != "" {
		u, err := url.Parse(c.ManifestURL)
		if err != nil {
			return fmt.Errorf("invalid manifest_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("manifest_url must be http or https, got %q", u.Scheme)
		}
	}
	if c.StoreDSN != "" && !strings.HasPrefix(c.StoreDSN, "sqlite://") {
		return fmt.Errorf("store_dsn must start with sqlite://")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// OverlayPath is the directory scanned for local overlay patches. It defaults
// to the data directory.
func (c *Config) OverlayPath() string {
	if c.OverlayDir != "" {
		return c.OverlayDir
	}
	return c.DataDir
}

// DatabasePath is where the synchronized rule database is kept.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "database.json")
}
