// Package config defines the metacat configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/metacat/assets"
)

// TokenEnv overrides Gateway.Token when set.
const TokenEnv = "METACAT_TOKEN"

// Config is the top-level metacat configuration.
type Config struct {
	Gateway  GatewayConfig `json:"gateway" yaml:"gateway"`
	Server   ServerConfig  `json:"server" yaml:"server"`
	Auth     AuthConfig    `json:"auth" yaml:"auth"`
	Search   SearchConfig  `json:"search" yaml:"search"`
	DataDir  string        `json:"data_dir" yaml:"data_dir"`
	LogLevel string        `json:"log_level" yaml:"log_level"`
}

// GatewayConfig points at the catalog REST API.
type GatewayConfig struct {
	URL     string        `json:"url" yaml:"url"` // e.g. "http://localhost:8585/api"
	Token   string        `json:"-" yaml:"token"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":9090"
}

// AuthConfig controls front-end authentication.
type AuthConfig struct {
	Disabled  bool   `json:"disabled" yaml:"disabled"`
	JWTSecret string `json:"-" yaml:"jwt_secret"`
	AdminUser string `json:"admin_user" yaml:"admin_user"`
	AdminPass string `json:"-" yaml:"admin_pass"` // bcrypt hash
}

// SearchConfig tunes the owned/followed entity lists.
type SearchConfig struct {
	PageSize    int    `json:"page_size" yaml:"page_size"`
	Index       string `json:"index" yaml:"index"`
	RecentLimit int    `json:"recent_limit" yaml:"recent_limit"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			URL:     "http://localhost:8585/api",
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":9090",
		},
		Auth: AuthConfig{
			AdminUser: "admin",
		},
		Search: SearchConfig{
			PageSize:    assets.DefaultPageSize,
			Index:       assets.DefaultIndex,
			RecentLimit: 5,
		},
		DataDir:  "./data",
		LogLevel: "info",
	}
}

// Load reads a YAML config file and returns the parsed configuration.
// An empty path returns the defaults. The environment is applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if tok := os.Getenv(TokenEnv); tok != "" {
		cfg.Gateway.Token = tok
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	if c.Search.PageSize <= 0 {
		return fmt.Errorf("search.page_size must be positive, got %d", c.Search.PageSize)
	}
	if c.LogLevel != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return fmt.Errorf("log_level %q: %w", c.LogLevel, err)
		}
	}
	if !c.Auth.Disabled && c.Auth.AdminPass != "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	return nil
}

// AssetOptions returns the entity list options.
func (c *Config) AssetOptions() assets.Options {
	return assets.Options{PageSize: c.Search.PageSize, Index: c.Search.Index}
}

// SlogLevel maps LogLevel onto a slog level. Empty means info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
