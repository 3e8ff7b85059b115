package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoCodeAlone/metacat/assets"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metacat.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(TokenEnv, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.PageSize != 5 || cfg.Search.Index != assets.DefaultIndex {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Server.Addr != ":9090" || cfg.Gateway.Timeout != 30*time.Second {
		t.Errorf("server/gateway = %+v %+v", cfg.Server, cfg.Gateway)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
gateway:
  url: http://catalog:8585/api
  token: from-file
  timeout: 5s
auth:
  disabled: true
search:
  page_size: 10
log_level: debug
`)
	t.Setenv(TokenEnv, "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.URL != "http://catalog:8585/api" || cfg.Gateway.Timeout != 5*time.Second {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if cfg.Gateway.Token != "from-env" {
		t.Errorf("Token = %q, want env override", cfg.Gateway.Token)
	}
	if !cfg.Auth.Disabled || cfg.LogLevel != "debug" {
		t.Errorf("auth/log = %+v %q", cfg.Auth, cfg.LogLevel)
	}
	if opts := cfg.AssetOptions(); opts.PageSize != 10 || opts.Index != assets.DefaultIndex {
		t.Errorf("AssetOptions = %+v", opts)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":       "gateway: [",
		"zero page size": "search:\n  page_size: 0\n",
		"missing secret": "auth:\n  admin_pass: $2a$10$abc\n",
		"bad log level":  "log_level: loud\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Error("expected error")
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		c := Config{LogLevel: in}
		if got := c.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
