package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modfed/fedhost/domain/manifest"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fedhost.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
host:
  name: storefront
  shared:
    - package: utils
      version: 1.2.0
      required_version: "^1.0.0"
      singleton: true
      exports:
        format: "fmt-v1"
manifest:
  remotes:
    - name: shop
      entry: https://cdn.example.com/shop/entry.json
    - name: legacy
      entry: in-process
      kind: script
fetch:
  timeout: 5s
  headers:
    Authorization: Bearer tok
cache:
  path: /tmp/fedhost-cache.db
  ttl: 30m
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Host.Name != "storefront" {
		t.Errorf("host name = %q", cfg.Host.Name)
	}
	if len(cfg.Host.Shared) != 1 || cfg.Host.Shared[0].Package != "utils" {
		t.Errorf("shared = %+v", cfg.Host.Shared)
	}
	if cfg.Fetch.Timeout != 5*time.Second {
		t.Errorf("fetch timeout = %v", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.Headers["Authorization"] != "Bearer tok" {
		t.Errorf("headers = %v", cfg.Fetch.Headers)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("cache ttl = %v", cfg.Cache.TTL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	// Defaults survive partial documents.
	if cfg.Logging.Format != "console" {
		t.Errorf("log format = %q", cfg.Logging.Format)
	}

	descs := cfg.Manifest.Descriptors()
	if len(descs) != 2 {
		t.Fatalf("descriptors = %d, want 2", len(descs))
	}
	if descs[1].Kind != manifest.KindScript {
		t.Errorf("legacy kind = %q", descs[1].Kind)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadWithFallbackUsesDefaults(t *testing.T) {
	cfg, err := LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Host.Name != "host" {
		t.Errorf("host name = %q", cfg.Host.Name)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty host name", func(c *Config) { c.Host.Name = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"metrics enabled without path", func(c *Config) { c.Metrics.Path = "" }},
		{"metrics path without leading slash", func(c *Config) { c.Metrics.Path = "metrics" }},
		{"shared without package", func(c *Config) {
			c.Host.Shared = []SharedConfig{{Version: "1.0.0"}}
		}},
		{"provided copy without version", func(c *Config) {
			c.Host.Shared = []SharedConfig{{Package: "utils", Exports: map[string]any{"a": 1}}}
		}},
		{"duplicate inline remotes", func(c *Config) {
			c.Manifest.Remotes = []RemoteConfig{
				{Name: "shop", Entry: "https://a/e.json"},
				{Name: "shop", Entry: "https://b/e.json"},
			}
		}},
		{"inline remote without entry", func(c *Config) {
			c.Manifest.Remotes = []RemoteConfig{{Name: "shop"}}
		}},
		{"inline remote bad kind", func(c *Config) {
			c.Manifest.Remotes = []RemoteConfig{{Name: "shop", Entry: "https://a/e.json", Kind: "wasm"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	disabled := Default()
	disabled.Metrics.Enabled = false
	disabled.Metrics.Path = ""
	if err := disabled.Validate(); err != nil {
		t.Errorf("disabled metrics with empty path invalid: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvManifestURL, "https://cdn.example.com/mf.manifest.json")
	t.Setenv(EnvServerPort, "9999")
	t.Setenv(EnvLogLevel, "warn")

	if !HasEnvConfig() {
		t.Fatal("HasEnvConfig = false")
	}

	cfg, err := LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback: %v", err)
	}
	if cfg.Manifest.URL != "https://cdn.example.com/mf.manifest.json" {
		t.Errorf("manifest url = %q", cfg.Manifest.URL)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}
