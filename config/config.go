// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modfed/fedhost/domain/manifest"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Host     HostConfig     `yaml:"host"`
	Manifest ManifestConfig `yaml:"manifest"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP status server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// HostConfig describes this host as a federation participant.
type HostConfig struct {
	Name   string         `yaml:"name"`
	Shared []SharedConfig `yaml:"shared"`
}

// SharedConfig declares one shared dependency the host provides or
// consumes. Exports inlines the host's copy; Location points at a module
// payload to fetch instead. With neither, the host only consumes.
type SharedConfig struct {
	Package         string         `yaml:"package"`
	Version         string         `yaml:"version,omitempty"`
	RequiredVersion string         `yaml:"required_version,omitempty"`
	Singleton       bool           `yaml:"singleton"`
	StrictVersion   bool           `yaml:"strict_version"`
	Eager           bool           `yaml:"eager"`
	Exports         map[string]any `yaml:"exports,omitempty"`
	Location        string         `yaml:"location,omitempty"`
}

// ManifestConfig selects the manifest source: a runtime location to
// fetch, or remotes declared inline. URL wins when both are set.
type ManifestConfig struct {
	URL     string         `yaml:"url,omitempty"`
	Remotes []RemoteConfig `yaml:"remotes,omitempty"`
}

// RemoteConfig declares one remote inline.
type RemoteConfig struct {
	Name     string            `yaml:"name"`
	Entry    string            `yaml:"entry"`
	Kind     string            `yaml:"kind,omitempty"` // "module" (default) or "script"
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// FetchConfig configures remote fetching.
type FetchConfig struct {
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// CacheConfig configures the persistent entry-artifact cache.
// An empty path disables it.
type CacheConfig struct {
	Path string        `yaml:"path,omitempty"`
	TTL  time.Duration `yaml:"ttl"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithFallback loads from the file when it exists, otherwise starts
// from defaults. Environment overrides apply in both cases.
func LoadWithFallback(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := Default()
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Host: HostConfig{
			Name: "host",
		},
		Fetch: FetchConfig{
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Environment variable names for container deployments.
const (
	EnvManifestURL = "FEDHOST_MANIFEST_URL"
	EnvServerHost  = "FEDHOST_SERVER_HOST"
	EnvServerPort  = "FEDHOST_SERVER_PORT"
	EnvCachePath   = "FEDHOST_CACHE_PATH"
	EnvLogLevel    = "FEDHOST_LOG_LEVEL"
	EnvLogFormat   = "FEDHOST_LOG_FORMAT"
)

// HasEnvConfig reports whether enough environment configuration exists
// to run without a config file.
func HasEnvConfig() bool {
	return os.Getenv(EnvManifestURL) != ""
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvManifestURL); v != "" {
		cfg.Manifest.URL = v
	}
	if v := os.Getenv(EnvServerHost); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv(EnvCachePath); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Host.Name == "" {
		return fmt.Errorf("host.name must not be empty")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q invalid (debug, info, warn, error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q invalid (json, console)", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q invalid (must start with /)", c.Metrics.Path)
	}

	for i, s := range c.Host.Shared {
		if s.Package == "" {
			return fmt.Errorf("host.shared[%d]: package must not be empty", i)
		}
		if (s.Exports != nil || s.Location != "") && s.Version == "" {
			return fmt.Errorf("host.shared[%d] (%s): provided copies need a version", i, s.Package)
		}
	}

	// Inline remotes must normalize into a valid manifest: duplicate or
	// malformed entries fail here rather than at first load.
	if _, err := manifest.New("config", c.Manifest.Descriptors()); err != nil {
		return err
	}
	return nil
}

// Descriptors converts inline remotes to manifest descriptors.
func (m ManifestConfig) Descriptors() []manifest.Descriptor {
	descs := make([]manifest.Descriptor, 0, len(m.Remotes))
	for _, r := range m.Remotes {
		descs = append(descs, manifest.Descriptor{
			Name:          r.Name,
			EntryLocation: r.Entry,
			Kind:          manifest.ModuleKind(r.Kind),
			Metadata:      r.Metadata,
		})
	}
	return descs
}
