// Package remote provides the HTTP client that fetches manifests, entry
// descriptors and module payloads from remote deployments. Local file
// paths are supported for development and offline validation.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/modfed/fedhost/adapters/metrics"
	"github.com/modfed/fedhost/domain/entry"
	"github.com/modfed/fedhost/domain/manifest"
	"github.com/modfed/fedhost/ports"
)

// Client fetches federation artifacts over HTTP.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	cache      ports.EntryCache
	cacheTTL   time.Duration
	clock      ports.Clock
	metrics    *metrics.Collector
	logger     zerolog.Logger
}

// ClientConfig configures the remote client.
type ClientConfig struct {
	Timeout  time.Duration
	Headers  map[string]string
	Cache    ports.EntryCache // optional entry-artifact cache
	CacheTTL time.Duration
	Clock    ports.Clock
	Metrics  *metrics.Collector // optional
	Logger   zerolog.Logger
}

// NewClient creates a new remote client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = time.Hour
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers:    cfg.Headers,
		cache:      cfg.Cache,
		cacheTTL:   ttl,
		clock:      cfg.Clock,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With().Str("component", "remote").Logger(),
	}
}

// FetchManifest retrieves and parses a manifest document.
func (c *Client) FetchManifest(ctx context.Context, location string) (*manifest.Manifest, error) {
	data, _, err := c.get(ctx, location)
	if err != nil {
		c.count(metrics.FetchManifest, "error")
		return nil, &manifest.Error{Source: location, Reason: "unreachable", Err: err}
	}
	c.count(metrics.FetchManifest, "ok")
	return manifest.Parse(location, data)
}

// LoadEntry fetches a remote's entry descriptor and wraps it in a
// container. The entry cache, when configured, is consulted first; a
// stale or unparsable cached copy falls through to a fresh fetch.
func (c *Client) LoadEntry(ctx context.Context, d manifest.Descriptor) (entry.Container, error) {
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, d.EntryLocation, c.cacheTTL)
		if err != nil {
			c.logger.Warn().Err(err).Str("remote", d.Name).Msg("entry cache read failed")
		} else if ok {
			if desc, err := entry.ParseDescriptor(d.Name, body); err == nil {
				return newContainer(desc, d.EntryLocation, c), nil
			}
		}
	}

	body, status, err := c.get(ctx, d.EntryLocation)
	if err != nil {
		c.count(metrics.FetchEntry, "error")
		return nil, &entry.UnreachableError{Remote: d.Name, Location: d.EntryLocation, Status: status, Err: err}
	}
	c.count(metrics.FetchEntry, "ok")

	desc, err := entry.ParseDescriptor(d.Name, body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, d.EntryLocation, body, c.now()); err != nil {
			c.logger.Warn().Err(err).Str("remote", d.Name).Msg("entry cache write failed")
		}
	}
	return newContainer(desc, d.EntryLocation, c), nil
}

// FetchModule retrieves a module payload: its exports object plus the
// shared packages it consumes from the negotiated scope.
func (c *Client) FetchModule(ctx context.Context, remoteName, location string) (entry.Exports, []string, error) {
	data, status, err := c.get(ctx, location)
	if err != nil {
		c.count(metrics.FetchModule, "error")
		return nil, nil, &entry.UnreachableError{Remote: remoteName, Location: location, Status: status, Err: err}
	}
	c.count(metrics.FetchModule, "ok")

	exports, consumes, err := parseModule(data)
	if err != nil {
		return nil, nil, &entry.MalformedError{Remote: remoteName, Reason: fmt.Sprintf("module payload %s", location), Err: err}
	}
	return exports, consumes, nil
}

// get retrieves raw bytes from an HTTP URL or a local file path.
func (c *Client) get(ctx context.Context, location string) ([]byte, int, error) {
	if path, ok := localPath(location); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, 0, fmt.Errorf("read %s: %w", path, err)
		}
		return data, 0, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("status %d from %s", resp.StatusCode, location)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func (c *Client) count(kind, result string) {
	if c.metrics != nil {
		c.metrics.FetchesTotal.WithLabelValues(kind, result).Inc()
	}
}

func (c *Client) now() time.Time {
	if c.clock != nil {
		return c.clock.Now()
	}
	return time.Now()
}

// localPath reports whether a location refers to the local filesystem.
func localPath(location string) (string, bool) {
	if strings.HasPrefix(location, "file://") {
		return strings.TrimPrefix(location, "file://"), true
	}
	if !strings.Contains(location, "://") {
		return location, true
	}
	return "", false
}

// Ensure interface compliance.
var (
	_ ports.ManifestFetcher = (*Client)(nil)
	_ ports.EntryLoader     = (*Client)(nil)
)
