package memory

import (
	"context"
	"sync"
	"time"

	"github.com/modfed/fedhost/ports"
)

type cachedEntry struct {
	body      []byte
	fetchedAt time.Time
}

// EntryCache is a process-scoped ports.EntryCache. Unlike the sqlite
// cache nothing survives a restart; it suits single-run hosts and tests.
type EntryCache struct {
	clock ports.Clock

	mu      sync.Mutex
	entries map[string]cachedEntry
}

// NewEntryCache creates an empty cache. A nil clock falls back to
// system time.
func NewEntryCache(clk ports.Clock) *EntryCache {
	return &EntryCache{
		clock:   clk,
		entries: make(map[string]cachedEntry),
	}
}

func (c *EntryCache) now() time.Time {
	if c.clock != nil {
		return c.clock.Now()
	}
	return time.Now()
}

// Get returns the cached body for a location if it is younger than
// maxAge. Stale entries are dropped and reported as misses.
func (c *EntryCache) Get(ctx context.Context, location string, maxAge time.Duration) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[location]
	if !ok {
		return nil, false, nil
	}
	if c.now().Sub(e.fetchedAt) > maxAge {
		delete(c.entries, location)
		return nil, false, nil
	}
	return e.body, true, nil
}

// Put stores or replaces the cached body for a location.
func (c *EntryCache) Put(ctx context.Context, location string, body []byte, fetchedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[location] = cachedEntry{body: body, fetchedAt: fetchedAt}
	return nil
}

// Close is a no-op; the cache holds no external resources.
func (c *EntryCache) Close() error { return nil }

var _ ports.EntryCache = (*EntryCache)(nil)
