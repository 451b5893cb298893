// Package sqlite provides the persistent entry-artifact cache. Fetched
// entry descriptors are cached between runs; negotiation state and the
// loaded-module cache remain process-scoped and are never persisted.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/modfed/fedhost/ports"
)

// EntryCache stores fetched entry documents keyed by location. Entry age
// is measured against the same clock writers stamp fetched_at with.
type EntryCache struct {
	db    *sql.DB
	clock ports.Clock
}

// Open creates (or opens) the cache database at path. A nil clock falls
// back to system time.
func Open(path string, clk ports.Clock) (*EntryCache, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS entry_cache (
			location   TEXT PRIMARY KEY,
			body       BLOB NOT NULL,
			fetched_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create entry_cache table: %w", err)
	}

	return &EntryCache{db: db, clock: clk}, nil
}

func (c *EntryCache) now() time.Time {
	if c.clock != nil {
		return c.clock.Now()
	}
	return time.Now()
}

// Get returns the cached body for a location if it is younger than
// maxAge. Stale rows are deleted and reported as misses.
func (c *EntryCache) Get(ctx context.Context, location string, maxAge time.Duration) ([]byte, bool, error) {
	var body []byte
	var fetchedAt int64
	err := c.db.QueryRowContext(ctx,
		"SELECT body, fetched_at FROM entry_cache WHERE location = ?", location,
	).Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query entry cache: %w", err)
	}

	if c.now().Sub(time.Unix(fetchedAt, 0)) > maxAge {
		_, _ = c.db.ExecContext(ctx, "DELETE FROM entry_cache WHERE location = ?", location)
		return nil, false, nil
	}
	return body, true, nil
}

// Put stores or replaces the cached body for a location.
func (c *EntryCache) Put(ctx context.Context, location string, body []byte, fetchedAt time.Time) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO entry_cache (location, body, fetched_at) VALUES (?, ?, ?)",
		location, body, fetchedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("write entry cache: %w", err)
	}
	return nil
}

// Purge removes every cached entry.
func (c *EntryCache) Purge(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM entry_cache")
	if err != nil {
		return fmt.Errorf("purge entry cache: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *EntryCache) Close() error {
	return c.db.Close()
}
