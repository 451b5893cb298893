// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/modfed/fedhost/domain/entry"
	"github.com/modfed/fedhost/domain/manifest"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// ManifestFetcher retrieves and parses a manifest document from a
// location (HTTP URL or local file path).
type ManifestFetcher interface {
	FetchManifest(ctx context.Context, location string) (*manifest.Manifest, error)
}

// EntryLoader loads a remote's entry artifact and wraps it in a runtime
// container. It does not fetch any exposed module bodies.
type EntryLoader interface {
	LoadEntry(ctx context.Context, d manifest.Descriptor) (entry.Container, error)
}

// ContainerRegistry resolves script-kind remotes that registered
// themselves in-process under a well-known container name.
type ContainerRegistry interface {
	Lookup(name string) (entry.Container, bool)
}

// EntryCache caches fetched entry documents between runs. Entries older
// than maxAge are treated as misses.
type EntryCache interface {
	Get(ctx context.Context, location string, maxAge time.Duration) ([]byte, bool, error)
	Put(ctx context.Context, location string, body []byte, fetchedAt time.Time) error
	Close() error
}
