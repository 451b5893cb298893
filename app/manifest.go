package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/modfed/fedhost/domain/manifest"
	"github.com/modfed/fedhost/ports"
)

// ManifestService owns the manifest lifecycle: building it from inline
// configuration or fetching it from a runtime location, and swapping it
// in atomically on refresh. A failed refresh keeps the old manifest.
type ManifestService struct {
	holder  *manifest.Holder
	fetcher ports.ManifestFetcher
	logger  zerolog.Logger

	mu       sync.Mutex
	location string // runtime manifest location; empty = inline remotes
	static   []manifest.Descriptor
}

// ManifestDeps contains dependencies for ManifestService.
type ManifestDeps struct {
	Holder   *manifest.Holder
	Fetcher  ports.ManifestFetcher // required when Location is set
	Location string
	Static   []manifest.Descriptor
	Logger   zerolog.Logger
}

// NewManifestService creates a manifest service.
func NewManifestService(deps ManifestDeps) *ManifestService {
	return &ManifestService{
		holder:   deps.Holder,
		fetcher:  deps.Fetcher,
		logger:   deps.Logger.With().Str("component", "manifest").Logger(),
		location: deps.Location,
		static:   deps.Static,
	}
}

// Refresh rebuilds the manifest and atomically replaces the current one.
// On failure the previous manifest stays in place.
func (s *ManifestService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	location := s.location
	static := s.static
	s.mu.Unlock()

	var (
		m   *manifest.Manifest
		err error
	)
	if location != "" {
		m, err = s.fetcher.FetchManifest(ctx, location)
	} else {
		m, err = manifest.New("config", static)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("manifest refresh failed, keeping old manifest")
		return fmt.Errorf("refresh manifest: %w", err)
	}

	s.holder.Replace(m)
	s.logger.Info().Int("remotes", m.Len()).Msg("manifest refreshed")
	return nil
}

// SetStatic replaces the inline remote set (configuration hot reload).
// Takes effect on the next Refresh.
func (s *ManifestService) SetStatic(descs []manifest.Descriptor) {
	s.mu.Lock()
	s.static = descs
	s.mu.Unlock()
}
