// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/modfed/fedhost/domain/entry"
	"github.com/modfed/fedhost/domain/manifest"
	"github.com/modfed/fedhost/domain/share"
	"github.com/modfed/fedhost/ports"
)

// ExposedModuleNotFoundError reports a request for an alias the remote
// does not expose. Fatal for that request only; the remote's other
// aliases remain loadable.
type ExposedModuleNotFoundError struct {
	Remote    string
	Alias     string
	Available []string
}

// Error returns the message.
func (e *ExposedModuleNotFoundError) Error() string {
	return fmt.Sprintf("remote %q does not expose %q (available: %v)", e.Remote, e.Alias, e.Available)
}

// LoaderDeps contains dependencies for LoaderService.
type LoaderDeps struct {
	Manifests  *manifest.Holder
	Entries    ports.EntryLoader
	Registry   ports.ContainerRegistry // optional; required for script-kind remotes
	Negotiator *share.Negotiator
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     zerolog.Logger
}

// LoaderService is the consumer-facing module loader. It resolves the
// manifest, loads and initializes remote entries, and serves exposed
// modules with at-most-once-load semantics.
type LoaderService struct {
	manifests  *manifest.Holder
	entries    ports.EntryLoader
	registry   ports.ContainerRegistry
	negotiator *share.Negotiator
	clock      ports.Clock
	ids        ports.IDGenerator
	logger     zerolog.Logger

	mu         sync.RWMutex
	cache      map[loadKey]entry.Exports
	containers map[string]entry.Container

	flight      singleflight.Group // per (remote, alias)
	entryFlight singleflight.Group // per remote
}

type loadKey struct {
	remote string
	alias  string
}

// NewLoaderService creates a new loader service.
func NewLoaderService(deps LoaderDeps) *LoaderService {
	return &LoaderService{
		manifests:  deps.Manifests,
		entries:    deps.Entries,
		registry:   deps.Registry,
		negotiator: deps.Negotiator,
		clock:      deps.Clock,
		ids:        deps.IDGen,
		logger:     deps.Logger.With().Str("component", "loader").Logger(),
		cache:      make(map[loadKey]entry.Exports),
		containers: make(map[string]entry.Container),
	}
}

// LoadExposedModule resolves and returns the exports of an exposed
// module. Results are cached per (remote, alias); concurrent first-time
// requests for the same pair collapse into a single in-flight load.
func (s *LoaderService) LoadExposedModule(ctx context.Context, remoteName, alias string) (entry.Exports, error) {
	key := loadKey{remote: remoteName, alias: alias}

	s.mu.RLock()
	exports, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return exports, nil
	}

	loadID := s.ids.New()
	logger := s.logger.With().
		Str("load_id", loadID).
		Str("remote", remoteName).
		Str("alias", alias).
		Logger()
	start := s.clock.Now()

	// Loads run detached from the caller: an aborted caller does not
	// cancel the fetch, and the result still populates the cache.
	bg := context.WithoutCancel(ctx)

	ch := s.flight.DoChan(remoteName+"\x00"+alias, func() (any, error) {
		exports, err := s.loadOnce(bg, remoteName, alias)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[key] = exports
		s.mu.Unlock()
		return exports, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			logger.Warn().Err(res.Err).Msg("module load failed")
			return nil, res.Err
		}
		logger.Info().
			Dur("elapsed", s.clock.Now().Sub(start)).
			Bool("coalesced", res.Shared).
			Msg("module loaded")
		return res.Val.(entry.Exports), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *LoaderService) loadOnce(ctx context.Context, remoteName, alias string) (entry.Exports, error) {
	desc, err := s.manifests.Get().Lookup(remoteName)
	if err != nil {
		return nil, err
	}

	container, err := s.ensureEntry(ctx, desc)
	if err != nil {
		return nil, err
	}

	factory, ok := container.Factory(alias)
	if !ok {
		return nil, &ExposedModuleNotFoundError{Remote: remoteName, Alias: alias, Available: container.Aliases()}
	}
	return factory(ctx)
}

// ensureEntry loads and initializes a remote's container once per host
// session. Shared requirements are discovered here, so negotiation order
// across remotes follows first-load order. Failed loads leave no record
// and may be retried; a strict-version conflict is remembered by the
// negotiator and stays fatal for the remote.
func (s *LoaderService) ensureEntry(ctx context.Context, d manifest.Descriptor) (entry.Container, error) {
	s.mu.RLock()
	c, ok := s.containers[d.Name]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	v, err, _ := s.entryFlight.Do(d.Name, func() (any, error) {
		s.mu.RLock()
		c, ok := s.containers[d.Name]
		s.mu.RUnlock()
		if ok {
			return c, nil
		}

		c, err := s.loadContainer(ctx, d)
		if err != nil {
			return nil, err
		}

		if err := s.negotiator.Register(ctx, d.Name, c.SharedOffers()); err != nil {
			return nil, err
		}

		// Initialization completes before any factory for this remote runs.
		if err := c.Init(ctx, s.negotiator.ScopeFor(d.Name)); err != nil {
			return nil, fmt.Errorf("init remote %q: %w", d.Name, err)
		}

		s.mu.Lock()
		s.containers[d.Name] = c
		s.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(entry.Container), nil
}

func (s *LoaderService) loadContainer(ctx context.Context, d manifest.Descriptor) (entry.Container, error) {
	if d.Kind == manifest.KindScript {
		if s.registry == nil {
			return nil, &entry.MalformedError{Remote: d.Name, Reason: "no container registry configured for script remotes"}
		}
		c, ok := s.registry.Lookup(d.Name)
		if !ok {
			return nil, &entry.MalformedError{Remote: d.Name, Reason: "no container registered under well-known name"}
		}
		return c, nil
	}
	return s.entries.LoadEntry(ctx, d)
}

// CacheSize returns the number of cached (remote, alias) results.
func (s *LoaderService) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// RemoteStatus describes one manifest remote for status output.
type RemoteStatus struct {
	Name          string   `json:"name"`
	EntryLocation string   `json:"entryLocation"`
	Kind          string   `json:"kind"`
	Loaded        bool     `json:"loaded"`
	Aliases       []string `json:"aliases,omitempty"`
}

// Remotes reports every manifest remote and whether its entry is loaded.
func (s *LoaderService) Remotes() []RemoteStatus {
	m := s.manifests.Get()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RemoteStatus, 0, m.Len())
	for _, name := range m.Names() {
		d, err := m.Lookup(name)
		if err != nil {
			continue
		}
		st := RemoteStatus{
			Name:          d.Name,
			EntryLocation: d.EntryLocation,
			Kind:          string(d.Kind),
		}
		if c, ok := s.containers[name]; ok {
			st.Loaded = true
			st.Aliases = c.Aliases()
		}
		out = append(out, st)
	}
	return out
}
