// Package memory provides in-process implementations: the global
// container registry for script-kind remotes and a static container for
// embedded or test remotes.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/modfed/fedhost/domain/entry"
	"github.com/modfed/fedhost/domain/share"
	"github.com/modfed/fedhost/ports"
)

// ContainerRegistry holds containers registered in-process under their
// well-known names. Script-kind remotes register here instead of being
// fetched over the network.
type ContainerRegistry struct {
	mu         sync.RWMutex
	containers map[string]entry.Container
}

// NewContainerRegistry creates an empty registry.
func NewContainerRegistry() *ContainerRegistry {
	return &ContainerRegistry{containers: make(map[string]entry.Container)}
}

// Register adds a container under its well-known name.
// Returns an error on duplicate names.
func (r *ContainerRegistry) Register(name string, c entry.Container) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.containers[name]; exists {
		return fmt.Errorf("container %q already registered", name)
	}
	r.containers[name] = c
	return nil
}

// Lookup returns the container registered under name.
func (r *ContainerRegistry) Lookup(name string) (entry.Container, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[name]
	return c, ok
}

// Names lists registered container names, sorted.
func (r *ContainerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.containers))
	for name := range r.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ ports.ContainerRegistry = (*ContainerRegistry)(nil)

// StaticContainer is a container with in-memory factories, used for
// embedded script-kind remotes and tests.
type StaticContainer struct {
	name      string
	offers    []share.Offer
	factories map[string]entry.Factory

	mu    sync.Mutex
	scope *share.Scope
}

// NewStaticContainer creates a container exposing the given factories.
func NewStaticContainer(name string, offers []share.Offer, factories map[string]entry.Factory) *StaticContainer {
	return &StaticContainer{name: name, offers: offers, factories: factories}
}

// SharedOffers returns the container's shared-dependency offers.
func (c *StaticContainer) SharedOffers() []share.Offer { return c.offers }

// Init stores the negotiated scope.
func (c *StaticContainer) Init(ctx context.Context, scope *share.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scope != nil {
		return errors.New("container already initialized")
	}
	c.scope = scope
	return nil
}

// Scope returns the scope passed at initialization, or nil.
func (c *StaticContainer) Scope() *share.Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// Factory returns the factory for an exposed alias.
func (c *StaticContainer) Factory(alias string) (entry.Factory, bool) {
	f, ok := c.factories[alias]
	return f, ok
}

// Aliases lists the exposed aliases, sorted.
func (c *StaticContainer) Aliases() []string {
	out := make([]string, 0, len(c.factories))
	for alias := range c.factories {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

var _ entry.Container = (*StaticContainer)(nil)
