package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sync"

	"github.com/modfed/fedhost/domain/entry"
	"github.com/modfed/fedhost/domain/share"
)

// container adapts a fetched entry descriptor to the runtime container
// contract. Exposed module bodies and shared-dependency copies are
// fetched lazily, relative to the entry location.
type container struct {
	desc   *entry.Descriptor
	base   string
	client *Client

	mu    sync.Mutex
	scope *share.Scope
}

func newContainer(desc *entry.Descriptor, base string, client *Client) *container {
	return &container{desc: desc, base: base, client: client}
}

// SharedOffers builds negotiation offers from the entry's shared
// declarations. A declaration with a payload location provides the
// remote's own bundled copy; one without only consumes.
func (c *container) SharedOffers() []share.Offer {
	offers := make([]share.Offer, 0, len(c.desc.Shared))
	for _, dep := range c.desc.Shared {
		offer := share.Offer{
			Requirement: dep.Requirement(),
			Version:     dep.Version,
		}
		if dep.Location != "" {
			location := resolveRef(c.base, dep.Location)
			remoteName := c.desc.Name
			offer.Provider = func(ctx context.Context) (any, error) {
				exports, _, err := c.client.FetchModule(ctx, remoteName, location)
				if err != nil {
					return nil, err
				}
				return exports, nil
			}
		}
		offers = append(offers, offer)
	}
	return offers
}

// Init stores the negotiated scope. The loader guarantees a single call
// per host session before any factory runs.
func (c *container) Init(ctx context.Context, scope *share.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scope != nil {
		return errors.New("container already initialized")
	}
	c.scope = scope
	return nil
}

// Factory returns a lazy thunk fetching the exposed module's payload and
// wiring in the shared packages it consumes.
func (c *container) Factory(alias string) (entry.Factory, bool) {
	modulePath, ok := c.desc.Exposes[alias]
	if !ok {
		return nil, false
	}
	location := resolveRef(c.base, modulePath)

	return func(ctx context.Context) (entry.Exports, error) {
		c.mu.Lock()
		scope := c.scope
		c.mu.Unlock()
		if scope == nil {
			return nil, fmt.Errorf("remote %q: factory invoked before initialization", c.desc.Name)
		}

		exports, consumes, err := c.client.FetchModule(ctx, c.desc.Name, location)
		if err != nil {
			return nil, err
		}
		for _, pkg := range consumes {
			value, err := scope.Get(ctx, pkg)
			if err != nil {
				return nil, fmt.Errorf("remote %q module %q: %w", c.desc.Name, alias, err)
			}
			exports[pkg] = value
		}
		return exports, nil
	}, true
}

// Aliases lists the exposed aliases.
func (c *container) Aliases() []string {
	return c.desc.Aliases()
}

var _ entry.Container = (*container)(nil)

// modulePayload is the long form of a module document.
type modulePayload struct {
	Exports  map[string]any `json:"exports"`
	Consumes []string       `json:"consumes"`
}

// parseModule decodes a module payload. A document with an "exports" or
// "consumes" key uses the long form; any other JSON object is treated as
// the exports themselves.
func parseModule(data []byte) (entry.Exports, []string, error) {
	var p modulePayload
	if err := json.Unmarshal(data, &p); err == nil && (p.Exports != nil || p.Consumes != nil) {
		if p.Exports == nil {
			p.Exports = make(map[string]any)
		}
		return entry.Exports(p.Exports), p.Consumes, nil
	}

	var whole map[string]any
	if err := json.Unmarshal(data, &whole); err != nil {
		return nil, nil, fmt.Errorf("not a JSON object: %w", err)
	}
	return entry.Exports(whole), nil, nil
}

// resolveRef resolves a module reference against the entry location.
func resolveRef(base, ref string) string {
	if u, err := url.Parse(base); err == nil && u.Scheme != "" && u.Scheme != "file" {
		r, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return u.ResolveReference(r).String()
	}
	basePath, _ := localPath(base)
	return path.Join(path.Dir(basePath), ref)
}
