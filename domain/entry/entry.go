// Package entry defines the remote entry descriptor format and the
// container contract every loaded remote satisfies at runtime.
package entry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/modfed/fedhost/domain/share"
)

// SharedDep is one shared-dependency declaration in an entry descriptor.
// Version is the copy the remote bundles; Location points at the payload
// for that copy, relative to the entry location.
type SharedDep struct {
	Package         string `json:"package"`
	Version         string `json:"version,omitempty"`
	RequiredVersion string `json:"requiredVersion,omitempty"`
	Singleton       bool   `json:"singleton,omitempty"`
	StrictVersion   bool   `json:"strictVersion,omitempty"`
	Eager           bool   `json:"eager,omitempty"`
	Location        string `json:"location,omitempty"`
}

// Requirement converts the declaration to its negotiation form.
func (d SharedDep) Requirement() share.Requirement {
	return share.Requirement{
		Package:         d.Package,
		RequiredVersion: d.RequiredVersion,
		Singleton:       d.Singleton,
		StrictVersion:   d.StrictVersion,
		Eager:           d.Eager,
	}
}

// Descriptor is a remote's entry artifact: what it exposes and what it
// requires. It carries metadata only; exposed module bodies are fetched
// lazily when their factories are invoked.
type Descriptor struct {
	Name    string            `json:"name"`
	Exposes map[string]string `json:"exposes"`
	Shared  []SharedDep       `json:"shared,omitempty"`
}

// ParseDescriptor decodes and validates an entry document fetched for
// the named remote.
func ParseDescriptor(remote string, data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, &MalformedError{Remote: remote, Reason: "entry is not valid JSON", Err: err}
	}
	if strings.TrimSpace(d.Name) == "" {
		d.Name = remote
	}
	if len(d.Exposes) == 0 {
		return nil, &MalformedError{Remote: remote, Reason: "entry exposes no modules"}
	}
	for alias, path := range d.Exposes {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(path) == "" {
			return nil, &MalformedError{Remote: remote, Reason: fmt.Sprintf("exposure %q has empty alias or path", alias)}
		}
	}
	for _, s := range d.Shared {
		if strings.TrimSpace(s.Package) == "" {
			return nil, &MalformedError{Remote: remote, Reason: "shared declaration with empty package name"}
		}
	}
	return &d, nil
}

// Aliases returns the exposed aliases, sorted.
func (d *Descriptor) Aliases() []string {
	out := make([]string, 0, len(d.Exposes))
	for alias := range d.Exposes {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// Exports is the public exports object of a loaded module.
type Exports map[string]any

// Factory is a lazy thunk producing a module's exports. The module body
// does not execute (and no payload is fetched) until the factory runs.
type Factory func(ctx context.Context) (Exports, error)

// Container is the runtime record of a loaded remote entry. The host
// initializes it exactly once with the negotiated scope before invoking
// any factory.
type Container interface {
	// SharedOffers lists the remote's shared-dependency offers for
	// negotiation, in declaration order.
	SharedOffers() []share.Offer

	// Init hands the remote its negotiated shared scope. Called exactly
	// once per remote per host session, before any Factory call.
	Init(ctx context.Context, scope *share.Scope) error

	// Factory returns the lazy thunk for an exposed alias.
	Factory(alias string) (Factory, bool)

	// Aliases lists the exposed aliases.
	Aliases() []string
}
