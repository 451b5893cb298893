package share

import (
	"context"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Status tracks an instance through its negotiation lifecycle.
// An instance never re-enters StatusPending after reaching StatusResolved
// within one host session.
type Status int

const (
	StatusUnrequested Status = iota
	StatusPending
	StatusResolved
	StatusReused
	StatusSuperseded
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusUnrequested:
		return "unrequested"
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusReused:
		return "reused"
	case StatusSuperseded:
		return "superseded-by-warning"
	default:
		return "unknown"
	}
}

// Instance is a single resolved (or resolvable) copy of a shared package.
// For singleton packages one instance is shared by every compatible
// consumer; non-singleton packages get one instance per requester.
//
// An instance created from a consumer-only offer starts as a placeholder
// with no copy behind it; a later participant's provided copy fills it.
// Accessing an unfilled placeholder fails with *NoProviderError.
type Instance struct {
	pkg          string
	version      *semver.Version // nil until a copy is provided
	origin       string          // participant that provides the copy
	createdRange string          // range the creating participant required
	singleton    bool

	mu         sync.Mutex
	state      Status // unrequested -> pending -> resolved, one-way
	resolving  bool
	waitCh     chan struct{}
	provider   Provider
	value      any
	reuses     int
	superseded bool
}

func newInstance(origin string, o Offer) (*Instance, error) {
	inst := &Instance{
		pkg:          o.Package,
		origin:       origin,
		createdRange: o.RequiredVersion,
		singleton:    o.Singleton,
		state:        StatusUnrequested,
	}

	// Consumer-only offer: defer until another participant provides.
	if o.Version == "" && o.Provider == nil {
		return inst, nil
	}
	if o.Version == "" || o.Provider == nil {
		return nil, &NoProviderError{Package: o.Package, Origin: origin}
	}

	v, err := semver.NewVersion(o.Version)
	if err != nil {
		return nil, &NoProviderError{Package: o.Package, Origin: origin, BadVersion: o.Version}
	}
	inst.version = v
	inst.provider = o.Provider
	return inst, nil
}

// Package returns the package name this instance provides.
func (i *Instance) Package() string { return i.pkg }

// Version returns the provided version, or "unresolved" for an unfilled
// placeholder.
func (i *Instance) Version() string {
	if i.version == nil {
		return "unresolved"
	}
	return i.version.String()
}

// Origin returns the participant whose copy backs this instance.
func (i *Instance) Origin() string { return i.origin }

// Status returns the current lifecycle status.
func (i *Instance) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.statusLocked()
}

func (i *Instance) statusLocked() Status {
	if i.state == StatusResolved {
		if i.superseded {
			return StatusSuperseded
		}
		if i.reuses > 0 {
			return StatusReused
		}
	}
	return i.state
}

// provided reports whether a copy backs this instance.
func (i *Instance) provided() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.provider != nil
}

// fill attaches a participant's copy to an unfilled placeholder.
// Caller holds the negotiator mutex, which serializes all fills.
func (i *Instance) fill(origin string, v *semver.Version, p Provider) {
	i.mu.Lock()
	i.origin = origin
	i.version = v
	i.provider = p
	i.mu.Unlock()
}

// Resolve returns the instance value, invoking the provider on first
// access. Concurrent callers wait for the single in-flight resolution.
// A failed resolution is not cached; the next caller retries.
func (i *Instance) Resolve(ctx context.Context) (any, error) {
	i.mu.Lock()
	for {
		if i.state >= StatusResolved {
			v := i.value
			i.mu.Unlock()
			return v, nil
		}
		if !i.resolving {
			break
		}
		wait := i.waitCh
		i.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		i.mu.Lock()
	}
	if i.provider == nil {
		pkg, origin := i.pkg, i.origin
		i.mu.Unlock()
		return nil, &NoProviderError{Package: pkg, Origin: origin}
	}
	i.resolving = true
	i.state = StatusPending
	i.waitCh = make(chan struct{})
	provider := i.provider
	i.mu.Unlock()

	value, err := provider(ctx)

	i.mu.Lock()
	i.resolving = false
	close(i.waitCh)
	if err != nil {
		i.mu.Unlock()
		return nil, err
	}
	i.value = value
	i.state = StatusResolved
	i.mu.Unlock()
	return value, nil
}

func (i *Instance) markReused() {
	i.mu.Lock()
	i.reuses++
	i.mu.Unlock()
}

func (i *Instance) markSuperseded() {
	i.mu.Lock()
	i.superseded = true
	i.mu.Unlock()
}
