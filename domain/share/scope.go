package share

import (
	"context"
	"fmt"
)

// Scope is one participant's view of the negotiated shared dependencies.
// Containers receive a scope during initialization and use it to obtain
// shared instances instead of loading their own bundled copies.
type Scope struct {
	n      *Negotiator
	origin string
}

// Origin returns the participant this scope belongs to.
func (s *Scope) Origin() string { return s.origin }

// Get returns the shared value for pkg, triggering resolution of the
// winning copy on first access.
func (s *Scope) Get(ctx context.Context, pkg string) (any, error) {
	inst := s.n.instanceFor(s.origin, pkg)
	if inst == nil {
		return nil, fmt.Errorf("shared package %q not negotiated for %s", pkg, s.origin)
	}
	return inst.Resolve(ctx)
}

// Has reports whether pkg was negotiated for this participant.
func (s *Scope) Has(pkg string) bool {
	return s.n.instanceFor(s.origin, pkg) != nil
}
