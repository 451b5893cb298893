package share

import (
	"fmt"
	"time"
)

// VersionConflictError reports an unsatisfiable singleton requirement in
// strict mode. It names the losing requester, the winning provider and
// both version ranges so operators can see exactly which two participants
// disagree. Fatal for the losing participant's load only.
type VersionConflictError struct {
	Package         string
	Origin          string // the requester whose requirement cannot be met
	RequiredVersion string
	ResolvedOrigin  string // participant that provided the winning instance
	ResolvedRange   string // range the winning participant required
	ResolvedVersion string
}

// Error returns the conflict message.
func (e *VersionConflictError) Error() string {
	return fmt.Sprintf(
		"shared package %q: %s requires %s but %s already resolved %s (required %s) with strict version checking",
		e.Package, e.Origin, e.RequiredVersion, e.ResolvedOrigin, e.ResolvedVersion, e.ResolvedRange,
	)
}

// NoProviderError reports an offer that cannot seed an instance: nobody
// has provided the package yet and the offer carries no usable copy.
type NoProviderError struct {
	Package    string
	Origin     string
	BadVersion string
}

// Error returns the message.
func (e *NoProviderError) Error() string {
	if e.BadVersion != "" {
		return fmt.Sprintf("shared package %q from %s: invalid provided version %q", e.Package, e.Origin, e.BadVersion)
	}
	return fmt.Sprintf("shared package %q from %s: no provider available", e.Package, e.Origin)
}

// Warning records a non-fatal version mismatch resolved by reusing the
// existing instance (soft-compatibility mode, singleton without strict
// version checking).
type Warning struct {
	Package         string
	Origin          string
	RequiredVersion string
	ResolvedOrigin  string
	ResolvedVersion string
	At              time.Time
}

// String renders the warning for logs and status output.
func (w Warning) String() string {
	return fmt.Sprintf("shared package %q: %s required %s, reusing %s from %s",
		w.Package, w.Origin, w.RequiredVersion, w.ResolvedVersion, w.ResolvedOrigin)
}
