// Package share implements shared-dependency negotiation between a host
// and its remotes. Each participant declares the packages it needs (and
// usually bundles); the negotiator decides, per package, which copy every
// consumer receives at runtime.
package share

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Requirement declares a participant's constraints on a shared package.
type Requirement struct {
	Package         string
	RequiredVersion string // semver range; empty matches any version
	Singleton       bool
	StrictVersion   bool
	Eager           bool
}

// Provider supplies a participant's own bundled copy of a shared package.
// It is invoked at most once per instance, on first access (or immediately
// for eager requirements).
type Provider func(ctx context.Context) (any, error)

// Offer couples a requirement with the version and provider the
// participant bundles. Version and Provider may be empty when the
// participant only consumes and relies on another participant to provide.
type Offer struct {
	Requirement
	Version  string
	Provider Provider
}

// rangeSatisfied reports whether version v satisfies the given semver
// range. An empty range accepts any version.
func rangeSatisfied(rangeStr string, v *semver.Version) (bool, error) {
	if rangeStr == "" {
		return true, nil
	}
	c, err := semver.NewConstraint(rangeStr)
	if err != nil {
		return false, fmt.Errorf("parse version range %q: %w", rangeStr, err)
	}
	return c.Check(v), nil
}
