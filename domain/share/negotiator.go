package share

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
)

// Clock abstracts time for warning timestamps.
type Clock interface {
	Now() time.Time
}

// requirementRecord remembers who required what, for status output.
type requirementRecord struct {
	Origin string
	Requirement
}

// Negotiator reconciles shared-dependency requirements across the host
// and its remotes. Registration is incremental: the host registers first,
// then each remote as its entry is loaded. All writes to the instance
// table go through the negotiator; registration order is serialized, so
// outcomes are deterministic for a given load order.
type Negotiator struct {
	logger zerolog.Logger
	clock  Clock

	mu           sync.Mutex
	singletons   map[string]*Instance
	private      []*Instance
	privateByKey map[string]*Instance
	records      map[string][]requirementRecord
	rounds       map[string]error // per-origin outcome; conflicts are final
	order        []string
	warnings     []Warning
}

// NewNegotiator creates an empty negotiator.
func NewNegotiator(logger zerolog.Logger, clock Clock) *Negotiator {
	return &Negotiator{
		logger:       logger.With().Str("component", "negotiator").Logger(),
		clock:        clock,
		singletons:   make(map[string]*Instance),
		privateByKey: make(map[string]*Instance),
		records:      make(map[string][]requirementRecord),
		rounds:       make(map[string]error),
	}
}

// Register processes one participant's offers, in offer order. Every
// offer in the round is processed even when an earlier one fails, so one
// bad declaration never drops the rest of a participant's requirements.
// Register is idempotent per origin: a repeated registration returns the
// recorded outcome of the first. A strict-version conflict fails this
// origin's round permanently for the session; other failures leave no
// record and may be retried. Failures never affect other origins.
func (n *Negotiator) Register(ctx context.Context, origin string, offers []Offer) error {
	n.mu.Lock()
	if err, ok := n.rounds[origin]; ok {
		n.mu.Unlock()
		return err
	}

	var (
		eager []*Instance
		errs  []error
	)
	for _, o := range offers {
		inst, err := n.negotiate(origin, o)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if o.Eager && inst != nil && inst.provided() {
			eager = append(eager, inst)
		}
	}
	if err := errors.Join(errs...); err != nil {
		var conflict *VersionConflictError
		if errors.As(err, &conflict) {
			n.rounds[origin] = err
		}
		n.mu.Unlock()
		return err
	}
	n.rounds[origin] = nil
	n.order = append(n.order, origin)
	n.mu.Unlock()

	// Eager requirements execute immediately. A failed fetch here is
	// transient: the requirements stand, and the value is retried on the
	// next scope access.
	for _, inst := range eager {
		if _, err := inst.Resolve(ctx); err != nil {
			return fmt.Errorf("eager shared %s from %s: %w", inst.Package(), origin, err)
		}
	}
	return nil
}

// negotiate applies the decision procedure for a single offer.
// Caller holds n.mu.
func (n *Negotiator) negotiate(origin string, o Offer) (*Instance, error) {
	if o.Package == "" {
		return nil, fmt.Errorf("shared offer from %s: empty package name", origin)
	}
	n.records[o.Package] = append(n.records[o.Package], requirementRecord{Origin: origin, Requirement: o.Requirement})

	// Non-singleton packages never share: every requester gets its own
	// independently resolved copy.
	if !o.Singleton {
		key := origin + "\x00" + o.Package
		if inst, ok := n.privateByKey[key]; ok {
			return inst, nil
		}
		inst, err := newInstance(origin, o)
		if err != nil {
			return nil, err
		}
		n.privateByKey[key] = inst
		n.private = append(n.private, inst)
		return inst, nil
	}

	existing, ok := n.singletons[o.Package]
	if !ok {
		// First requester seeds the instance, as a placeholder when it
		// only consumes. The host registers before any remote, so a
		// host-provided copy wins by construction.
		inst, err := newInstance(origin, o)
		if err != nil {
			return nil, err
		}
		n.singletons[o.Package] = inst
		return inst, nil
	}

	if !existing.provided() {
		return n.fillPlaceholder(origin, existing, o)
	}

	satisfied, err := rangeSatisfied(o.RequiredVersion, existing.version)
	if err != nil {
		return nil, fmt.Errorf("shared %s from %s: %w", o.Package, origin, err)
	}
	if satisfied {
		existing.markReused()
		return existing, nil
	}

	if o.StrictVersion {
		return nil, &VersionConflictError{
			Package:         o.Package,
			Origin:          origin,
			RequiredVersion: o.RequiredVersion,
			ResolvedOrigin:  existing.origin,
			ResolvedRange:   existing.createdRange,
			ResolvedVersion: existing.version.String(),
		}
	}

	// Soft-compatibility mode: warn and hand back the existing instance
	// regardless of the mismatch.
	w := Warning{
		Package:         o.Package,
		Origin:          origin,
		RequiredVersion: o.RequiredVersion,
		ResolvedOrigin:  existing.origin,
		ResolvedVersion: existing.version.String(),
		At:              n.clock.Now(),
	}
	n.warnings = append(n.warnings, w)
	n.logger.Warn().
		Str("package", o.Package).
		Str("origin", origin).
		Str("required", o.RequiredVersion).
		Str("resolved", w.ResolvedVersion).
		Str("provided_by", w.ResolvedOrigin).
		Msg("shared version mismatch, reusing resolved instance")
	existing.markSuperseded()
	return existing, nil
}

// fillPlaceholder resolves an offer against a singleton instance seeded
// by a consumer-only requirement. The first participant that brings a
// copy fills the placeholder; further consumer-only offers keep waiting.
// Caller holds n.mu.
func (n *Negotiator) fillPlaceholder(origin string, existing *Instance, o Offer) (*Instance, error) {
	if o.Version == "" && o.Provider == nil {
		existing.markReused()
		return existing, nil
	}
	if o.Version == "" || o.Provider == nil {
		return nil, &NoProviderError{Package: o.Package, Origin: origin}
	}
	v, err := semver.NewVersion(o.Version)
	if err != nil {
		return nil, &NoProviderError{Package: o.Package, Origin: origin, BadVersion: o.Version}
	}

	satisfied, err := rangeSatisfied(existing.createdRange, v)
	if err != nil {
		return nil, fmt.Errorf("shared %s from %s: %w", o.Package, existing.origin, err)
	}
	if !satisfied {
		if o.StrictVersion {
			return nil, &VersionConflictError{
				Package:         o.Package,
				Origin:          existing.origin,
				RequiredVersion: existing.createdRange,
				ResolvedOrigin:  origin,
				ResolvedRange:   o.RequiredVersion,
				ResolvedVersion: v.String(),
			}
		}
		w := Warning{
			Package:         o.Package,
			Origin:          existing.origin,
			RequiredVersion: existing.createdRange,
			ResolvedOrigin:  origin,
			ResolvedVersion: v.String(),
			At:              n.clock.Now(),
		}
		n.warnings = append(n.warnings, w)
		n.logger.Warn().
			Str("package", o.Package).
			Str("origin", w.Origin).
			Str("required", w.RequiredVersion).
			Str("resolved", w.ResolvedVersion).
			Str("provided_by", w.ResolvedOrigin).
			Msg("shared version mismatch, filling deferred requirement anyway")
	}

	existing.fill(origin, v, o.Provider)
	return existing, nil
}

// instanceFor returns the instance a given origin should receive for a
// package: its private copy if one exists, otherwise the singleton.
func (n *Negotiator) instanceFor(origin, pkg string) *Instance {
	n.mu.Lock()
	defer n.mu.Unlock()
	if inst, ok := n.privateByKey[origin+"\x00"+pkg]; ok {
		return inst
	}
	return n.singletons[pkg]
}

// ScopeFor returns a participant's view of the negotiated scope.
func (n *Negotiator) ScopeFor(origin string) *Scope {
	return &Scope{n: n, origin: origin}
}

// Warnings returns a copy of all recorded soft-compatibility warnings.
func (n *Negotiator) Warnings() []Warning {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Warning, len(n.warnings))
	copy(out, n.warnings)
	return out
}

// WarningCount returns the number of recorded warnings.
func (n *Negotiator) WarningCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.warnings)
}

// Origins returns participants in successful registration order.
func (n *Negotiator) Origins() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// InstanceInfo describes one instance for status output.
type InstanceInfo struct {
	Package   string `json:"package"`
	Version   string `json:"version"`
	Origin    string `json:"origin"`
	Singleton bool   `json:"singleton"`
	Status    string `json:"status"`
}

// Instances lists all instances, singletons first, sorted by package.
func (n *Negotiator) Instances() []InstanceInfo {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]InstanceInfo, 0, len(n.singletons)+len(n.private))
	for _, inst := range n.singletons {
		out = append(out, infoOf(inst))
	}
	for _, inst := range n.private {
		out = append(out, infoOf(inst))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Package != out[j].Package {
			return out[i].Package < out[j].Package
		}
		return out[i].Origin < out[j].Origin
	})
	return out
}

func infoOf(inst *Instance) InstanceInfo {
	return InstanceInfo{
		Package:   inst.pkg,
		Version:   inst.Version(),
		Origin:    inst.origin,
		Singleton: inst.singleton,
		Status:    inst.Status().String(),
	}
}
