// Package metrics provides Prometheus metrics collection for fedhost.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch kinds for FetchesTotal.
const (
	FetchManifest = "manifest"
	FetchEntry    = "entry"
	FetchModule   = "module"
)

// Collector holds all Prometheus metrics for fedhost.
type Collector struct {
	reg prometheus.Registerer

	// Network fetches performed by the remote client
	FetchesTotal *prometheus.CounterVec

	// Module loads served to consumers
	ModuleLoadsTotal  *prometheus.CounterVec
	ModuleLoadSeconds *prometheus.HistogramVec

	// Manifest lifecycle
	ManifestReloads      prometheus.Counter
	ManifestReloadErrors prometheus.Counter
}

// New creates a collector registered on the default registry.
func New() *Collector {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a collector registered on the given registry.
// Tests use a fresh registry to avoid duplicate registration.
func NewWith(reg prometheus.Registerer) *Collector {
	return &Collector{
		reg: reg,

		FetchesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fedhost",
				Name:      "fetches_total",
				Help:      "Total remote fetches by kind and result",
			},
			[]string{"kind", "result"},
		),

		ModuleLoadsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fedhost",
				Name:      "module_loads_total",
				Help:      "Total exposed-module load requests by remote and result",
			},
			[]string{"remote", "result"},
		),
		ModuleLoadSeconds: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fedhost",
				Name:      "module_load_seconds",
				Help:      "Exposed-module load duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"remote"},
		),

		ManifestReloads: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "fedhost",
				Name:      "manifest_reloads_total",
				Help:      "Total successful manifest refreshes",
			},
		),
		ManifestReloadErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "fedhost",
				Name:      "manifest_reload_errors_total",
				Help:      "Total failed manifest refreshes",
			},
		),
	}
}

// StateFuncs provides live-state callbacks for gauge registration.
type StateFuncs struct {
	SharedInstances func() float64
	SharedWarnings  func() float64
	CachedModules   func() float64
	ManifestRemotes func() float64
}

// RegisterGauges registers gauges computed from live state. Nil
// callbacks are skipped.
func (c *Collector) RegisterGauges(s StateFuncs) {
	gauges := []struct {
		name string
		help string
		fn   func() float64
	}{
		{"shared_instances", "Shared dependency instances in the negotiation table", s.SharedInstances},
		{"shared_warnings", "Recorded soft-compatibility version warnings", s.SharedWarnings},
		{"cached_modules", "Entries in the loaded-module cache", s.CachedModules},
		{"manifest_remotes", "Remotes in the current manifest", s.ManifestRemotes},
	}
	for _, g := range gauges {
		if g.fn == nil {
			continue
		}
		promauto.With(c.reg).NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: "fedhost", Name: g.name, Help: g.help},
			g.fn,
		)
	}
}
