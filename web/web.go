// Package web provides the HTTP status and module-serving surface.
// The consumer-facing boundary stays app.LoaderService.LoadExposedModule;
// these endpoints expose it over HTTP alongside operational status.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/modfed/fedhost/adapters/metrics"
	"github.com/modfed/fedhost/app"
	"github.com/modfed/fedhost/domain/share"
	"github.com/modfed/fedhost/ports"
)

// Handler provides the HTTP endpoints.
type Handler struct {
	loader     *app.LoaderService
	manifests  *app.ManifestService
	negotiator *share.Negotiator
	metrics    *metrics.Collector
	metricsWeb http.Handler
	metricsURL string
	hostName   string
	logger     zerolog.Logger
	clock      ports.Clock
	startTime  time.Time
}

// Deps contains dependencies for the web handler.
type Deps struct {
	Loader     *app.LoaderService
	Manifests  *app.ManifestService
	Negotiator *share.Negotiator
	Metrics    *metrics.Collector // optional
	MetricsWeb http.Handler       // optional /metrics handler
	MetricsURL string
	HostName   string
	Logger     zerolog.Logger
	Clock      ports.Clock
}

// NewHandler creates a new web handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		loader:     deps.Loader,
		manifests:  deps.Manifests,
		negotiator: deps.Negotiator,
		metrics:    deps.Metrics,
		metricsWeb: deps.MetricsWeb,
		metricsURL: deps.MetricsURL,
		hostName:   deps.HostName,
		logger:     deps.Logger.With().Str("component", "web").Logger(),
		clock:      deps.Clock,
		startTime:  deps.Clock.Now(),
	}
}

// Router builds the chi router with all routes registered.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requestLogger)

	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/remotes", h.handleRemotes)
		r.Get("/modules/{remote}", h.handleLoadModule)
		r.Post("/manifest/refresh", h.handleManifestRefresh)
	})

	if h.metricsWeb != nil {
		r.Handle(h.metricsURL, h.metricsWeb)
	}
	return r
}

// requestLogger logs each request with method, path, status and timing.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := h.clock.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("elapsed", h.clock.Now().Sub(start)).
			Msg("request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
