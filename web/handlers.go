package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modfed/fedhost/app"
	"github.com/modfed/fedhost/domain/entry"
	"github.com/modfed/fedhost/domain/manifest"
	"github.com/modfed/fedhost/domain/share"
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	Host          string               `json:"host"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	Remotes       []app.RemoteStatus   `json:"remotes"`
	Shared        []share.InstanceInfo `json:"shared"`
	Warnings      []warningInfo        `json:"warnings"`
	CachedModules int                  `json:"cached_modules"`
}

type warningInfo struct {
	Package         string    `json:"package"`
	Origin          string    `json:"origin"`
	RequiredVersion string    `json:"required_version"`
	ResolvedVersion string    `json:"resolved_version"`
	ResolvedOrigin  string    `json:"resolved_origin"`
	At              time.Time `json:"at"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	warnings := h.negotiator.Warnings()
	infos := make([]warningInfo, 0, len(warnings))
	for _, warning := range warnings {
		infos = append(infos, warningInfo{
			Package:         warning.Package,
			Origin:          warning.Origin,
			RequiredVersion: warning.RequiredVersion,
			ResolvedVersion: warning.ResolvedVersion,
			ResolvedOrigin:  warning.ResolvedOrigin,
			At:              warning.At,
		})
	}

	respondJSON(w, http.StatusOK, statusResponse{
		Host:          h.hostName,
		UptimeSeconds: int64(h.clock.Now().Sub(h.startTime).Seconds()),
		Remotes:       h.loader.Remotes(),
		Shared:        h.negotiator.Instances(),
		Warnings:      infos,
		CachedModules: h.loader.CacheSize(),
	})
}

func (h *Handler) handleRemotes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.loader.Remotes())
}

func (h *Handler) handleLoadModule(w http.ResponseWriter, r *http.Request) {
	remoteName := chi.URLParam(r, "remote")
	alias := r.URL.Query().Get("alias")
	if alias == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "missing alias query parameter"})
		return
	}

	start := h.clock.Now()
	exports, err := h.loader.LoadExposedModule(r.Context(), remoteName, alias)
	h.observeLoad(remoteName, start, err)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, exports)
}

func (h *Handler) handleManifestRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.manifests.Refresh(r.Context()); err != nil {
		if h.metrics != nil {
			h.metrics.ManifestReloadErrors.Inc()
		}
		respondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ManifestReloads.Inc()
	}
	respondJSON(w, http.StatusOK, h.loader.Remotes())
}

func (h *Handler) observeLoad(remoteName string, start time.Time, err error) {
	if h.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	h.metrics.ModuleLoadsTotal.WithLabelValues(remoteName, result).Inc()
	h.metrics.ModuleLoadSeconds.WithLabelValues(remoteName).Observe(h.clock.Now().Sub(start).Seconds())
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError maps domain errors to HTTP status codes.
func respondError(w http.ResponseWriter, err error) {
	var (
		notFound    *app.ExposedModuleNotFoundError
		conflict    *share.VersionConflictError
		unreachable *entry.UnreachableError
		malformed   *entry.MalformedError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, manifest.ErrRemoteNotFound):
		status = http.StatusNotFound
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &conflict):
		status = http.StatusConflict
	case errors.As(err, &unreachable):
		status = http.StatusBadGateway
	case errors.As(err, &malformed):
		status = http.StatusBadGateway
	}

	respondJSON(w, status, map[string]string{"error": err.Error()})
}
