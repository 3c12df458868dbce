package handlers

import (
	"context"
	"net/http"
	"time"
)

// BuildInfo describes the running binary for the health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// ReadinessProbe reports whether a downstream dependency can serve traffic.
type ReadinessProbe func(ctx context.Context) error

// HealthHandlers serves the /healthz and /readyz endpoints.
type HealthHandlers struct {
	build  BuildInfo
	clock  func() time.Time
	probes map[string]ReadinessProbe
}

// HealthOption customises HealthHandlers construction.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo attaches build metadata to health responses.
func WithHealthBuildInfo(build BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthClock overrides the time source, mainly for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		h.clock = clock
	}
}

// WithReadinessProbe registers a named dependency probe checked by /readyz.
func WithReadinessProbe(name string, probe ReadinessProbe) HealthOption {
	return func(h *HealthHandlers) {
		if name == "" || probe == nil {
			return
		}
		h.probes[name] = probe
	}
}

// NewHealthHandlers constructs health handlers with the provided options.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock:  time.Now,
		probes: make(map[string]ReadinessProbe),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthz reports liveness plus build metadata.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	payload := map[string]any{
		"status":    "ok",
		"timestamp": now.Format(time.RFC3339),
	}
	if h.build.Version != "" {
		payload["version"] = h.build.Version
	}
	if h.build.CommitSHA != "" {
		payload["commitSha"] = h.build.CommitSHA
	}
	if h.build.Environment != "" {
		payload["environment"] = h.build.Environment
	}
	if !h.build.StartedAt.IsZero() {
		payload["uptime"] = now.Sub(h.build.StartedAt).String()
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz runs the registered dependency probes and reports per-check status.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := make(map[string]string, len(h.probes))
	status := http.StatusOK
	overall := "ok"
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			overall = "unavailable"
			continue
		}
		checks[name] = "ok"
	}

	payload := map[string]any{
		"status":    overall,
		"timestamp": h.clock().UTC().Format(time.RFC3339),
	}
	if len(checks) > 0 {
		payload["checks"] = checks
	}
	writeJSONResponse(w, status, payload)
}
