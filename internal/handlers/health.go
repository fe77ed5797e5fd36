package handlers

import (
	"net/http"

	"tagify/internal/logging"
	"tagify/internal/startup"
)

// Health reports overall service health, including a database check.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	dbStatus := "ok"
	if err := h.db.Ping(r.Context()); err != nil {
		logging.Error("health check database ping failed: %v", err)
		dbStatus = "error"
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":   status,
		"version":  startup.Version,
		"database": dbStatus,
	})
}

// Livez is a trivial liveness probe.
func (h *Handlers) Livez(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		logging.Debug("failed to write liveness response: %v", err)
	}
}

// Readyz reports readiness to serve traffic.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		logging.Debug("failed to write readiness response: %v", err)
	}
}

// Version reports build information.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, startup.GetBuildInfo())
}
