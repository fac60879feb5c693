package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checks    map[string]ReadyCheck
	timeout   time.Duration
	responder responder
}

// NewHealthHandler builds the probes. Each check runs with timeout on every readiness call.
func NewHealthHandler(checks map[string]ReadyCheck, timeout time.Duration, logger *slog.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{checks: checks, timeout: timeout, responder: newResponder(logger, nil)}
}

// Live always answers ok while the process is running.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every registered check and lists the failing ones.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failures := map[string]string{}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		h.responder.loggerFor(r.Context()).WarnContext(r.Context(), "readiness check failed", "failures", failures)
		h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, errorResponse{
			Message: "not ready",
			Errors:  failures,
		})
		return
	}
	h.Live(w, r)
}
