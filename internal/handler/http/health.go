// Package http holds the API server plumbing: middleware, request metrics
// and the health, readiness and liveness probes.
package http

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"notify-dispatch/internal/handler/http/respond"
	"notify-dispatch/internal/usecase/notify"
)

// HealthResponse represents the JSON response for health check endpoints.
type HealthResponse struct {
	Status    string                 `json:"status"`    // "healthy", "degraded" or "unhealthy"
	Timestamp string                 `json:"timestamp"` // ISO 8601 format
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus represents the status of a single health check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// BreakerReporter exposes per-channel circuit breaker state.
type BreakerReporter interface {
	ChannelHealth(ctx context.Context) ([]notify.ChannelHealthStatus, error)
}

// HealthHandler reports database and channel health.
// DB is nil when the in-memory store is used.
type HealthHandler struct {
	DB       *sql.DB
	Channels BreakerReporter
	Version  string
}

// ServeHTTP returns 503 only when a dependency is down. Open circuit
// breakers degrade the status but the service keeps accepting messages.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	if h.DB != nil {
		checks["database"] = h.checkDatabase(ctx)
	} else {
		checks["database"] = CheckStatus{Status: "healthy", Message: "in-memory store"}
	}
	if h.Channels != nil {
		checks["channels"] = h.checkChannels(ctx)
	}

	status := "healthy"
	for _, c := range checks {
		switch c.Status {
		case "unhealthy":
			status = "unhealthy"
		case "degraded":
			if status == "healthy" {
				status = "degraded"
			}
		}
	}
	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if err := h.DB.PingContext(ctx); err != nil {
		slog.WarnContext(ctx, "health: database ping failed", slog.String("error", respond.SanitizeError(err)))
		return CheckStatus{Status: "unhealthy", Message: "database unreachable"}
	}

	stats := h.DB.Stats()
	details := map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
	if stats.MaxOpenConnections > 0 {
		utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
		details["utilization_percent"] = utilization
		if utilization >= 80.0 {
			return CheckStatus{Status: "degraded", Message: "connection pool utilization above 80%", Details: details}
		}
	}
	return CheckStatus{Status: "healthy", Details: details}
}

func (h *HealthHandler) checkChannels(ctx context.Context) CheckStatus {
	statuses, err := h.Channels.ChannelHealth(ctx)
	if err != nil {
		slog.WarnContext(ctx, "health: channel store failed", slog.String("error", respond.SanitizeError(err)))
		return CheckStatus{Status: "unhealthy", Message: "channel store unavailable"}
	}

	enabled := 0
	var open []string
	for _, s := range statuses {
		if s.Enabled {
			enabled++
		}
		if s.CircuitBreakerOpen {
			open = append(open, string(s.Type)+"/"+s.Name)
		}
	}
	details := map[string]any{"configured": len(statuses), "enabled": enabled}
	if len(open) > 0 {
		details["open_circuits"] = open
		return CheckStatus{Status: "degraded", Message: "some channels are short-circuited", Details: details}
	}
	return CheckStatus{Status: "healthy", Details: details}
}

// ReadyHandler answers readiness probes. Without a database it is always ready.
type ReadyHandler struct {
	DB *sql.DB
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			http.Error(w, "database not ready", http.StatusServiceUnavailable)
			return
		}
	}
	writeText(w, "ready")
}

// LiveHandler answers liveness probes.
type LiveHandler struct{}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeText(w, "alive")
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Warn("failed to write probe response", slog.Any("error", err))
	}
}
