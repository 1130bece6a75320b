package api

import (
	"encoding/json"
	"net/http"

	"kv-migrator/internal/health"
	"kv-migrator/internal/logs"
	"kv-migrator/internal/metrics"
	"kv-migrator/internal/migrate"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProgressSource reports the counters of a running migration.
type ProgressSource interface {
	Progress() migrate.Summary
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	progress ProgressSource
	metrics  http.Handler
	analyzer *health.Analyzer
	logger   *logs.Logger
}

// NewHandler creates a new API handler. endpoints may be nil.
func NewHandler(
	progress ProgressSource,
	reg *metrics.Registry,
	logger *logs.Logger,
	endpoints health.EndpointStates,
) *Handler {
	analyzer := health.NewAnalyzer(reg, logger)
	if endpoints != nil {
		analyzer.WithEndpoints(endpoints)
	}
	return &Handler{
		progress: progress,
		metrics:  promhttp.HandlerFor(metrics.NewPrometheusRegistry(reg), promhttp.HandlerOpts{}),
		analyzer: analyzer,
		logger:   logger,
	}
}

/* ---------------- GET /progress ---------------- */

type progressResponse struct {
	migrate.Summary
	Elapsed string `json:"elapsed"`
}

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	s := h.progress.Progress()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(progressResponse{
		Summary: s,
		Elapsed: s.Elapsed.String(),
	})
}

/* ---------------- GET /metrics ---------------- */

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

/* ---------------- GET /health ---------------- */

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := h.analyzer.Analyze()
	w.Header().Set("Content-Type", "application/json")
	if report.OverallStatus == health.StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}
