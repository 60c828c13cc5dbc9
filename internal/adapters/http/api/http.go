// Package api serves the latest run over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/curvewatch/internal/adapters/repository"
	"github.com/okian/curvewatch/internal/domain/model"
	"github.com/okian/curvewatch/internal/domain/ratio"
)

const defaultMaxRows = 1000

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// Latest returns the most recent run or repository.ErrNotFound.
	Latest(ctx context.Context) (*model.Run, error)

	// Rows returns presented metric rows of the latest run.
	Rows(ctx context.Context, f repository.Filter) ([]model.MetricRow, error)

	// TriggerRun starts a run in the background. It returns false when a
	// run is already in flight.
	TriggerRun(ctx context.Context) (runID string, started bool)
}

// Server wires HTTP routes for the read API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	runsHandler   *RunsHandler
	rowsHandler   *RowsHandler
	reportHandler *ReportHandler
}

// NewServer creates a new API server with all handlers.
// maxRows bounds the limit accepted by /metrics-rows.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxRows int) *Server {
	if maxRows < 1 {
		maxRows = defaultMaxRows
	}
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		runsHandler:   NewRunsHandler(deps),
		rowsHandler:   NewRowsHandler(deps, maxRows),
		reportHandler: NewReportHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/runs/latest", MetricsMiddleware(s.runsHandler.HandleGetLatest, "runs_latest"))
	mux.HandleFunc("/runs", MetricsMiddleware(s.runsHandler.HandlePostRun, "runs"))
	mux.HandleFunc("/metrics-rows", MetricsMiddleware(s.rowsHandler.HandleGetRows, "metrics_rows"))
	mux.HandleFunc("/profile", MetricsMiddleware(s.reportHandler.HandleGetProfile, "profile"))
	mux.HandleFunc("/validation", MetricsMiddleware(s.reportHandler.HandleGetValidation, "validation"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
}

// writeLookupError maps a failed run lookup to 404 or 500.
func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", ErrNoRun)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err)
}

// present applies the run's presentation rules to rows.
func present(run *model.Run, rows []model.MetricRow) []model.MetricRow {
	if run.Variant.ClampNegative {
		return ratio.ClampAll(rows)
	}
	return rows
}
