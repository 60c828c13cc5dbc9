package api

import (
	"net/http"
	"strconv"

	"github.com/okian/curvewatch/internal/domain/model"
)

type triggerResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// RunsHandler serves the latest run and accepts run triggers.
type RunsHandler struct {
	deps Dependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps Dependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// HandleGetLatest handles GET /runs/latest?rows=true.
// Rows are omitted unless asked for.
func (h *RunsHandler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	withRows := false
	if v := r.URL.Query().Get("rows"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		withRows = b
	}

	run, err := h.deps.Latest(r.Context())
	if err != nil {
		writeLookupError(w, err)
		return
	}

	out := *run
	out.Profile = nil
	out.Validation = nil
	if withRows {
		out.Rows = present(run, run.Rows)
	} else {
		out.Rows = []model.MetricRow{}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandlePostRun handles POST /runs.
func (h *RunsHandler) HandlePostRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	runID, started := h.deps.TriggerRun(r.Context())
	if !started {
		writeError(w, http.StatusConflict, "run_in_flight", ErrRunInFlight)
		return
	}
	writeJSON(w, http.StatusAccepted, triggerResponse{Status: "accepted", RunID: runID})
}
