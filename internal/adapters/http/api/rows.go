package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/curvewatch/internal/adapters/repository"
	"github.com/okian/curvewatch/internal/domain/model"
)

type rowsResponse struct {
	Count int               `json:"count"`
	Rows  []model.MetricRow `json:"rows"`
}

// RowsHandler serves filtered metric rows.
type RowsHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewRowsHandler creates a new rows handler.
func NewRowsHandler(deps Dependencies, maxLimit int) *RowsHandler {
	return &RowsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetRows handles GET /metrics-rows?series=&segment=&risk_group=&util_group=&limit=.
// A missing limit or one above the maximum is capped to the maximum.
func (h *RowsHandler) HandleGetRows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	q := r.URL.Query()
	limit := h.maxLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, h.maxLimit)
	}

	rows, err := h.deps.Rows(r.Context(), repository.Filter{
		Series:    q.Get("series"),
		Segment:   q.Get("segment"),
		RiskGroup: q.Get("risk_group"),
		UtilGroup: q.Get("util_group"),
		Limit:     limit,
	})
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsResponse{Count: len(rows), Rows: rows})
}
