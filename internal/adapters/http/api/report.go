package api

import (
	"net/http"

	"github.com/okian/curvewatch/internal/domain/model"
)

type validationResponse struct {
	RunID      string             `json:"run_id"`
	Validation []model.Validation `json:"validation"`
}

type profileResponse struct {
	RunID   string         `json:"run_id"`
	Profile *model.Profile `json:"profile"`
}

// ReportHandler serves the data-quality profile and the validation summary.
type ReportHandler struct {
	deps Dependencies
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps Dependencies) *ReportHandler {
	return &ReportHandler{deps: deps}
}

// HandleGetProfile handles GET /profile.
func (h *ReportHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	run, err := h.deps.Latest(r.Context())
	if err != nil {
		writeLookupError(w, err)
		return
	}
	p := run.Profile
	if p == nil {
		p = &model.Profile{}
	}
	writeJSON(w, http.StatusOK, profileResponse{RunID: run.RunID, Profile: p})
}

// HandleGetValidation handles GET /validation.
func (h *ReportHandler) HandleGetValidation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	run, err := h.deps.Latest(r.Context())
	if err != nil {
		writeLookupError(w, err)
		return
	}
	v := run.Validation
	if v == nil {
		v = []model.Validation{}
	}
	writeJSON(w, http.StatusOK, validationResponse{RunID: run.RunID, Validation: v})
}
