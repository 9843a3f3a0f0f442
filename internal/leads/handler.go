package leads

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/glec-io/lead-pipeline/internal/observability/metrics"
	"github.com/glec-io/lead-pipeline/pkg/logging"
)

// Handler handles HTTP requests for lead submissions.
type Handler struct {
	intake  *IntakeService
	metrics *metrics.PipelineMetrics
	logger  *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(intake *IntakeService, m *metrics.PipelineMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		intake:  intake,
		metrics: m,
		logger:  logger,
	}
}

type errorBody struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Create handles POST /leads requests
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Error:   &errorBody{Code: "VALIDATION_ERROR", Message: "invalid JSON body"},
		})
		return
	}

	lead, err := h.intake.Submit(r.Context(), &req)
	if err != nil {
		var verrs ValidationErrors
		switch {
		case errors.As(err, &verrs):
			h.metrics.ObserveLead(string(req.Source), "invalid")
			writeJSON(w, http.StatusBadRequest, envelope{
				Success: false,
				Error: &errorBody{
					Code:    "VALIDATION_ERROR",
					Message: "please check the submitted fields",
					Details: verrs,
				},
			})
		case errors.Is(err, ErrDuplicateRequest):
			h.metrics.ObserveLead(string(req.Source), "duplicate")
			writeJSON(w, http.StatusConflict, envelope{
				Success: false,
				Error: &errorBody{
					Code:    "DUPLICATE_REQUEST",
					Message: "an identical submission was received moments ago",
				},
			})
		default:
			h.logger.Error("failed to create lead", "error", err)
			writeJSON(w, http.StatusInternalServerError, envelope{
				Success: false,
				Error:   &errorBody{Code: "INTERNAL_ERROR", Message: "failed to store submission"},
			})
		}
		return
	}

	h.metrics.ObserveLead(string(lead.Source), "created")
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: lead})
}
