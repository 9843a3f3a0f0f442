package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/glec-io/lead-pipeline/pkg/logging"
)

type factsFetcher interface {
	FetchLeads(ctx context.Context, from, to time.Time) ([]LeadFacts, error)
}

// Handler serves the admin analytics report.
type Handler struct {
	repo   factsFetcher
	logger *logging.Logger
}

func NewHandler(repo factsFetcher, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Report handles GET /api/v1/admin/leads/analytics. The range defaults to
// the last 30 days; to is exclusive.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	granularity, err := ParseGranularity(q.Get("granularity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "granularity must be day, week or month")
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := q.Get("date_from"); raw != "" {
		if from, err = parseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "date_from must be YYYY-MM-DD or RFC3339")
			return
		}
	}
	if raw := q.Get("date_to"); raw != "" {
		if to, err = parseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "date_to must be YYYY-MM-DD or RFC3339")
			return
		}
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "date_to must be after date_from")
		return
	}

	facts, err := h.repo.FetchLeads(r.Context(), from, to)
	if err != nil {
		h.logger.Error("analytics query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to compute analytics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    Aggregate(facts, granularity, from, to),
	})
}
