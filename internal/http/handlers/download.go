package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/glec-io/lead-pipeline/internal/downloads"
	"github.com/glec-io/lead-pipeline/internal/observability/metrics"
	"github.com/glec-io/lead-pipeline/pkg/logging"
)

type downloadResolver interface {
	Resolve(ctx context.Context, rawToken string) (string, error)
}

// DownloadHandler redeems library download tokens.
type DownloadHandler struct {
	svc     downloadResolver
	metrics *metrics.PipelineMetrics
	logger  *logging.Logger
}

func NewDownloadHandler(svc downloadResolver, m *metrics.PipelineMetrics, logger *logging.Logger) *DownloadHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DownloadHandler{svc: svc, metrics: m, logger: logger}
}

// Get handles GET /api/v1/library/download/{token}: a valid token
// redirects to the signed file URL.
func (h *DownloadHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing download token")
		return
	}

	url, err := h.svc.Resolve(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, downloads.ErrTokenExpired):
			h.metrics.ObserveDownload("expired")
			respondError(w, http.StatusGone, "EXPIRED", "this download link has expired")
		case errors.Is(err, downloads.ErrTokenConsumed):
			h.metrics.ObserveDownload("consumed")
			respondError(w, http.StatusGone, "EXPIRED", "this download link was already used")
		case errors.Is(err, downloads.ErrTokenInvalid):
			h.metrics.ObserveDownload("invalid")
			respondError(w, http.StatusUnauthorized, "AUTH_ERROR", "invalid download token")
		case errors.Is(err, downloads.ErrItemNotFound):
			h.metrics.ObserveDownload("not_found")
			respondError(w, http.StatusNotFound, "NOT_FOUND", "the requested resource is no longer available")
		default:
			h.logger.Error("download resolution failed", "error", err)
			h.metrics.ObserveDownload("error")
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to prepare download")
		}
		return
	}

	h.metrics.ObserveDownload("ok")
	http.Redirect(w, r, url, http.StatusFound)
}
