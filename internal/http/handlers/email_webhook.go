package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/glec-io/lead-pipeline/internal/events"
	"github.com/glec-io/lead-pipeline/internal/leads"
	"github.com/glec-io/lead-pipeline/internal/observability/metrics"
	"github.com/glec-io/lead-pipeline/pkg/logging"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// eventRecorder is the slice of events.Store the handler needs.
type eventRecorder interface {
	Record(ctx context.Context, providerEmailID string, eventType events.Type, payload []byte) (bool, error)
}

// EmailWebhookHandler ingests email lifecycle events from the provider.
// Deliveries are verified with the provider's HMAC scheme, applied as
// monotone engagement updates, and recorded append-only. Every step is
// idempotent, so the 500 returned on a storage failure makes the
// provider's retry safe.
type EmailWebhookHandler struct {
	secret    []byte
	tolerance time.Duration
	repo      leads.Repository
	store     eventRecorder
	weights   leads.ScoreWeights
	metrics   *metrics.PipelineMetrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewEmailWebhookHandler creates the webhook handler. secret is the
// provider's signing secret ("whsec_" prefixed base64).
func NewEmailWebhookHandler(secret string, tolerance time.Duration, repo leads.Repository, store eventRecorder, weights leads.ScoreWeights, m *metrics.PipelineMetrics, logger *logging.Logger) (*EmailWebhookHandler, error) {
	raw, err := decodeWebhookSecret(secret)
	if err != nil {
		return nil, err
	}
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EmailWebhookHandler{
		secret:    raw,
		tolerance: tolerance,
		repo:      repo,
		store:     store,
		weights:   weights,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func decodeWebhookSecret(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("handlers: webhook secret required")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return nil, fmt.Errorf("handlers: webhook secret is not valid base64: %w", err)
	}
	return raw, nil
}

// verifySignature checks the svix-style headers: the signed content is
// "{id}.{timestamp}.{body}", the signature header holds space-separated
// "v1,<base64>" entries, and the timestamp must be inside the tolerance
// window in either direction.
func (h *EmailWebhookHandler) verifySignature(id, timestamp, sigHeader string, body []byte) bool {
	if id == "" || timestamp == "" || sigHeader == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if d := h.now().UTC().Sub(time.Unix(ts, 0)); d > h.tolerance || d < -h.tolerance {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, entry := range strings.Fields(sigHeader) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

// Handle processes POST /api/v1/webhooks/email.
func (h *EmailWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := h.now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unreadable request body")
		return
	}

	if !h.verifySignature(
		r.Header.Get("svix-id"),
		r.Header.Get("svix-timestamp"),
		r.Header.Get("svix-signature"),
		body,
	) {
		h.logger.Warn("rejected webhook with bad signature", "svix_id", r.Header.Get("svix-id"))
		h.metrics.ObserveWebhook("unknown", "bad_signature")
		respondError(w, http.StatusUnauthorized, "AUTH_ERROR", "invalid webhook signature")
		return
	}

	evt, eventType, err := events.Parse(body)
	if err != nil {
		if evt != nil && evt.Data.EmailID != "" {
			// Verified but unsupported type; acknowledge so the provider
			// does not retry it forever.
			h.logger.Info("ignoring unsupported event type", "type", evt.Type, "email_id", evt.Data.EmailID)
			h.metrics.ObserveWebhook(evt.Type, "ignored")
			respondData(w, http.StatusOK, map[string]any{"handled": false})
			return
		}
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed event payload")
		return
	}

	if err := h.apply(r.Context(), evt, eventType); err != nil {
		h.logger.Error("webhook processing failed", "error", err, "type", eventType, "email_id", evt.Data.EmailID)
		h.metrics.ObserveWebhook(string(eventType), "error")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to process event")
		return
	}

	duplicate, err := h.record(r.Context(), evt.Data.EmailID, eventType, body)
	if err != nil {
		h.logger.Error("webhook event record failed", "error", err, "type", eventType, "email_id", evt.Data.EmailID)
		h.metrics.ObserveWebhook(string(eventType), "error")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to record event")
		return
	}

	status := "processed"
	if duplicate {
		status = "duplicate"
	}
	h.metrics.ObserveWebhook(string(eventType), status)
	h.metrics.ObserveWebhookLatency(string(eventType), h.now().Sub(start).Seconds())
	respondData(w, http.StatusOK, map[string]any{"handled": true, "duplicate": duplicate})
}

// apply performs the event's side effects. Flag updates are monotone and
// suppression inserts are conflict-free, so re-applying on a provider
// retry cannot corrupt state; recording the event happens after, in
// record, to keep the retry path open when any step here fails.
func (h *EmailWebhookHandler) apply(ctx context.Context, evt *events.ProviderEvent, eventType events.Type) error {
	at := evt.CreatedAt.UTC()
	if at.IsZero() {
		at = h.now().UTC()
	}

	switch eventType {
	case events.TypeSent:
		return h.applyEngagement(ctx, evt, leads.EngagementSent, at)
	case events.TypeOpened:
		return h.applyEngagement(ctx, evt, leads.EngagementOpened, at)
	case events.TypeClicked:
		return h.applyEngagement(ctx, evt, leads.EngagementClicked, at)
	case events.TypeBounced, events.TypeComplained:
		return h.suppress(ctx, evt, eventType)
	case events.TypeDelivered:
		// Recorded for the audit trail; no lead state changes.
		return nil
	}
	return nil
}

func (h *EmailWebhookHandler) applyEngagement(ctx context.Context, evt *events.ProviderEvent, event leads.EngagementEvent, at time.Time) error {
	lead, err := h.repo.GetByDispatchID(ctx, evt.Data.EmailID)
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			// Mail that is not a lead confirmation (or whose dispatch id
			// was never recorded); nothing to update.
			h.logger.Info("event for unmatched email id", "email_id", evt.Data.EmailID, "event", event)
			return nil
		}
		return err
	}

	updated, err := h.repo.ApplyEngagement(ctx, lead.ID, event, at)
	if err != nil {
		return err
	}

	if h.weights.Rescore(updated) {
		if err := h.repo.UpdateDerived(ctx, updated.ID, updated.LeadScore, updated.LeadStatus); err != nil {
			return err
		}
		h.logger.Info("lead rescored",
			"lead_id", updated.ID,
			"score", updated.LeadScore,
			"status", updated.LeadStatus,
			"event", event,
		)
	}
	return nil
}

func (h *EmailWebhookHandler) suppress(ctx context.Context, evt *events.ProviderEvent, eventType events.Type) error {
	email := ""
	if lead, err := h.repo.GetByDispatchID(ctx, evt.Data.EmailID); err == nil {
		email = lead.Email
	} else if !errors.Is(err, leads.ErrLeadNotFound) {
		return err
	}
	if email == "" {
		email = evt.Recipient()
	}
	if email == "" {
		h.logger.Warn("suppression event without a recipient", "email_id", evt.Data.EmailID, "type", eventType)
		return nil
	}

	if err := h.repo.MarkSuppressed(ctx, email, string(eventType)); err != nil {
		return err
	}
	h.logger.Info("address suppressed", "email", email, "reason", eventType)
	return nil
}

// record appends the event; a conflict on (provider_email_id, event_type)
// marks the delivery as a replay.
func (h *EmailWebhookHandler) record(ctx context.Context, emailID string, eventType events.Type, body []byte) (duplicate bool, err error) {
	if h.store == nil {
		return false, nil
	}
	inserted, err := h.store.Record(ctx, emailID, eventType, body)
	if err != nil {
		return false, err
	}
	return !inserted, nil
}
