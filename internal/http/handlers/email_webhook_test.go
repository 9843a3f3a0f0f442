package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glec-io/lead-pipeline/internal/events"
	"github.com/glec-io/lead-pipeline/internal/leads"
	"github.com/glec-io/lead-pipeline/pkg/logging"
)

const testWebhookSecret = "whsec_dGVzdC1zaWduaW5nLXNlY3JldA==" // "test-signing-secret"

type fakeRecorder struct {
	inserted bool
	err      error
	records  []string
}

func (f *fakeRecorder) Record(ctx context.Context, providerEmailID string, eventType events.Type, payload []byte) (bool, error) {
	f.records = append(f.records, providerEmailID+"/"+string(eventType))
	return f.inserted, f.err
}

func signWebhook(t *testing.T, id, timestamp string, body []byte) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(testWebhookSecret, "whsec_"))
	if err != nil {
		t.Fatalf("decode secret: %v", err)
	}
	mac := hmac.New(sha256.New, raw)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newWebhookHandler(t *testing.T, repo leads.Repository, store eventRecorder) *EmailWebhookHandler {
	t.Helper()
	h, err := NewEmailWebhookHandler(testWebhookSecret, 5*time.Minute, repo, store, leads.DefaultScoreWeights(), nil, logging.New("error"))
	if err != nil {
		t.Fatalf("NewEmailWebhookHandler: %v", err)
	}
	return h
}

func webhookRequest(t *testing.T, body []byte, sign bool) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/email", bytes.NewReader(body))
	id := "msg_header_1"
	ts := fmt.Sprintf("%d", time.Now().Unix())
	req.Header.Set("svix-id", id)
	req.Header.Set("svix-timestamp", ts)
	if sign {
		req.Header.Set("svix-signature", signWebhook(t, id, ts, body))
	} else {
		req.Header.Set("svix-signature", "v1,Zm9yZ2VkCg==")
	}
	return req
}

func seedLead(t *testing.T, repo *leads.InMemoryRepository, dispatchID string) *leads.Lead {
	t.Helper()
	lead, err := repo.Create(context.Background(), &leads.CreateLeadRequest{
		Source:      leads.SourceContactForm,
		CompanyName: "Acme Freight",
		ContactName: "Lee Jun",
		Email:       "jun@acmefreight.io",
		Phone:       "010-1234-5678",
		Message:     "We want to measure our fleet emissions.",
	})
	if err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	if err := repo.SetDispatchID(context.Background(), lead.ID, dispatchID); err != nil {
		t.Fatalf("set dispatch id: %v", err)
	}
	return lead
}

func eventBody(t *testing.T, eventType, emailID string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"type":       eventType,
		"created_at": time.Now().UTC().Format(time.RFC3339),
		"data":       map[string]any{"email_id": emailID, "to": []string{"jun@acmefreight.io"}},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return body
}

func TestWebhookOpenedUpdatesLead(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo, "msg-1")
	store := &fakeRecorder{inserted: true}
	h := newWebhookHandler(t, repo, store)

	rr := httptest.NewRecorder()
	h.Handle(rr, webhookRequest(t, eventBody(t, "email.opened", "msg-1"), true))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rr.Code, rr.Body.String())
	}

	updated, _ := repo.GetByID(context.Background(), lead.ID)
	if !updated.Engagement.EmailOpened {
		t.Fatal("email_opened not set")
	}
	if updated.LeadStatus != leads.StatusOpened {
		t.Errorf("status = %s, want OPENED", updated.LeadStatus)
	}
	// opened +10, corporate domain +5
	if updated.LeadScore != 15 {
		t.Errorf("score = %d, want 15", updated.LeadScore)
	}
}

func TestWebhookScoresWithoutDomainBonusWhenDisabled(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo, "msg-1")
	store := &fakeRecorder{inserted: true}

	weights := leads.DefaultScoreWeights()
	weights.CorporateDomain = 0
	h, err := NewEmailWebhookHandler(testWebhookSecret, 5*time.Minute, repo, store, weights, nil, logging.New("error"))
	if err != nil {
		t.Fatalf("NewEmailWebhookHandler: %v", err)
	}

	rr := httptest.NewRecorder()
	h.Handle(rr, webhookRequest(t, eventBody(t, "email.opened", "msg-1"), true))
	if rr.Code != http.StatusOK {
		t.Fatalf("opened status = %d; body: %s", rr.Code, rr.Body.String())
	}
	updated, _ := repo.GetByID(context.Background(), lead.ID)
	if updated.LeadScore != 10 {
		t.Errorf("score after opened = %d, want 10", updated.LeadScore)
	}

	rr = httptest.NewRecorder()
	h.Handle(rr, webhookRequest(t, eventBody(t, "email.clicked", "msg-1"), true))
	if rr.Code != http.StatusOK {
		t.Fatalf("clicked status = %d; body: %s", rr.Code, rr.Body.String())
	}
	updated, _ = repo.GetByID(context.Background(), lead.ID)
	if updated.LeadScore != 30 {
		t.Errorf("score after clicked = %d, want 30", updated.LeadScore)
	}
	if updated.LeadStatus != leads.StatusDownloaded {
		t.Errorf("status = %s, want DOWNLOADED", updated.LeadStatus)
	}
	if len(store.records) != 1 || store.records[0] != "msg-1/opened" {
		t.Errorf("recorded = %v", store.records)
	}
}

func TestWebhookClickedFromNewJumpsToDownloaded(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo, "msg-2")
	h := newWebhookHandler(t, repo, &fakeRecorder{inserted: true})

	rr := httptest.NewRecorder()
	h.Handle(rr, webhookRequest(t, eventBody(t, "email.clicked", "msg-2"), true))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	updated, _ := repo.GetByID(context.Background(), lead.ID)
	if updated.LeadStatus != leads.StatusDownloaded {
		t.Errorf("status = %s, want DOWNLOADED", updated.LeadStatus)
	}
}

func TestWebhookBadSignature(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	h := newWebhookHandler(t, repo, &fakeRecorder{inserted: true})

	rr := httptest.NewRecorder()
	h.Handle(rr, webhookRequest(t, eventBody(t, "email.opened", "msg-1"), false))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "AUTH_ERROR") {
		t.Fatalf("body: %s", rr.Body.String())
	}
}

func TestWebhookStaleTimestamp(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	h := newWebhookHandler(t, repo, &fakeRecorder{inserted: true})

	body := eventBody(t, "email.opened", "msg-1")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/email", bytes.NewReader(body))
	id := "msg_header_1"
	ts := fmt.Sprintf("%d", time.Now().Add(-10*time.Minute).Unix())
	req.Header.Set("svix-id", id)
	req.Header.Set("svix-timestamp", ts)
	req.Header.Set("svix-signature", signWebhook(t, id, ts, body))

	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestWebhookReplayReportsDuplicate(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	seedLead(t, repo, "msg-3")
	h := newWebhookHandler(t, repo, &fakeRecorder{inserted: false})

	rr := httptest.NewRecorder()
	h.Handle(rr, webhookRequest(t, eventBody(t, "email.opened", "msg-3"), true))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp struct {
		Data struct {
			Duplicate bool `json:"duplicate"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.Duplicate {
		t.Fatalf("expected duplicate=true: %s", rr.Body.String())
	}
}

func TestWebhookUnmatchedEmailID(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	h := newWebhookHandler(t, repo, &fakeRecorder{inserted: true})

	rr := httptest.NewRecorder()
	h.Handle(rr, webhookRequest(t, eventBody(t, "email.opened", "msg-unknown"), true))

	if rr.Code != http.StatusOK {
		t.Fatalf("unmatched ids must still be acknowledged: %d", rr.Code)
	}
}

func TestWebhookBouncedSuppressesAddress(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo, "msg-4")
	h := newWebhookHandler(t, repo, &fakeRecorder{inserted: true})

	rr := httptest.NewRecorder()
	h.Handle(rr, webhookRequest(t, eventBody(t, "email.bounced", "msg-4"), true))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !repo.IsSuppressed(lead.Email) {
		t.Fatal("address not suppressed after bounce")
	}

	updated, _ := repo.GetByID(context.Background(), lead.ID)
	if updated.LeadScore != 0 || updated.LeadStatus != leads.StatusNew {
		t.Errorf("bounce must not touch score/status: %d/%s", updated.LeadScore, updated.LeadStatus)
	}
}

func TestWebhookUnsupportedTypeAcknowledged(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	store := &fakeRecorder{inserted: true}
	h := newWebhookHandler(t, repo, store)

	rr := httptest.NewRecorder()
	h.Handle(rr, webhookRequest(t, eventBody(t, "email.delivery_delayed", "msg-5"), true))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(store.records) != 0 {
		t.Fatalf("unsupported types must not be recorded: %v", store.records)
	}
}

func TestWebhookMalformedBody(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	h := newWebhookHandler(t, repo, &fakeRecorder{inserted: true})

	rr := httptest.NewRecorder()
	h.Handle(rr, webhookRequest(t, []byte("{broken"), true))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestWebhookEngagementIsMonotone(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo, "msg-6")
	h := newWebhookHandler(t, repo, &fakeRecorder{inserted: true})

	for _, typ := range []string{"email.clicked", "email.opened"} {
		rr := httptest.NewRecorder()
		h.Handle(rr, webhookRequest(t, eventBody(t, typ, "msg-6"), true))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", typ, rr.Code)
		}
	}

	updated, _ := repo.GetByID(context.Background(), lead.ID)
	// A late opened event must not pull the lead back from DOWNLOADED.
	if updated.LeadStatus != leads.StatusDownloaded {
		t.Errorf("status = %s, want DOWNLOADED", updated.LeadStatus)
	}
	if updated.LeadScore != 35 {
		t.Errorf("score = %d, want 35 (opened + clicked + corporate domain)", updated.LeadScore)
	}
}
