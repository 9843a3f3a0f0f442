package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/glec-io/lead-pipeline/internal/analytics"
	"github.com/glec-io/lead-pipeline/internal/http/handlers"
	"github.com/glec-io/lead-pipeline/internal/leads"
	"github.com/glec-io/lead-pipeline/pkg/logging"
)

type stubFacts struct{}

func (stubFacts) FetchLeads(ctx context.Context, from, to time.Time) ([]analytics.LeadFacts, error) {
	return nil, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, rawToken string) (string, error) {
	return "https://files.glec.io/doc.pdf", nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := logging.New("error")

	repo := leads.NewInMemoryRepository()
	intake := leads.NewIntakeService(repo, nil, nil, 5*time.Minute, logger)

	webhook, err := handlers.NewEmailWebhookHandler(
		"whsec_dGVzdC1zaWduaW5nLXNlY3JldA==", 5*time.Minute,
		repo, nil, leads.DefaultScoreWeights(), nil, logger)
	if err != nil {
		t.Fatalf("webhook handler: %v", err)
	}

	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return New(Deps{
		Logger:             logger,
		Leads:              leads.NewHandler(intake, nil, logger),
		Webhook:            webhook,
		Downloads:          handlers.NewDownloadHandler(stubResolver{}, nil, logger),
		Admin:              handlers.NewAdminLeadsHandler(db, logger),
		Analytics:          analytics.NewHandler(stubFacts{}, logger),
		AdminJWTSecret:     "admin-secret",
		CORSAllowedOrigins: []string{"*"},
		RateLimitPerSec:    100,
		RateLimitBurst:     100,
	})
}

func TestHealthEndpoint(t *testing.T) {
	r := testRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("body: %s", rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := testRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestLeadSubmissionRoute(t *testing.T) {
	r := testRouter(t)
	body := strings.NewReader(`{
		"source": "CONTACT_FORM",
		"company_name": "Acme Freight",
		"contact_name": "Lee Jun",
		"email": "jun@acmefreight.io",
		"phone": "010-1234-5678",
		"message": "We want to measure our fleet emissions."
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	r := testRouter(t)
	for _, path := range []string{"/api/v1/admin/leads", "/api/v1/admin/leads/analytics", "/api/v1/admin/leads/abc"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s status = %d, want 401", path, rr.Code)
		}
	}
}

func TestWebhookRouteRejectsUnsigned(t *testing.T) {
	r := testRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/email", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestDownloadRoute(t *testing.T) {
	r := testRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/library/download/sometoken", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rr.Code)
	}
}
