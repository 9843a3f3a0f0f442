package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glec-io/lead-pipeline/internal/analytics"
	"github.com/glec-io/lead-pipeline/internal/http/handlers"
	"github.com/glec-io/lead-pipeline/internal/http/middleware"
	"github.com/glec-io/lead-pipeline/internal/leads"
	"github.com/glec-io/lead-pipeline/pkg/logging"
)

// Deps carries the handlers and settings the router wires together.
type Deps struct {
	Logger *logging.Logger

	Leads     *leads.Handler
	Webhook   *handlers.EmailWebhookHandler
	Downloads *handlers.DownloadHandler
	Admin     *handlers.AdminLeadsHandler
	Analytics *analytics.Handler

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitPerSec    float64
	RateLimitBurst     int
}

// New builds the HTTP routing tree.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.CORS(deps.CORSAllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(deps.RateLimitPerSec, deps.RateLimitBurst))
			r.Post("/leads", deps.Leads.Create)
		})

		r.Post("/webhooks/email", deps.Webhook.Handle)
		r.Get("/library/download/{token}", deps.Downloads.Get)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminJWT(deps.AdminJWTSecret))

			r.Get("/leads", deps.Admin.ListLeads)
			r.Get("/leads/analytics", deps.Analytics.Report)
			r.Get("/leads/{leadID}", deps.Admin.GetLead)
			r.Patch("/leads/{leadID}", deps.Admin.UpdateLead)
			r.Delete("/leads/{leadID}", deps.Admin.DeleteLead)
		})
	})

	return r
}
