// Package router assembles the HTTP surface: patient reservation endpoints,
// provider webhooks, the mock payment page and the staff admin API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/needtofly/dodoktora/internal/admin"
	"github.com/needtofly/dodoktora/internal/bookings"
	httpmiddleware "github.com/needtofly/dodoktora/internal/http/middleware"
	"github.com/needtofly/dodoktora/internal/payments"
	"github.com/needtofly/dodoktora/pkg/logging"
)

// Config holds the handlers the router mounts. Nil webhook and mock handlers
// are skipped, matching which provider the deployment configured.
type Config struct {
	Logger          *logging.Logger
	BookingsHandler *bookings.Handler
	AdminHandler    *admin.Handler
	P24Webhook      *payments.P24Webhook
	PayUWebhook     *payments.PayUWebhook
	StripeWebhook   *payments.StripeWebhook
	MockPayments    *payments.MockHandler
	MetricsHandler  http.Handler
	AdminJWTSecret  string
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		public.Mount("/api/bookings", cfg.BookingsHandler.Routes())

		if cfg.P24Webhook != nil {
			public.Post("/webhooks/p24", cfg.P24Webhook.ServeHTTP)
		}
		if cfg.PayUWebhook != nil {
			public.Post("/webhooks/payu", cfg.PayUWebhook.ServeHTTP)
		}
		if cfg.StripeWebhook != nil {
			public.Post("/webhooks/stripe", cfg.StripeWebhook.ServeHTTP)
		}
		if cfg.MockPayments != nil {
			public.Mount("/payments/mock", cfg.MockPayments.Routes())
		}
	})

	if cfg.AdminHandler != nil {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			ar.Mount("/", cfg.AdminHandler.Routes())
		})
	}

	return r
}
