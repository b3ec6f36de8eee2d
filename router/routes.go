// Package router assembles the merchant HTTP surface: the webhook receiver,
// health and metrics endpoints, and the authenticated /v1 API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mstgnz/gobaokim/handler"
	"github.com/mstgnz/gobaokim/infra/middle"
	"github.com/mstgnz/gobaokim/infra/response"
	v1 "github.com/mstgnz/gobaokim/router/v1"
)

// WebhookPath is where the gateway delivers notifications.
const WebhookPath = "/webhooks/baokim"

// Handlers groups everything the router serves. Nil handlers are skipped.
type Handlers struct {
	Webhook *handler.WebhookHandler
	Health  *handler.HealthHandler
	Metrics http.Handler
	V1      v1.Handlers
}

// Options tune the middleware stack.
type Options struct {
	// APIKey protects /v1. Empty disables authentication.
	APIKey      string
	CORSOrigins []string
	// RateLimiter throttles /v1 per client IP. Nil disables it.
	RateLimiter       *middle.RateLimiter
	WebhookAllowedIPs []string
	// TrustedProxies may set X-Forwarded-For and X-Real-IP. Empty means the
	// connection peer is always the client.
	TrustedProxies []string
}

// New builds the service router.
func New(h Handlers, opts Options) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(middle.ClientIPMiddleware(opts.TrustedProxies))
	r.Use(middle.RequestLoggingMiddleware())
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middle.SecurityHeadersMiddleware())

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With", middle.RequestIDHeader},
		ExposedHeaders:   []string{"Content-Length", middle.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300, // Preflight cache time (second)
	}))

	// Mounted sub-routers inherit these
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = response.WriteJSON(w, http.StatusNotFound, response.Response{Success: false, Message: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = response.WriteJSON(w, http.StatusMethodNotAllowed, response.Response{Success: false, Message: "Method Not Allowed"})
	})

	// Health check endpoint (no auth required)
	if h.Health != nil {
		r.Get("/health", h.Health.CheckHealth)
	}
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	// Gateway notifications (signature verified, no API key)
	if h.Webhook != nil {
		r.With(middle.IPWhitelistMiddleware(opts.WebhookAllowedIPs)).Post(WebhookPath, h.Webhook.Receive)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middle.AuthMiddleware(opts.APIKey))
		r.Use(middle.RateLimitMiddleware(opts.RateLimiter))
		r.Use(middle.RequestValidationMiddleware())

		v1.Routes(r, h.V1)
	})

	return r
}
