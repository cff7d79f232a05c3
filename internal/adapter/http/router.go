package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/creditledger/internal/adapter/http/handler"
	"github.com/iho/creditledger/internal/adapter/http/middleware"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	ReconciliationHandler *handler.ReconciliationHandler
	UserHandler           *handler.UserHandler
	HealthHandler         *handler.HealthHandler
	Logger                zerolog.Logger
	// MetricsHandler serves /metrics; nil uses the default prometheus registry.
	MetricsHandler http.Handler
	// RateLimiter throttles reconciliation endpoints when set.
	RateLimiter *middleware.RateLimiter
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	// Operational endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/reconciliation", func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Limit)
			}

			r.Post("/users/{id}", cfg.ReconciliationHandler.ReconcileUser)
			r.Post("/bulk", cfg.ReconciliationHandler.ReconcileBulk)
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/balance", cfg.UserHandler.GetBalance)
			r.Get("/entries", cfg.UserHandler.ListEntries)
		})
	})

	return r
}
