package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/config"
	"github.com/kevin07696/newebpay-service/internal/middleware"
	"github.com/kevin07696/newebpay-service/pkg/observability"
)

// newRouter mounts the callback routes and the JSON API
func newRouter(cfg *config.Config, deps *Dependencies, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	if cfg.Server.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(observability.HTTPMetrics)
	r.Use(middleware.SecurityHeaders(cfg.Server.IsProduction()))

	cb := deps.callbackHandler
	returnRoutes := func(r chi.Router) {
		r.Use(deps.returnLimiter.Middleware)
		r.Get("/", cb.HandleReturn)
		r.Post("/", cb.HandleReturn)
	}
	notifyRoutes := func(r chi.Router) {
		r.Use(deps.notifyAllowlist.Middleware)
		r.Use(deps.notifyLimiter.Middleware)
		r.Post("/", cb.HandleNotify)
	}

	r.Route("/payment/newebpay/return", returnRoutes)
	r.Route("/payment/newebpay/notify", notifyRoutes)
	r.Route("/payment/return", returnRoutes)
	r.Route("/payment/notify", notifyRoutes)

	r.Route("/api/v1", func(r chi.Router) {
		if len(cfg.Server.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   cfg.Server.AllowedOrigins,
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
				ExposedHeaders:   []string{"X-Request-Id"},
				AllowCredentials: false,
				MaxAge:           300,
			}))
		}
		r.Use(deps.apiLimiter.Middleware)
		r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))

		api := deps.apiHandler
		r.Post("/payments/newebpay/checkout", api.Checkout)
		r.Get("/transactions/{reference}", api.GetTransaction)
		r.With(deps.refundsInFlight.Middleware).Post("/transactions/{reference}/refund", api.Refund)
	})

	logger.Debug("Routes mounted", zap.Bool("cors", len(cfg.Server.AllowedOrigins) > 0))
	return r
}
