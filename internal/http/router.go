package http

import (
	"github.com/eventhall/ticketing/internal/auth"
	"github.com/eventhall/ticketing/internal/idempotency"
	"github.com/eventhall/ticketing/internal/observability"
	"github.com/eventhall/ticketing/internal/rateLimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(h *Handlers, logger observability.Logger, tokens *auth.Tokens, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(TracingMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/v1/auth/register", h.Register)
	r.Post("/v1/auth/login", h.Login)
	r.Get("/v1/events", h.ListEvents)
	r.Get("/v1/events/{id}", h.GetEvent)

	// authenticated surface
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(tokens))
		r.Use(RateLimitMiddleware(rl))

		r.Post("/v1/events", h.CreateEvent)
		r.Post("/v1/events/{id}/approve", h.ApproveEvent)
		r.Post("/v1/events/{id}/decline", h.DeclineEvent)
		r.Patch("/v1/events/{id}/price", h.SetEventPrice)

		r.Group(func(r chi.Router) {
			r.Use(IdempotencyMiddleware(idemp))
			r.Post("/v1/bookings", h.CreateBooking)
		})
		r.Post("/v1/bookings/{id}/cancel", h.CancelBooking)
		r.Get("/v1/bookings", h.ListMyBookings)
	})

	return r
}
