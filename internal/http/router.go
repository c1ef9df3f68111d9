package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robertarktes/event-admissions/internal/observability"
	"github.com/robertarktes/event-admissions/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.With(RequireIdempotencyKey).Post("/v1/events/{eventID}/registrations", h.CreateRegistration)
	r.Get("/v1/registrations/{code}", h.GetRegistration)
	r.Delete("/v1/registrations/{code}", h.CancelRegistration)
	r.Post("/v1/registrations/{code}/checkin", h.CheckIn)
	r.Post("/v1/registrations/{code}/feedback", h.SubmitFeedback)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
