package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic-scheduling/internal/schedule"
)

type RouterConfig struct {
	Booking   BookingService
	Schedules schedule.Repository
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Logger    zerolog.Logger
	JWTSecret string
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Everything below requires an authenticated actor.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Get("/doctors/{doctorID}/availability", availabilityHandler(cfg.Booking))

		r.Post("/appointments", reserveHandler(cfg.Booking))
		r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Booking))
		r.Post("/appointments/{id}/close", closeVisitHandler(cfg.Booking))

		r.Put("/doctors/{doctorID}/schedule", replaceScheduleHandler(cfg.Schedules))
		r.Put("/doctors/{doctorID}/exceptions/{date}", upsertExceptionHandler(cfg.Schedules))
		r.Delete("/doctors/{doctorID}/exceptions/{date}", deleteExceptionHandler(cfg.Schedules))
		r.Put("/holidays/{date}", upsertHolidayHandler(cfg.Schedules))
		r.Delete("/holidays/{date}", deleteHolidayHandler(cfg.Schedules))
	})

	return r
}
