package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-queue-scheduling/internal/metrics"
	"github.com/hackgods/doctor-queue-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	Events  Subscriber
	PgPool  *pgxpool.Pool
	Redis   redis.UniversalClient
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// Gatherer backs /metrics; nil leaves the endpoint out.
	Gatherer       prometheus.Gatherer
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	svc := cfg.Service

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoverMiddleware)
	r.Use(MetricsMiddleware(cfg.Metrics))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
		r.Use(IdentityMiddleware(cfg.JWTSecret))

		// Public reads
		r.Get("/doctors", listDoctorsHandler(svc))
		r.Get("/doctors/{id}", getDoctorHandler(svc))
		r.Get("/doctors/{id}/availability", doctorAvailabilityHandler(svc))
		r.Get("/queue/doctors/{id}", queueStatusHandler(svc))
		if cfg.Events != nil {
			r.Get("/queue/doctors/{id}/watch", watchQueueHandler(svc, cfg.Events))
		}

		r.Group(func(r chi.Router) {
			r.Use(RequireCaller)

			// Doctor endpoints
			r.Post("/doctors", registerDoctorHandler(svc))
			r.Patch("/doctors/{id}", updateDoctorHandler(svc))
			r.Delete("/doctors/{id}", deactivateDoctorHandler(svc))
			r.Post("/doctors/{id}/reactivate", reactivateDoctorHandler(svc))
			r.Get("/doctors/{id}/schedule", doctorScheduleHandler(svc))
			r.Get("/doctors/{id}/appointments", listDoctorAppointmentsHandler(svc))

			// Appointment endpoints
			r.Post("/appointments", bookAppointmentHandler(svc))
			r.Get("/appointments/{id}", getAppointmentHandler(svc))
			r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(svc))
			r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(svc))
			r.Post("/appointments/{id}/complete", completeAppointmentHandler(svc))
			r.Post("/appointments/{id}/no-show", noShowAppointmentHandler(svc))
			r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(svc))

			// Queue endpoints
			r.Get("/queue", queueOverviewHandler(svc))
			r.Post("/queue/join", joinQueueHandler(svc))
			r.Delete("/queue/patients/{id}", leaveQueueHandler(svc))
			r.Get("/queue/patients/{id}/position", queuePositionHandler(svc))
			r.Delete("/queue/entries/{id}", removeQueueEntryHandler(svc))
			r.Post("/queue/doctors/{id}/advance", advanceQueueHandler(svc))
			r.Post("/queue/doctors/{id}/complete", completeConsultationHandler(svc))

			r.Get("/admin/stats", statsHandler(svc))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route_not_found", "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed on "+r.URL.Path)
	})

	return r
}
