package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/leadops-platform/internal/affiliates"
	"github.com/wolfman30/leadops-platform/internal/appointments"
	"github.com/wolfman30/leadops-platform/internal/assignment"
	"github.com/wolfman30/leadops-platform/internal/closers"
	httpmiddleware "github.com/wolfman30/leadops-platform/internal/http/middleware"
	"github.com/wolfman30/leadops-platform/internal/tasks"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger       *logging.Logger
	Appointments *appointments.Handler
	Assignment   *assignment.Handler
	Closers      *closers.Handler
	Affiliates   *affiliates.Handler
	Tasks        *tasks.Handler

	AuthSecret         string
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler

	// HealthCheck reports dependency health; nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", healthHandler(cfg.HealthCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(cfg.RateLimiter.Middleware)
		}

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.RequireRole(cfg.AuthSecret, httpmiddleware.RoleAdmin))

			admin.Route("/appointments", func(r chi.Router) {
				r.Get("/", cfg.Appointments.List)
				r.Post("/", cfg.Appointments.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.Appointments.Get)
					r.Delete("/", cfg.Appointments.Delete)
					r.Put("/outcome", cfg.Appointments.UpdateOutcome)
					r.Put("/assign", cfg.Assignment.Assign)
				})
			})
			admin.Post("/auto-assign-appointments", cfg.Assignment.AutoAssign)

			admin.Route("/closers", func(r chi.Router) {
				r.Get("/", cfg.Closers.List)
				r.Post("/", cfg.Closers.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", cfg.Closers.Delete)
					r.Put("/approve", cfg.Closers.Approve)
					r.Put("/activate", cfg.Closers.Activate)
					r.Put("/deactivate", cfg.Closers.Deactivate)
				})
			})

			if cfg.Affiliates != nil {
				admin.Get("/affiliates", cfg.Affiliates.List)
				admin.Post("/affiliates", cfg.Affiliates.Create)
			}

			if cfg.Tasks != nil {
				admin.Route("/tasks", func(r chi.Router) {
					r.Get("/", cfg.Tasks.List)
					r.Post("/", cfg.Tasks.Create)
					r.Put("/{id}", cfg.Tasks.Update)
					r.Delete("/{id}", cfg.Tasks.Delete)
				})
			}
		})

		api.Route("/closer", func(portal chi.Router) {
			portal.Use(httpmiddleware.RequireRole(cfg.AuthSecret, httpmiddleware.RoleCloser))
			portal.Get("/appointments", cfg.Appointments.CloserList)
			portal.Put("/appointments/{id}/outcome", cfg.Appointments.CloserUpdateOutcome)
			portal.Get("/stats", cfg.Appointments.CloserStats)
		})
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, map[string]string{"status": "ok"}
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				status, body = http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
