// Package router assembles the HTTP surface of the voice platform.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/romidental/voice-platform/internal/api/handlers"
	"github.com/romidental/voice-platform/internal/api/middleware"
	"github.com/romidental/voice-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	Tools          *handlers.ToolsHandler
	Admin          *handlers.AdminHandler
	AdminJWTSecret string
	MetricsHandler http.Handler
	ToolRatePerSec float64
	ToolBurst      int
	HealthCheck    http.HandlerFunc
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogger(cfg.Logger))
	}

	health := cfg.HealthCheck
	if health == nil {
		health = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}
	}
	r.Get("/health", health)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Tools != nil {
		r.Route("/tools", func(tr chi.Router) {
			if cfg.ToolRatePerSec > 0 {
				burst := cfg.ToolBurst
				if burst <= 0 {
					burst = 10
				}
				tr.Use(middleware.RateLimit(cfg.ToolRatePerSec, burst))
			}
			tr.Get("/", cfg.Tools.List)
			tr.Post("/{name}", cfg.Tools.Invoke)
		})
	}

	if cfg.Admin != nil {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(middleware.AdminJWT(cfg.AdminJWTSecret))
			ar.Get("/analytics", cfg.Admin.Rollup)
			ar.Get("/analytics/snapshot", cfg.Admin.Snapshot)
			ar.Post("/analytics/rebuild", cfg.Admin.Rebuild)
			ar.Get("/stats", cfg.Admin.ClinicStats)
			ar.Get("/follow-ups", cfg.Admin.PendingFollowUps)
			ar.Post("/appointments/{id}/status", cfg.Admin.UpdateAppointmentStatus)
		})
	}

	return r
}
