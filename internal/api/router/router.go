package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-intake/internal/dashboard"
	httpmiddleware "github.com/wolfman30/clinic-intake/internal/http/middleware"
	"github.com/wolfman30/clinic-intake/internal/intake"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Pinger reports store reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	IntakeHandler      *intake.Handler
	DashboardHandler   *dashboard.Handler
	MetricsHandler     http.Handler
	Store              Pinger
	CORSAllowedOrigins []string

	// Submissions per second allowed per client IP; zero disables limiting.
	SubmitRateLimit float64
	SubmitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg.Store))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.IntakeHandler != nil {
			api.Get("/patients/lookup", cfg.IntakeHandler.Lookup)
			api.Get("/slots", cfg.IntakeHandler.BookedSlots)
			api.Route("/intake", func(in chi.Router) {
				in.Post("/validate", cfg.IntakeHandler.Validate)
				submit := http.Handler(http.HandlerFunc(cfg.IntakeHandler.Submit))
				if cfg.SubmitRateLimit > 0 {
					submit = httpmiddleware.RateLimit(cfg.SubmitRateLimit, cfg.SubmitBurst)(submit)
				}
				in.Method(http.MethodPost, "/submit", submit)
			})
		}
		if cfg.DashboardHandler != nil {
			api.Route("/dashboard", func(d chi.Router) {
				d.Get("/latest", cfg.DashboardHandler.Latest)
				d.Get("/stream", cfg.DashboardHandler.Stream)
			})
		}
	})

	return r
}

func healthHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{"status": "ok"}
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				resp["store"] = "unreachable"
			} else {
				resp["store"] = "ok"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
