package api

import (
	"context"
	_ "embed"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/pantrypal/users-api/internal/api/handlers"
	"github.com/pantrypal/users-api/internal/api/respond"
	"github.com/pantrypal/users-api/internal/auth"
	"github.com/pantrypal/users-api/internal/monitoring"
	"github.com/pantrypal/users-api/internal/services"
)

//go:embed openapi.yaml
var openAPISpec []byte

const healthCheckTimeout = 2 * time.Second

// Options configures the router.
type Options struct {
	APIKey         string
	APIKeyHeader   string
	AllowedOrigins []string
	RateLimitRPS   float64 // 0 disables rate limiting
	RateLimitBurst int
	Metrics        *monitoring.Metrics // nil disables /metrics
}

// NewRouter creates and configures a new Chi router.
func NewRouter(userService services.UserServiceProvider, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(opts.Metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", apiKeyHeader(opts)},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.RateLimitRPS > 0 {
		r.Use(NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Middleware)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs", http.StatusTemporaryRedirect)
	})
	r.Get("/docs", serveDocs)
	r.Get("/healthz", healthz(userService))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	userHandler := handlers.NewUserHandler(userService, opts.Metrics)

	r.Route("/api/users", func(r chi.Router) {
		r.Use(auth.APIKeyMiddleware(apiKeyHeader(opts), opts.APIKey))

		r.Get("/", userHandler.GetAll)
		r.Post("/", userHandler.Create)
		r.Get("/{id}", userHandler.Get)
		r.Put("/{id}", userHandler.Update)
		r.Delete("/{id}", userHandler.Delete)
	})

	return r
}

func apiKeyHeader(opts Options) string {
	if opts.APIKeyHeader == "" {
		return auth.DefaultHeader
	}
	return opts.APIKeyHeader
}

func serveDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

func healthz(svc services.UserServiceProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
