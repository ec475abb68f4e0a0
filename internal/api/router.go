// Package api provides the HTTP API for the Skydeck weather decision engine.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/skydeck/skydeck/internal/api/handler"
	"github.com/skydeck/skydeck/internal/api/middleware"
	"github.com/skydeck/skydeck/internal/api/response"
	"github.com/skydeck/skydeck/internal/api/validation"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger  zerolog.Logger
	Metrics *middleware.Metrics

	Recommendations handler.RecommendationService
	Precipitation   handler.PrecipitationService
	Ops             handler.OpsConfig

	// AllowedOrigins lists CORS origins for the browser dashboard.
	AllowedOrigins []string

	// Production enables Strict-Transport-Security.
	Production bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing()) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))              // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))            // Panic recovery
	r.Use(chimiddleware.RealIP)                       // Real IP extraction
	r.Use(middleware.SecurityHeaders(cfg.Production)) // Security headers
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route matches "+r.URL.Path)
	})

	// Initialize handlers
	v := validation.New()
	opsHandler := handler.NewOpsHandler(cfg.Ops)
	recommendationHandler := handler.NewRecommendationHandler(cfg.Recommendations, v, cfg.Logger)
	precipitationHandler := handler.NewPrecipitationHandler(cfg.Precipitation, v, cfg.Logger)

	// Create rate limit middleware for different endpoint categories
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min
	batchRateLimit := middleware.RateLimitByIP(middleware.BatchRateLimit)       // 10 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Activity suitability
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/recommendations", recommendationHandler.GetRecommendations)
			r.With(middleware.RequireJSON).Post("/recommendations", recommendationHandler.PostRecommendations)
		})

		// Precipitation alerts
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/precipitation", precipitationHandler.CheckPrecipitation)
			r.Get("/precipitation/cooldowns/{locationId}", precipitationHandler.GetCooldown)
			r.Delete("/precipitation/cooldowns/{locationId}", precipitationHandler.ClearCooldown)
		})
		r.With(batchRateLimit, middleware.RequireJSON).Post("/precipitation/batch", precipitationHandler.CheckBatch)
	})

	return r
}
