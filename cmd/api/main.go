// Package main provides the entrypoint for the Skydeck API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/skydeck/skydeck/internal/api"
	"github.com/skydeck/skydeck/internal/api/handler"
	"github.com/skydeck/skydeck/internal/api/middleware"
	"github.com/skydeck/skydeck/internal/config"
	"github.com/skydeck/skydeck/internal/precipitation"
	"github.com/skydeck/skydeck/internal/provider/resilience"
	"github.com/skydeck/skydeck/internal/suitability"
	"github.com/skydeck/skydeck/internal/telemetry"
	"github.com/skydeck/skydeck/internal/weather"
	"github.com/skydeck/skydeck/internal/weather/openweathermap"
	"github.com/skydeck/skydeck/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "skydeck-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log = log.Level(level)

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting Skydeck API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		Enabled:        cfg.Observability.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Observability.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Observability.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize http metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	engineMetrics, err := telemetry.NewEngineMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize engine metrics")
		os.Exit(1)
	}

	// Provider with circuit breaker, retries and health tracking
	registry := resilience.NewRegistry()
	clientCfg := resilience.DefaultClientConfig(openweathermap.ProviderName)
	clientCfg.Timeout = cfg.Weather.Timeout
	clientCfg.Registry = registry
	clientCfg.Logger = log

	provider := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:          cfg.Weather.APIKey,
		BaseURL:         cfg.Weather.BaseURL,
		OneCallURL:      cfg.Weather.OneCallURL,
		AirPollutionURL: cfg.Weather.AirPollutionURL,
		HTTPClient:      resilience.NewClient(clientCfg),
		Logger:          log,
	})

	weatherService := weather.NewService(weather.ServiceConfig{
		Provider:              provider,
		Logger:                log,
		PrecipitationCacheTTL: cfg.Engine.PrecipitationCacheTTL,
		Registry:              registry,
		Metrics:               engineMetrics,
	})

	recommendationService := suitability.NewService(suitability.ServiceConfig{
		Weather:  weatherService,
		Logger:   log,
		CacheTTL: cfg.Engine.RecommendationCacheTTL,
		Metrics:  engineMetrics,
	})

	precipitationService := precipitation.NewService(precipitation.ServiceConfig{
		Weather: weatherService,
		Cooldown: precipitation.NewCooldownGovernor(precipitation.CooldownConfig{
			Window: cfg.Engine.AlertCooldown,
		}),
		Logger:           log,
		Metrics:          engineMetrics,
		BatchConcurrency: cfg.Engine.BatchConcurrency,
	})
	log.Info().
		Str("provider", weatherService.ProviderName()).
		Dur("recommendation_ttl", cfg.Engine.RecommendationCacheTTL).
		Dur("precipitation_ttl", cfg.Engine.PrecipitationCacheTTL).
		Dur("alert_cooldown", cfg.Engine.AlertCooldown).
		Msg("decision engine initialized")

	// Periodic eviction of expired cache entries and cooldown records
	scheduler, err := worker.NewScheduler(worker.SchedulerConfig{
		SweepSchedule: cfg.Engine.SweepSchedule,
		Sweep: worker.NewSweepJob(log,
			worker.SweepTarget{Name: "recommendations", Sweeper: recommendationService},
			worker.SweepTarget{Name: "precipitation", Sweeper: weatherService},
			worker.SweepTarget{Name: "cooldowns", Sweeper: precipitationService},
		),
		Logger: log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create sweep scheduler")
	}
	scheduler.Start()

	router := api.NewRouter(api.RouterConfig{
		Logger:          log,
		Metrics:         httpMetrics,
		Recommendations: recommendationService,
		Precipitation:   precipitationService,
		Ops: handler.OpsConfig{
			Version:            Version,
			BuildTime:          BuildTime,
			Providers:          registry,
			Recommendations:    recommendationService,
			PrecipitationFetch: weatherService,
			Cooldowns:          precipitationService,
		},
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Production:     cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("sweep scheduler did not stop cleanly")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
