// Package main provides the entrypoint for the Skydeck background worker.
//
// The worker sweeps its caches, scans the configured watch locations for
// imminent precipitation and, when a Pub/Sub project is configured, takes
// jobs from a subscription and publishes alerts to a topic.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/skydeck/skydeck/internal/api/response"
	"github.com/skydeck/skydeck/internal/config"
	"github.com/skydeck/skydeck/internal/precipitation"
	"github.com/skydeck/skydeck/internal/provider/resilience"
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
	const serviceName = "skydeck-worker"

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
		Int("watch_locations", len(cfg.Worker.WatchLocations)).
		Msg("starting Skydeck worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	engineMetrics, err := telemetry.NewEngineMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize engine metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	registry := resilience.NewRegistry()
	clientCfg := resilience.DefaultClientConfig(openweathermap.ProviderName)
	clientCfg.Timeout = cfg.Weather.Timeout
	clientCfg.Registry = registry
	clientCfg.Logger = log

	weatherService := weather.NewService(weather.ServiceConfig{
		Provider: openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:          cfg.Weather.APIKey,
			BaseURL:         cfg.Weather.BaseURL,
			OneCallURL:      cfg.Weather.OneCallURL,
			AirPollutionURL: cfg.Weather.AirPollutionURL,
			HTTPClient:      resilience.NewClient(clientCfg),
			Logger:          log,
		}),
		Logger:                log,
		PrecipitationCacheTTL: cfg.Engine.PrecipitationCacheTTL,
		Registry:              registry,
		Metrics:               engineMetrics,
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

	// Pub/Sub is optional; without a project the worker only runs schedules
	// and alerts are logged.
	var (
		pubsubClient *pubsub.Client
		publisher    *worker.PubSubPublisher
	)
	if cfg.Worker.PubSubProjectID != "" {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.Worker.PubSubProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub client")
		}
		defer pubsubClient.Close()

		publisher = worker.NewPubSubPublisher(pubsubClient, cfg.Worker.AlertTopic, log)
		defer publisher.Stop()
	}

	scanCfg := worker.ScanJobConfig{
		Config:  worker.ScanConfigFrom(cfg.Worker.WatchLocations),
		Checker: precipitationService,
		Logger:  log,
	}
	if publisher != nil {
		scanCfg.Publisher = publisher
	}
	scanJob := worker.NewScanJob(scanCfg)

	sweepJob := worker.NewSweepJob(log,
		worker.SweepTarget{Name: "precipitation", Sweeper: weatherService},
		worker.SweepTarget{Name: "cooldowns", Sweeper: precipitationService},
	)

	scheduler, err := worker.NewScheduler(worker.SchedulerConfig{
		SweepSchedule: cfg.Engine.SweepSchedule,
		ScanSchedule:  cfg.Worker.WatchSchedule,
		Sweep:         sweepJob,
		Scan:          scanJob,
		Logger:        log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	scheduler.Start()

	if pubsubClient != nil {
		handler := worker.NewPubSubHandler(worker.PubSubConfig{
			Client:           pubsubClient,
			SubscriptionName: cfg.Worker.PubSubSubscription,
			Dispatcher: worker.NewDispatcher(worker.DispatcherConfig{
				Scan:      scanJob,
				Sweep:     sweepJob,
				Cooldowns: precipitationService,
				Logger:    log,
			}),
			Logger: log,
		})
		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Health endpoint for the container platform
	mux := chi.NewRouter()
	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]any{
			"status":    "healthy",
			"version":   Version,
			"scan":      scanJob.MetricsSnapshot(),
			"cooldowns": precipitationService.CooldownCount(),
			"cache":     weatherService.CacheStats(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("scheduler did not stop cleanly")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
