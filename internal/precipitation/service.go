package precipitation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/skydeck/skydeck/internal/telemetry"
	"github.com/skydeck/skydeck/internal/weather"
)

// MinutelySource supplies minute-resolution precipitation samples.
type MinutelySource interface {
	GetMinutelyPrecipitation(ctx context.Context, lat, lon float64) ([]weather.PrecipitationSample, error)
}

// ServiceConfig holds configuration for the precipitation service.
type ServiceConfig struct {
	// Weather supplies minutely samples, normally the cached weather service.
	Weather MinutelySource

	// Cooldown governs alert delivery (default: 30 minute window).
	Cooldown *CooldownGovernor

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records alert outcomes (optional).
	Metrics *telemetry.EngineMetrics

	// BatchConcurrency bounds parallel checks in CheckMultipleLocations
	// (default: 8).
	BatchConcurrency int

	// Clock stamps generated alerts (default: time.Now).
	Clock func() time.Time
}

// Service runs the precipitation pipeline: fetch, detect, cooldown.
type Service struct {
	weather          MinutelySource
	cooldown         *CooldownGovernor
	logger           zerolog.Logger
	metrics          *telemetry.EngineMetrics
	batchConcurrency int
	clock            func() time.Time
}

// NewService creates a new precipitation service.
func NewService(cfg ServiceConfig) *Service {
	cooldown := cfg.Cooldown
	if cooldown == nil {
		cooldown = NewCooldownGovernor(CooldownConfig{})
	}
	concurrency := cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		weather:          cfg.Weather,
		cooldown:         cooldown,
		logger:           cfg.Logger,
		metrics:          cfg.Metrics,
		batchConcurrency: concurrency,
		clock:            clock,
	}
}

// CheckPrecipitation returns an alert when precipitation is about to start
// at the location and the location is not in cooldown. It returns nil, nil
// for no alert, including when the upstream fetch fails. Only invalid input
// is returned as an error.
func (s *Service) CheckPrecipitation(ctx context.Context, lat, lon float64, locationID string) (*Alert, error) {
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if err := validateLocationID(locationID); err != nil {
		return nil, err
	}

	samples, err := s.weather.GetMinutelyPrecipitation(ctx, lat, lon)
	if err != nil {
		s.logger.Error().Err(err).
			Str("location_id", locationID).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("failed to fetch precipitation data")
		s.metrics.RecordAlert(ctx, telemetry.AlertFailed)
		return nil, nil
	}

	onset, ok := Detect(samples)
	if !ok {
		s.logger.Debug().
			Str("location_id", locationID).
			Int("samples", len(samples)).
			Msg("no precipitation onset detected")
		s.metrics.RecordAlert(ctx, telemetry.AlertNone)
		return nil, nil
	}

	allowed, remaining := s.cooldown.Allow(locationID)
	if !allowed {
		s.logger.Info().
			Str("location_id", locationID).
			Int("minutes_to_start", onset.MinutesToStart).
			Int("remaining_minutes", int(math.Ceil(remaining.Minutes()))).
			Msg("precipitation alert suppressed by cooldown")
		s.metrics.RecordAlert(ctx, telemetry.AlertSuppressed)
		return nil, nil
	}

	alert := &Alert{
		ID:                uuid.New().String(),
		LocationID:        locationID,
		Lat:               weather.RoundCoordinate(lat),
		Lon:               weather.RoundCoordinate(lon),
		MinutesToStart:    onset.MinutesToStart,
		Type:              TypeRain,
		Intensity:         onset.Intensity,
		EstimatedDuration: onset.Duration,
		GeneratedAt:       s.clock().UTC(),
	}

	s.logger.Info().
		Str("alert_id", alert.ID).
		Str("location_id", locationID).
		Int("minutes_to_start", alert.MinutesToStart).
		Str("intensity", string(alert.Intensity)).
		Int("estimated_duration", alert.EstimatedDuration).
		Msg("precipitation alert issued")
	s.metrics.RecordAlert(ctx, telemetry.AlertIssued)

	return alert, nil
}

// CheckMultipleLocations checks every location concurrently and returns the
// alerts that were issued, in input order. A location that fails, including
// on invalid input, is logged and skipped without affecting the others.
func (s *Service) CheckMultipleLocations(ctx context.Context, locations []Location) []Alert {
	results := make([]*Alert, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)

	for i, loc := range locations {
		g.Go(func() error {
			alert, err := s.CheckPrecipitation(gctx, loc.Lat, loc.Lon, loc.ID)
			if err != nil {
				s.logger.Warn().Err(err).
					Str("location_id", loc.ID).
					Msg("skipping location in batch check")
				return nil
			}
			results[i] = alert
			return nil
		})
	}
	_ = g.Wait()

	alerts := make([]Alert, 0, len(locations))
	for _, a := range results {
		if a != nil {
			alerts = append(alerts, *a)
		}
	}

	s.logger.Debug().
		Int("locations", len(locations)).
		Int("alerts", len(alerts)).
		Msg("batch precipitation check complete")

	return alerts
}

// ClearCooldown removes the cooldown record for locationID.
func (s *Service) ClearCooldown(locationID string) error {
	if err := validateLocationID(locationID); err != nil {
		return err
	}
	s.cooldown.Clear(locationID)
	s.logger.Info().
		Str("location_id", locationID).
		Msg("precipitation cooldown cleared")
	return nil
}

// GetCooldownStatus reports the cooldown state of locationID.
func (s *Service) GetCooldownStatus(locationID string) (CooldownStatus, error) {
	if err := validateLocationID(locationID); err != nil {
		return CooldownStatus{}, err
	}
	return s.cooldown.Status(locationID), nil
}

// Sweep removes expired cooldown records.
func (s *Service) Sweep() int {
	removed := s.cooldown.Sweep()
	if removed > 0 {
		s.logger.Debug().
			Int("expired_records", removed).
			Msg("cleaned up expired cooldown records")
	}
	return removed
}

// CooldownCount returns the number of locations currently tracked.
func (s *Service) CooldownCount() int {
	return s.cooldown.Len()
}

func validateLocationID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidLocationID)
	}
	if len(id) > 128 {
		return fmt.Errorf("%w: longer than 128 characters", ErrInvalidLocationID)
	}
	return nil
}
