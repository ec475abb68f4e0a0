package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skydeck/skydeck/internal/precipitation"
)

// AlertChecker runs the precipitation pipeline over a batch of locations.
type AlertChecker interface {
	CheckMultipleLocations(ctx context.Context, locations []precipitation.Location) []precipitation.Alert
}

// AlertPublisher delivers an issued alert downstream.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert precipitation.Alert) error
}

// ScanJob checks the watch locations for imminent precipitation and
// publishes the alerts that survive the cooldown.
type ScanJob struct {
	config    ScanConfig
	checker   AlertChecker
	publisher AlertPublisher
	logger    zerolog.Logger
	clock     func() time.Time

	metrics *ScanMetrics
}

// ScanMetrics tracks scan job statistics.
type ScanMetrics struct {
	mu sync.RWMutex

	TotalScans       int64
	LocationsChecked int64
	AlertsIssued     int64
	AlertsPublished  int64
	PublishFailures  int64

	LastScanAt       time.Time
	LastScanDuration time.Duration
}

// ScanJobConfig holds configuration for creating a ScanJob.
type ScanJobConfig struct {
	Config  ScanConfig
	Checker AlertChecker

	// Publisher receives issued alerts. When nil, alerts are only logged.
	Publisher AlertPublisher

	Logger zerolog.Logger

	// Clock times scans (default: time.Now).
	Clock func() time.Time
}

// NewScanJob creates a new scan job.
func NewScanJob(cfg ScanJobConfig) *ScanJob {
	config := cfg.Config
	if config.Timeout <= 0 {
		config.Timeout = DefaultScanConfig().Timeout
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &ScanJob{
		config:    config,
		checker:   cfg.Checker,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		clock:     clock,
		metrics:   &ScanMetrics{},
	}
}

// ScanResult contains the result of one scan.
type ScanResult struct {
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	Locations     int
	Alerts        []precipitation.Alert
	Published     int
	PublishFailed int
}

// Run checks every watch location and publishes the resulting alerts.
// Alerts enter cooldown when issued, so a failed publish is counted and
// logged rather than retried.
func (j *ScanJob) Run(ctx context.Context) *ScanResult {
	startTime := j.clock()
	result := &ScanResult{
		StartTime: startTime,
		Locations: j.config.TotalLocations(),
	}

	if result.Locations == 0 {
		j.logger.Debug().Msg("no watch locations configured, skipping scan")
		result.EndTime = startTime
		return result
	}

	j.logger.Info().
		Int("locations", result.Locations).
		Msg("starting precipitation scan")

	scanCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	result.Alerts = j.checker.CheckMultipleLocations(scanCtx, j.config.Locations)

	for _, alert := range result.Alerts {
		if j.publisher == nil {
			continue
		}
		if err := j.publisher.PublishAlert(scanCtx, alert); err != nil {
			result.PublishFailed++
			j.logger.Error().Err(err).
				Str("alert_id", alert.ID).
				Str("location_id", alert.LocationID).
				Msg("failed to publish precipitation alert")
			continue
		}
		result.Published++
	}

	result.EndTime = j.clock()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("locations", result.Locations).
		Int("alerts", len(result.Alerts)).
		Int("published", result.Published).
		Int("publish_failed", result.PublishFailed).
		Msg("precipitation scan completed")

	return result
}

func (j *ScanJob) updateMetrics(result *ScanResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalScans++
	j.metrics.LocationsChecked += int64(result.Locations)
	j.metrics.AlertsIssued += int64(len(result.Alerts))
	j.metrics.AlertsPublished += int64(result.Published)
	j.metrics.PublishFailures += int64(result.PublishFailed)
	j.metrics.LastScanAt = result.EndTime
	j.metrics.LastScanDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *ScanJob) GetMetrics() ScanMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return ScanMetrics{
		TotalScans:       j.metrics.TotalScans,
		LocationsChecked: j.metrics.LocationsChecked,
		AlertsIssued:     j.metrics.AlertsIssued,
		AlertsPublished:  j.metrics.AlertsPublished,
		PublishFailures:  j.metrics.PublishFailures,
		LastScanAt:       j.metrics.LastScanAt,
		LastScanDuration: j.metrics.LastScanDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *ScanJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	snapshot := map[string]any{
		"total_scans":        m.TotalScans,
		"locations_checked":  m.LocationsChecked,
		"alerts_issued":      m.AlertsIssued,
		"alerts_published":   m.AlertsPublished,
		"publish_failures":   m.PublishFailures,
		"last_scan_duration": m.LastScanDuration.String(),
	}
	if !m.LastScanAt.IsZero() {
		snapshot["last_scan_at"] = m.LastScanAt.UTC().Format(time.RFC3339)
	}
	return snapshot
}
