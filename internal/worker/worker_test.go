package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skydeck/skydeck/internal/config"
	"github.com/skydeck/skydeck/internal/precipitation"
	"github.com/skydeck/skydeck/internal/worker"
)

type mockChecker struct {
	mu        sync.Mutex
	calls     int
	locations []precipitation.Location
	alerts    []precipitation.Alert
}

func (m *mockChecker) CheckMultipleLocations(_ context.Context, locations []precipitation.Location) []precipitation.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.locations = locations
	return m.alerts
}

type mockPublisher struct {
	mu        sync.Mutex
	published []precipitation.Alert
	failFor   string
}

func (m *mockPublisher) PublishAlert(_ context.Context, alert precipitation.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if alert.LocationID == m.failFor {
		return errors.New("topic unavailable")
	}
	m.published = append(m.published, alert)
	return nil
}

type mockSweeper struct {
	removed int
	calls   int
}

func (m *mockSweeper) Sweep() int {
	m.calls++
	return m.removed
}

type mockCooldowns struct {
	cleared []string
}

func (m *mockCooldowns) ClearCooldown(locationID string) error {
	if locationID == "" {
		return precipitation.ErrInvalidLocationID
	}
	m.cleared = append(m.cleared, locationID)
	return nil
}

// steppingClock advances by step on every call.
type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func watchLocations() []precipitation.Location {
	return []precipitation.Location{
		{ID: "home", Lat: 40.71, Lon: -74.0},
		{ID: "office", Lat: 40.75, Lon: -73.98},
	}
}

func TestScanConfigFrom(t *testing.T) {
	cfg := worker.ScanConfigFrom(config.WatchLocations{
		{ID: "home", Lat: 40.71, Lon: -74.0},
		{ID: "office", Lat: 51.5, Lon: -0.12},
	})

	assert.Equal(t, 2, cfg.TotalLocations())
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, precipitation.Location{ID: "office", Lat: 51.5, Lon: -0.12}, cfg.Locations[1])
}

func TestScanJob_Run(t *testing.T) {
	checker := &mockChecker{alerts: []precipitation.Alert{
		{ID: "a1", LocationID: "home", Type: precipitation.TypeRain},
		{ID: "a2", LocationID: "office", Type: precipitation.TypeRain},
	}}
	publisher := &mockPublisher{failFor: "office"}
	clock := &steppingClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), step: 2 * time.Second}

	job := worker.NewScanJob(worker.ScanJobConfig{
		Config:    worker.ScanConfig{Locations: watchLocations()},
		Checker:   checker,
		Publisher: publisher,
		Logger:    zerolog.Nop(),
		Clock:     clock.Now,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 1, checker.calls)
	assert.Equal(t, watchLocations(), checker.locations)
	assert.Equal(t, 2, result.Locations)
	assert.Len(t, result.Alerts, 2)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 1, result.PublishFailed)
	assert.Equal(t, 2*time.Second, result.Duration)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, "a1", publisher.published[0].ID)

	m := job.GetMetrics()
	assert.Equal(t, int64(1), m.TotalScans)
	assert.Equal(t, int64(2), m.LocationsChecked)
	assert.Equal(t, int64(2), m.AlertsIssued)
	assert.Equal(t, int64(1), m.AlertsPublished)
	assert.Equal(t, int64(1), m.PublishFailures)
	assert.Equal(t, result.EndTime, m.LastScanAt)
}

func TestScanJob_Run_NoLocations(t *testing.T) {
	checker := &mockChecker{}
	job := worker.NewScanJob(worker.ScanJobConfig{
		Checker: checker,
		Logger:  zerolog.Nop(),
	})

	result := job.Run(context.Background())

	assert.Zero(t, checker.calls)
	assert.Zero(t, result.Locations)
	assert.Empty(t, result.Alerts)
	assert.Zero(t, job.GetMetrics().TotalScans)
}

func TestScanJob_Run_WithoutPublisher(t *testing.T) {
	checker := &mockChecker{alerts: []precipitation.Alert{{ID: "a1", LocationID: "home"}}}
	job := worker.NewScanJob(worker.ScanJobConfig{
		Config:  worker.ScanConfig{Locations: watchLocations()},
		Checker: checker,
		Logger:  zerolog.Nop(),
	})

	result := job.Run(context.Background())

	assert.Len(t, result.Alerts, 1)
	assert.Zero(t, result.Published)
	assert.Zero(t, result.PublishFailed)
}

func TestScanJob_MetricsSnapshot(t *testing.T) {
	job := worker.NewScanJob(worker.ScanJobConfig{
		Config:  worker.ScanConfig{Locations: watchLocations()},
		Checker: &mockChecker{},
		Logger:  zerolog.Nop(),
		Clock:   func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) },
	})

	snapshot := job.MetricsSnapshot()
	assert.NotContains(t, snapshot, "last_scan_at")

	job.Run(context.Background())

	snapshot = job.MetricsSnapshot()
	assert.Equal(t, int64(1), snapshot["total_scans"])
	assert.Equal(t, "2026-05-01T12:00:00Z", snapshot["last_scan_at"])
}

func TestSweepJob_Run(t *testing.T) {
	recommendations := &mockSweeper{removed: 3}
	precip := &mockSweeper{}
	cooldowns := &mockSweeper{removed: 1}

	job := worker.NewSweepJob(zerolog.Nop(),
		worker.SweepTarget{Name: "recommendations", Sweeper: recommendations},
		worker.SweepTarget{Name: "precipitation", Sweeper: precip},
		worker.SweepTarget{Name: "cooldowns", Sweeper: cooldowns},
		worker.SweepTarget{Name: "missing"},
	)

	removed := job.Run()

	assert.Equal(t, map[string]int{"recommendations": 3, "precipitation": 0, "cooldowns": 1}, removed)
	assert.Equal(t, 1, recommendations.calls)
	assert.Equal(t, 1, precip.calls)
	assert.Equal(t, 1, cooldowns.calls)
}

func TestScheduler_RegistersJobs(t *testing.T) {
	sweep := worker.NewSweepJob(zerolog.Nop())
	scan := worker.NewScanJob(worker.ScanJobConfig{Checker: &mockChecker{}, Logger: zerolog.Nop()})

	tests := []struct {
		name     string
		cfg      worker.SchedulerConfig
		wantJobs int
	}{
		{
			name:     "sweep and scan",
			cfg:      worker.SchedulerConfig{SweepSchedule: "@every 60s", ScanSchedule: "@every 5m", Sweep: sweep, Scan: scan},
			wantJobs: 2,
		},
		{
			name:     "scan schedule empty",
			cfg:      worker.SchedulerConfig{SweepSchedule: "@every 60s", Sweep: sweep, Scan: scan},
			wantJobs: 1,
		},
		{
			name:     "standard cron spec",
			cfg:      worker.SchedulerConfig{SweepSchedule: "*/5 * * * *", Sweep: sweep},
			wantJobs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Logger = zerolog.Nop()
			s, err := worker.NewScheduler(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantJobs, s.JobCount())
		})
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	_, err := worker.NewScheduler(worker.SchedulerConfig{
		SweepSchedule: "every minute",
		Sweep:         worker.NewSweepJob(zerolog.Nop()),
		Logger:        zerolog.Nop(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sweep schedule")
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := worker.NewScheduler(worker.SchedulerConfig{
		SweepSchedule: "@every 1h",
		Sweep:         worker.NewSweepJob(zerolog.Nop()),
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)

	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestDispatcher_Dispatch(t *testing.T) {
	checker := &mockChecker{}
	sweeper := &mockSweeper{}
	cooldowns := &mockCooldowns{}

	d := worker.NewDispatcher(worker.DispatcherConfig{
		Scan: worker.NewScanJob(worker.ScanJobConfig{
			Config:  worker.ScanConfig{Locations: watchLocations()},
			Checker: checker,
			Logger:  zerolog.Nop(),
		}),
		Sweep:     worker.NewSweepJob(zerolog.Nop(), worker.SweepTarget{Name: "cache", Sweeper: sweeper}),
		Cooldowns: cooldowns,
		Logger:    zerolog.Nop(),
	})
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, []byte(`{"job_type":"precipitation_scan"}`)))
	assert.Equal(t, 1, checker.calls)

	require.NoError(t, d.Dispatch(ctx, []byte(`{"job_type":"cache_sweep"}`)))
	assert.Equal(t, 1, sweeper.calls)

	require.NoError(t, d.Dispatch(ctx, []byte(`{"job_type":"clear_cooldown","location_id":"home"}`)))
	assert.Equal(t, []string{"home"}, cooldowns.cleared)
}

func TestDispatcher_PermanentErrors(t *testing.T) {
	d := worker.NewDispatcher(worker.DispatcherConfig{
		Cooldowns: &mockCooldowns{},
		Logger:    zerolog.Nop(),
	})

	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"malformed", `{"job_type":`, worker.ErrMalformedJob},
		{"unknown type", `{"job_type":"provider_refresh"}`, worker.ErrUnknownJobType},
		{"unconfigured scan", `{"job_type":"precipitation_scan"}`, worker.ErrUnknownJobType},
		{"missing location", `{"job_type":"clear_cooldown"}`, precipitation.ErrInvalidLocationID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Dispatch(context.Background(), []byte(tt.data))
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, worker.IsPermanent(err))
		})
	}
}

func TestIsPermanent_TransientError(t *testing.T) {
	assert.False(t, worker.IsPermanent(context.DeadlineExceeded))
	assert.False(t, worker.IsPermanent(nil))
}

func TestJobType(t *testing.T) {
	assert.Equal(t, "cache_sweep", worker.JobType([]byte(`{"job_type":"cache_sweep"}`)))
	assert.Empty(t, worker.JobType([]byte(`not json`)))
}

func TestAlertMessage(t *testing.T) {
	alert := precipitation.Alert{
		ID:                "4f1c",
		LocationID:        "home",
		Lat:               40.71,
		Lon:               -74.0,
		MinutesToStart:    4,
		Type:              precipitation.TypeRain,
		Intensity:         precipitation.IntensityModerate,
		EstimatedDuration: 9,
		GeneratedAt:       time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	msg, err := worker.AlertMessage(alert)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"alert_id":    "4f1c",
		"location_id": "home",
		"type":        "rain",
		"intensity":   "moderate",
	}, msg.Attributes)

	var decoded precipitation.Alert
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, alert, decoded)
}
