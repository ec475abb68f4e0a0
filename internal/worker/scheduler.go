package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	// SweepSchedule is a cron spec or descriptor such as "@every 60s".
	SweepSchedule string

	// ScanSchedule is a cron spec or descriptor such as "@every 5m".
	// The scan is not scheduled when empty.
	ScanSchedule string

	Sweep  *SweepJob
	Scan   *ScanJob
	Logger zerolog.Logger
}

// Scheduler runs the sweep and scan jobs on their cron schedules. A run
// still in progress when its next tick fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewScheduler registers the configured jobs. It fails on an invalid
// schedule spec.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	logger := cronLogger{logger: cfg.Logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if cfg.Sweep != nil {
		if _, err := c.AddFunc(cfg.SweepSchedule, func() { cfg.Sweep.Run() }); err != nil {
			return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.SweepSchedule, err)
		}
	}

	if cfg.Scan != nil && cfg.ScanSchedule != "" {
		if _, err := c.AddFunc(cfg.ScanSchedule, func() { cfg.Scan.Run(context.Background()) }); err != nil {
			return nil, fmt.Errorf("invalid scan schedule %q: %w", cfg.ScanSchedule, err)
		}
	}

	return &Scheduler{
		cron:   c,
		logger: cfg.Logger,
	}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info().
		Int("jobs", len(s.cron.Entries())).
		Msg("starting scheduler")
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// JobCount returns the number of scheduled jobs.
func (s *Scheduler) JobCount() int {
	return len(s.cron.Entries())
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
