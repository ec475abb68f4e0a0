package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/skydeck/skydeck/internal/precipitation"
)

// Job types accepted on the worker subscription.
const (
	JobPrecipitationScan = "precipitation_scan"
	JobCacheSweep        = "cache_sweep"
	JobClearCooldown     = "clear_cooldown"
)

// Job errors.
var (
	ErrMalformedJob   = errors.New("malformed job message")
	ErrUnknownJobType = errors.New("unknown job type")
)

// JobMessage is the payload of a worker job message.
type JobMessage struct {
	JobType    string `json:"job_type"`
	LocationID string `json:"location_id,omitempty"`
}

// CooldownClearer clears the alert cooldown of one location.
type CooldownClearer interface {
	ClearCooldown(locationID string) error
}

// DispatcherConfig holds configuration for the job dispatcher.
type DispatcherConfig struct {
	Scan      *ScanJob
	Sweep     *SweepJob
	Cooldowns CooldownClearer
	Logger    zerolog.Logger
}

// Dispatcher decodes job messages and runs the matching job.
type Dispatcher struct {
	scan      *ScanJob
	sweep     *SweepJob
	cooldowns CooldownClearer
	logger    zerolog.Logger
}

// NewDispatcher creates a new job dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		scan:      cfg.Scan,
		sweep:     cfg.Sweep,
		cooldowns: cfg.Cooldowns,
		logger:    cfg.Logger,
	}
}

// Dispatch runs the job described by data.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}

	d.logger.Debug().
		Str("job_type", msg.JobType).
		Str("location_id", msg.LocationID).
		Msg("dispatching job")

	switch msg.JobType {
	case JobPrecipitationScan:
		if d.scan == nil {
			return fmt.Errorf("%w: %s not configured", ErrUnknownJobType, msg.JobType)
		}
		d.scan.Run(ctx)
		return ctx.Err()

	case JobCacheSweep:
		if d.sweep == nil {
			return fmt.Errorf("%w: %s not configured", ErrUnknownJobType, msg.JobType)
		}
		d.sweep.Run()
		return nil

	case JobClearCooldown:
		if d.cooldowns == nil {
			return fmt.Errorf("%w: %s not configured", ErrUnknownJobType, msg.JobType)
		}
		return d.cooldowns.ClearCooldown(msg.LocationID)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

// IsPermanent reports whether a Dispatch error would recur on redelivery.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMalformedJob) ||
		errors.Is(err, ErrUnknownJobType) ||
		errors.Is(err, precipitation.ErrInvalidLocationID)
}

// JobType extracts the job type from a message for logging. It returns an
// empty string when data does not decode.
func JobType(data []byte) string {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ""
	}
	return msg.JobType
}
