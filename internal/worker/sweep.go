package worker

import (
	"github.com/rs/zerolog"
)

// Sweeper evicts expired entries and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

// SweepTarget names one sweepable store for logging.
type SweepTarget struct {
	Name    string
	Sweeper Sweeper
}

// SweepJob evicts expired cache entries and cooldown records.
type SweepJob struct {
	targets []SweepTarget
	logger  zerolog.Logger
}

// NewSweepJob creates a sweep job over targets. Targets with a nil
// Sweeper are ignored.
func NewSweepJob(logger zerolog.Logger, targets ...SweepTarget) *SweepJob {
	kept := make([]SweepTarget, 0, len(targets))
	for _, t := range targets {
		if t.Sweeper != nil {
			kept = append(kept, t)
		}
	}
	return &SweepJob{
		targets: kept,
		logger:  logger,
	}
}

// Run sweeps every target and returns the removed count per target name.
func (j *SweepJob) Run() map[string]int {
	removed := make(map[string]int, len(j.targets))
	total := 0
	for _, t := range j.targets {
		n := t.Sweeper.Sweep()
		removed[t.Name] += n
		total += n
	}

	event := j.logger.Debug()
	if total > 0 {
		event = j.logger.Info()
	}
	dict := zerolog.Dict()
	for name, n := range removed {
		dict = dict.Int(name, n)
	}
	event.Dict("removed", dict).
		Int("total_removed", total).
		Msg("sweep completed")

	return removed
}
