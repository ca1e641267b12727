// Package scheduler drives the collector on a fixed interval. Cycles
// never overlap: the next cycle starts interval seconds after the
// previous one STARTED, or immediately when a cycle overran.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/banktl/atmwatch/internal/models"
)

// CycleRunner is the collector surface the scheduler drives.
type CycleRunner interface {
	RunCycle(ctx context.Context) (models.CycleSnapshot, error)
}

// Scheduler runs cycles back to back with a fixed start-to-start
// interval and keeps a short outcome history for health reporting.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	history  *History
}

// New builds a scheduler around a collector.
func New(runner CycleRunner, interval time.Duration, history *History) *Scheduler {
	if history == nil {
		history = NewHistory(historyDepth)
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		history:  history,
	}
}

// History exposes the scheduler's cycle history.
func (s *Scheduler) History() *History {
	return s.history
}

// RunOnce executes a single cycle and records its outcome. A shutdown
// requested during the cycle is reported only after the cycle has
// finished and persisted.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	_, err := s.run(ctx)
	if err != nil {
		return err
	}
	return ctx.Err()
}

// RunContinuous loops cycles until the context is cancelled. The sleep
// between cycles is max(0, interval - cycle duration), taken in
// one-second slices so shutdown is observed within a second.
func (s *Scheduler) RunContinuous(ctx context.Context) error {
	cycle := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cycle++
		log.Info().Int("cycle", cycle).Msg("Scheduled cycle starting")

		elapsed, err := s.run(ctx)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		remaining := s.interval - elapsed
		if remaining <= 0 {
			log.Warn().Dur("elapsed", elapsed).Dur("interval", s.interval).
				Msg("Cycle overran the interval, starting next cycle immediately")
			continue
		}

		log.Info().Dur("sleep", remaining).Msg("Cycle complete, sleeping until next")
		if !s.sleep(ctx, remaining) {
			return ctx.Err()
		}
	}
}

func (s *Scheduler) run(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	// A shutdown signal must not abort a cycle in flight: the cycle
	// runs on a detached context so everything gathered so far still
	// reaches persistence and the registry. Cancellation is observed
	// between cycles only.
	snap, err := s.runner.RunCycle(context.WithoutCancel(ctx))
	elapsed := time.Since(start)

	outcome := Outcome{
		CycleID:   snap.CycleID,
		StartedAt: snap.StartedAt,
		Duration:  elapsed,
		Failover:  snap.Failover,
		Terminals: len(snap.Terminals),
	}
	if err != nil {
		outcome.Error = err.Error()
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("Cycle failed")
	}
	s.history.Record(outcome)
	return elapsed, err
}

// sleep waits for d in one-second slices, returning false when the
// context was cancelled first.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		slice := time.Second
		if remaining < slice {
			slice = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(slice):
		}
	}
}
