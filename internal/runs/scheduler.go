package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler invokes a Runner once at start (optionally) and then on every
// interval tick. Ticks run on a single goroutine, so scheduled runs never
// overlap each other; a tick that collides with a manual run is skipped.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	log        zerolog.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

// NewScheduler creates a scheduler for the given runner.
func NewScheduler(runner Runner, interval time.Duration, runOnStart bool, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runOnStart: runOnStart,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// Start launches the scheduling loop. It returns immediately; the loop stops
// when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("Scheduler.Start: interval must be positive, got %s", s.interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("Scheduler.Start: already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)

	s.log.Info().Dur("interval", s.interval).Bool("run_on_start", s.runOnStart).Msg("Scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.runOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs the pipeline once. Failures are logged and never stop the loop.
func (s *Scheduler) tick(ctx context.Context) {
	run, err := s.runner.Run(ctx, TriggerScheduled)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.log.Warn().Msg("Scheduled run skipped: a run is already in progress")
	case err != nil:
		ev := s.log.Error().Err(err)
		if run != nil {
			ev = ev.Str("run_id", run.RunID)
		}
		ev.Msg("Scheduled run failed")
	}
}

// Stop cancels the loop and waits for an in-flight run to finish, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
