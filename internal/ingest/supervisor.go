package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"xrpl-amm-lab/internal/observability"
)

// Supervisor restarts a failing task with exponential backoff. The
// attempt counter resets once a run survives the stability window, so
// a connection that stays up for a while earns back its full retry
// budget. A run that keeps dying exhausts MaxAttempts and the error
// escalates to the caller.
type Supervisor struct {
	task            func(ctx context.Context) error
	name            string
	maxAttempts     int
	maxBackoff      time.Duration
	stabilityWindow time.Duration
	logger          zerolog.Logger

	// Injectable time functions for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// SupervisorOptions contains configuration for creating a Supervisor.
type SupervisorOptions struct {
	Task            func(ctx context.Context) error
	Name            string
	MaxAttempts     int           // Default: 10 reconnect attempts
	MaxBackoff      time.Duration // Default: 60s backoff ceiling
	StabilityWindow time.Duration // Default: 5m of uptime resets the counter
	Logger          zerolog.Logger
}

// NewSupervisor creates a new supervisor around a task.
func NewSupervisor(opts SupervisorOptions) *Supervisor {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	maxBackoff := opts.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 60 * time.Second
	}
	stabilityWindow := opts.StabilityWindow
	if stabilityWindow <= 0 {
		stabilityWindow = 5 * time.Minute
	}

	return &Supervisor{
		task:            opts.Task,
		name:            opts.Name,
		maxAttempts:     maxAttempts,
		maxBackoff:      maxBackoff,
		stabilityWindow: stabilityWindow,
		logger:          opts.Logger,
		sleep:           sleepCtx,
		now:             time.Now,
	}
}

// Run executes the task until it succeeds, the context is cancelled, or
// the retry budget is exhausted. Cancellation always returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	attempts := 0

	for {
		start := s.now()
		err := s.task(ctx)

		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return nil
		}

		// A long-lived run means the previous failures were transient.
		if s.now().Sub(start) >= s.stabilityWindow {
			attempts = 0
		}

		attempts++
		observability.RecordReconnectAttempt()

		if attempts > s.maxAttempts {
			return fmt.Errorf("%s: giving up after %d reconnect attempts: %w", s.name, s.maxAttempts, err)
		}

		delay := s.backoff(attempts)
		s.logger.Warn().
			Err(err).
			Str("task", s.name).
			Int("attempt", attempts).
			Int("max_attempts", s.maxAttempts).
			Dur("backoff", delay).
			Msg("task failed, reconnecting")

		if err := s.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

// backoff returns min(2^attempt seconds, maxBackoff).
func (s *Supervisor) backoff(attempt int) time.Duration {
	if attempt > 30 {
		return s.maxBackoff
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > s.maxBackoff {
		return s.maxBackoff
	}
	return d
}
