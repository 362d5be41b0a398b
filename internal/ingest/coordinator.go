// Package ingest implements ledger data collection: gap detection,
// chunked backfill, the realtime stream subscriber with its reconnect
// supervisor, and periodic pool state sampling.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/storage"
)

// Coordinator runs the full collection lifecycle: a startup backfill
// pass, the supervised realtime subscriber, an hourly gap sweep, and
// the pool state sampler. Shutdown waits for all tasks and flushes
// final cursor state.
type Coordinator struct {
	backfiller    *Backfiller
	subscriber    *Subscriber
	supervisor    *Supervisor
	sampler       *Sampler
	cursors       storage.CursorStore
	accounts      []domain.MonitoredAccount
	sweepInterval time.Duration
	sampleEvery   time.Duration
	logger        zerolog.Logger
}

// CoordinatorOptions contains configuration for creating a Coordinator.
type CoordinatorOptions struct {
	Backfiller    *Backfiller
	Subscriber    *Subscriber
	Sampler       *Sampler
	Cursors       storage.CursorStore
	Accounts      []domain.MonitoredAccount
	SweepInterval time.Duration // Default: 1h between gap sweeps
	SampleEvery   time.Duration // Default: 5m between pool samples
	Logger        zerolog.Logger

	// Supervisor knobs for the realtime subscriber.
	MaxReconnectAttempts int
	MaxReconnectBackoff  time.Duration
	StabilityWindow      time.Duration
}

// NewCoordinator creates a new collection coordinator.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	sweepInterval := opts.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	sampleEvery := opts.SampleEvery
	if sampleEvery <= 0 {
		sampleEvery = 5 * time.Minute
	}

	supervisor := NewSupervisor(SupervisorOptions{
		Task:            opts.Subscriber.Run,
		Name:            "realtime-subscriber",
		MaxAttempts:     opts.MaxReconnectAttempts,
		MaxBackoff:      opts.MaxReconnectBackoff,
		StabilityWindow: opts.StabilityWindow,
		Logger:          opts.Logger,
	})

	return &Coordinator{
		backfiller:    opts.Backfiller,
		subscriber:    opts.Subscriber,
		supervisor:    supervisor,
		sampler:       opts.Sampler,
		cursors:       opts.Cursors,
		accounts:      opts.Accounts,
		sweepInterval: sweepInterval,
		sampleEvery:   sampleEvery,
		logger:        opts.Logger,
	}
}

// Run blocks until the context is cancelled or the supervised
// subscriber exhausts its retry budget. The startup backfill completes
// before the subscriber starts, so the stream only has to cover the
// in-sync threshold.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info().Int("accounts", len(c.accounts)).Msg("starting collection")

	if err := c.backfiller.RunPass(ctx, c.accounts); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		// A failed startup pass is not fatal: the subscriber still
		// covers the tip and the next sweep retries the gap.
		c.logger.Error().Err(err).Msg("startup backfill pass failed")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.supervisor.Run(runCtx); err != nil {
			select {
			case errCh <- err:
			default:
			}
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.sweepLoop(runCtx)
	}()

	if c.sampler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.sampleLoop(runCtx)
		}()
	}

	<-runCtx.Done()
	wg.Wait()

	select {
	case err := <-errCh:
		c.shutdown(domain.StatusFailed)
		return err
	default:
		c.shutdown(domain.StatusStopped)
		return nil
	}
}

// sweepLoop periodically re-runs gap detection and backfill so that
// anything the stream missed (reconnect windows, flush loss) is
// repaired without operator action.
func (c *Coordinator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.backfiller.RunPass(ctx, c.accounts); err != nil && ctx.Err() == nil {
				c.logger.Error().Err(err).Msg("sweep backfill pass failed")
			}
		}
	}
}

// sampleLoop periodically samples live pool state.
func (c *Coordinator) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(c.sampleEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sampler.Sample(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("pool sampling pass failed")
			}
		}
	}
}

// shutdown marks every account cursor with the final status: stopped on
// a clean exit, failed when the supervisor gave up. Ledger positions
// were already flushed by the subscriber on its way out.
func (c *Coordinator) shutdown(status domain.CursorStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, account := range c.accounts {
		if err := c.cursors.SetStatus(ctx, domain.CollectionRealtime, account.Address, status); err != nil {
			if !isMissingCursor(err) {
				c.logger.Warn().Err(err).Str("account", account.Address).Str("status", string(status)).Msg("mark cursor final status")
			}
		}
	}
	c.logger.Info().Msg("collection stopped")
}

func isMissingCursor(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
