package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/extract"
	"xrpl-amm-lab/internal/xrpl"
)

// Sampler periodically reads live AMM state so that pools with little
// transaction traffic still accumulate a snapshot history. Samples that
// barely moved against the last stored reserve are dropped; the
// significance filter keeps quiet pools from filling the store with
// near-identical rows.
type Sampler struct {
	dial            xrpl.DialFunc
	sink            *Sink
	pools           []string
	significancePct decimal.Decimal
	logger          zerolog.Logger

	lastAsset1 map[string]decimal.Decimal
}

// SamplerOptions contains configuration for creating a Sampler.
type SamplerOptions struct {
	Dial            xrpl.DialFunc
	Sink            *Sink
	Pools           []string
	SignificancePct float64 // Default: 1.0 (one percent reserve change)
	Logger          zerolog.Logger
}

// NewSampler creates a new pool state sampler.
func NewSampler(opts SamplerOptions) *Sampler {
	pct := opts.SignificancePct
	if pct <= 0 {
		pct = 1.0
	}

	return &Sampler{
		dial:            opts.Dial,
		sink:            opts.Sink,
		pools:           opts.Pools,
		significancePct: decimal.NewFromFloat(pct),
		logger:          opts.Logger,
		lastAsset1:      make(map[string]decimal.Decimal),
	}
}

// Sample reads every pool's live state once and stores the significant
// ones. Errors on individual pools are logged and skipped so one broken
// pool cannot starve the others.
func (s *Sampler) Sample(ctx context.Context) error {
	if len(s.pools) == 0 {
		return nil
	}

	client, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	for _, pool := range s.pools {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		state, err := client.AMMInfo(ctx, pool)
		if err != nil {
			s.logger.Warn().Err(err).Str("pool", pool).Msg("amm_info failed, skipping pool")
			continue
		}

		snap := extract.SnapshotFromState(state, time.Now().UTC(), "", "")
		if !s.IsSignificant(pool, snap.Asset1.Amount) {
			s.logger.Debug().Str("pool", pool).Msg("reserve change below significance, sample dropped")
			continue
		}

		if _, err := s.sink.Store(ctx, &extract.Result{Snapshots: []*domain.PoolSnapshot{snap}}, nil); err != nil {
			return err
		}
	}

	return nil
}

// IsSignificant reports whether the pool's asset1 reserve moved at
// least significancePct percent from the last stored sample, and
// records the value when it did. The first observation of a pool is
// always significant.
func (s *Sampler) IsSignificant(pool string, asset1 decimal.Decimal) bool {
	prev, ok := s.lastAsset1[pool]
	if !ok || prev.IsZero() {
		s.lastAsset1[pool] = asset1
		return true
	}

	changePct := asset1.Sub(prev).Abs().Div(prev).Mul(decimal.NewFromInt(100))
	if changePct.LessThan(s.significancePct) {
		return false
	}

	s.lastAsset1[pool] = asset1
	return true
}
