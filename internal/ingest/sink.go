package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/extract"
	"xrpl-amm-lab/internal/observability"
	"xrpl-amm-lab/internal/storage"
	"xrpl-amm-lab/internal/xrpl"
)

// StateLookupFunc resolves live AMM state for a pool account.
type StateLookupFunc func(ctx context.Context, pool string) (*xrpl.AMMState, error)

// Sink persists extraction results. Both the backfill engine and the
// realtime subscriber write through the same sink, so replaying a
// ledger range is idempotent: duplicate rows are absorbed here.
type Sink struct {
	Transfers  storage.TransferStore
	Snapshots  storage.SnapshotStore
	Timeseries storage.PoolTimeseriesStore // nil disables analytics export
	Logger     zerolog.Logger
}

// Store writes one extraction result and returns the number of new rows.
// Duplicate transfers and snapshots are skipped silently; a failed state
// lookup or storage error aborts the call.
func (s *Sink) Store(ctx context.Context, res *extract.Result, lookup StateLookupFunc) (int64, error) {
	var records int64

	for _, transfer := range res.Transfers {
		err := s.Transfers.Insert(ctx, transfer)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				observability.RecordDuplicateSkipped("transfer")
				continue
			}
			observability.RecordExtractionError("transfer_insert")
			return records, fmt.Errorf("store transfer %s/%d: %w", transfer.TxHash, transfer.LegIndex, err)
		}
		observability.RecordTransferStored()
		records++
	}

	snapshots := res.Snapshots
	for _, pool := range res.NeedsStateLookup {
		if lookup == nil {
			break
		}
		state, err := lookup(ctx, pool)
		if err != nil {
			observability.RecordExtractionError("state_lookup")
			return records, fmt.Errorf("lookup pool state %s: %w", pool, err)
		}
		snap := extract.SnapshotFromState(state, time.Now().UTC(), "", "")
		snapshots = append(snapshots, snap)
	}

	var stored []*domain.PoolSnapshot
	for _, snap := range snapshots {
		err := s.Snapshots.Insert(ctx, snap)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				observability.RecordDuplicateSkipped("snapshot")
				continue
			}
			observability.RecordExtractionError("snapshot_insert")
			return records, fmt.Errorf("store snapshot %s@%d: %w", snap.PoolAccount, snap.LedgerIndex, err)
		}
		observability.RecordSnapshotStored()
		stored = append(stored, snap)
		records++
	}

	if s.Timeseries != nil && len(stored) > 0 {
		points := make([]*domain.PoolTimeseriesPoint, 0, len(stored))
		for _, snap := range stored {
			points = append(points, snap.TimeseriesPoint())
		}
		if err := s.Timeseries.InsertBulk(ctx, points); err != nil {
			// Analytics export is best effort; the relational row is
			// already durable and the point can be rebuilt from it.
			s.Logger.Warn().Err(err).Int("points", len(points)).Msg("timeseries flush failed")
			observability.RecordExtractionError("timeseries_flush")
		} else {
			observability.DefaultMetrics.TimeseriesFlushed.Add(float64(len(points)))
		}
	}

	return records, nil
}
