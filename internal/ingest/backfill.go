package ingest

import (
	"context"
	"encoding/json"
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

// Backfiller walks missed ledger ranges chunk by chunk, persisting the
// cursor after every chunk so an interrupted pass resumes where it
// stopped instead of starting over.
type Backfiller struct {
	client     xrpl.LedgerClient
	extractor  *extract.Extractor
	sink       *Sink
	cursors    storage.CursorStore
	detector   *GapDetector
	chunkSize  int64
	chunkDelay time.Duration
	logger     zerolog.Logger

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// BackfillerOptions contains configuration for creating a Backfiller.
type BackfillerOptions struct {
	Client     xrpl.LedgerClient
	Extractor  *extract.Extractor
	Sink       *Sink
	Cursors    storage.CursorStore
	Detector   *GapDetector
	ChunkSize  int64         // Default: 1000 ledgers per chunk
	ChunkDelay time.Duration // Default: 500ms between chunks
	Logger     zerolog.Logger
}

// NewBackfiller creates a new backfill engine.
func NewBackfiller(opts BackfillerOptions) *Backfiller {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	chunkDelay := opts.ChunkDelay
	if chunkDelay == 0 {
		chunkDelay = 500 * time.Millisecond
	}

	return &Backfiller{
		client:     opts.Client,
		extractor:  opts.Extractor,
		sink:       opts.Sink,
		cursors:    opts.Cursors,
		detector:   opts.Detector,
		chunkSize:  chunkSize,
		chunkDelay: chunkDelay,
		logger:     opts.Logger,
		sleep:      sleepCtx,
	}
}

// RunPass detects and fills gaps for every account. Accounts already in
// sync are skipped. A failure on one account marks its cursor failed and
// moves on to the next, so one flaky target cannot starve the rest of
// the pass; per-chunk cursor persistence means the next pass resumes
// each account from its failure point. Per-account errors are joined
// into the return value.
func (b *Backfiller) RunPass(ctx context.Context, accounts []domain.MonitoredAccount) error {
	start := time.Now()
	defer func() {
		observability.DefaultMetrics.BackfillPassDuration.Observe(time.Since(start).Seconds())
	}()

	currentLedger, err := b.client.CurrentLedger(ctx)
	if err != nil {
		return fmt.Errorf("resolve current ledger: %w", err)
	}
	observability.UpdateHighestLedger(currentLedger)

	var passErrs []error
	for _, account := range accounts {
		if ctx.Err() != nil {
			passErrs = append(passErrs, ctx.Err())
			break
		}

		gap, err := b.detector.Detect(ctx, account.Address, currentLedger)
		if err != nil {
			passErrs = append(passErrs, fmt.Errorf("detect gap %s: %w", account.Address, err))
			continue
		}
		observability.RecordGap(account.Address, gap.Ledgers())

		if gap.State == GapInSync {
			b.logger.Debug().Str("account", account.Address).Msg("account in sync, no backfill")
			continue
		}

		b.logger.Info().
			Str("account", account.Address).
			Str("state", string(gap.State)).
			Int64("from", gap.From).
			Int64("to", gap.To).
			Int64("ledgers", gap.Ledgers()).
			Msg("backfilling gap")

		if err := b.fillRange(ctx, domain.CollectionRealtime, account.Address, gap.From, gap.To); err != nil {
			// Best effort: record the failure on the cursor so status
			// tooling can surface it. The ledger position is already
			// persisted by the last completed chunk.
			if stErr := b.cursors.SetStatus(ctx, domain.CollectionRealtime, account.Address, domain.StatusFailed); stErr != nil {
				b.logger.Warn().Err(stErr).Str("account", account.Address).Msg("mark cursor failed")
			}
			b.logger.Error().Err(err).Str("account", account.Address).Msg("account backfill failed")
			passErrs = append(passErrs, fmt.Errorf("backfill %s: %w", account.Address, err))
		}
	}

	return errors.Join(passErrs...)
}

// FillHistorical runs a one-shot bounded pass for an explicit ledger
// range, tracked under its own historical cursor so it never disturbs
// the realtime one. A previous interrupted pass resumes past its last
// persisted chunk. The cursor is marked completed once the end ledger
// is reached, or failed when the pass aborts.
func (b *Backfiller) FillHistorical(ctx context.Context, account string, from, to int64) error {
	if from <= 0 || to < from {
		return fmt.Errorf("invalid ledger range %d-%d", from, to)
	}

	if cur, err := b.cursors.Get(ctx, domain.CollectionHistorical, account); err == nil {
		if cur.LastLedger >= to {
			b.logger.Info().
				Str("account", account).
				Int64("last_ledger", cur.LastLedger).
				Msg("historical range already collected")
			return b.cursors.SetStatus(ctx, domain.CollectionHistorical, account, domain.StatusCompleted)
		}
		if cur.LastLedger >= from {
			from = cur.LastLedger + 1
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load historical cursor: %w", err)
	}

	b.logger.Info().
		Str("account", account).
		Int64("from", from).
		Int64("to", to).
		Msg("historical backfill starting")

	if err := b.fillRange(ctx, domain.CollectionHistorical, account, from, to); err != nil {
		if stErr := b.cursors.SetStatus(ctx, domain.CollectionHistorical, account, domain.StatusFailed); stErr != nil {
			b.logger.Warn().Err(stErr).Str("account", account).Msg("mark cursor failed")
		}
		return fmt.Errorf("historical backfill %s: %w", account, err)
	}

	return b.cursors.SetStatus(ctx, domain.CollectionHistorical, account, domain.StatusCompleted)
}

// fillRange processes [from, to] in chunks of chunkSize ledgers.
func (b *Backfiller) fillRange(ctx context.Context, ct domain.CollectionType, account string, from, to int64) error {
	for chunkStart := from; chunkStart <= to; chunkStart += b.chunkSize {
		chunkEnd := chunkStart + b.chunkSize - 1
		if chunkEnd > to {
			chunkEnd = to
		}

		records, err := b.collectChunk(ctx, account, chunkStart, chunkEnd)
		if err != nil {
			observability.RecordBackfillChunk("failed")
			return fmt.Errorf("chunk %d-%d: %w", chunkStart, chunkEnd, err)
		}

		// The cursor moves to the chunk end even when the chunk held no
		// transactions: the range was inspected and is accounted for.
		if err := b.cursors.Advance(ctx, ct, account, chunkEnd, domain.StatusActive, records); err != nil {
			observability.RecordBackfillChunk("failed")
			return fmt.Errorf("advance cursor to %d: %w", chunkEnd, err)
		}
		observability.RecordBackfillChunk("completed")

		b.logger.Debug().
			Str("account", account).
			Int64("chunk_start", chunkStart).
			Int64("chunk_end", chunkEnd).
			Int64("records", records).
			Msg("chunk completed")

		if chunkEnd < to {
			if err := b.sleep(ctx, b.chunkDelay); err != nil {
				return err
			}
		}
	}

	return nil
}

// collectChunk fetches and stores every transaction for the account in
// [from, to], following account_tx pagination markers.
func (b *Backfiller) collectChunk(ctx context.Context, account string, from, to int64) (int64, error) {
	var records int64
	var marker json.RawMessage

	for {
		page, err := b.client.AccountTransactions(ctx, account, from, to, marker)
		if err != nil {
			return records, fmt.Errorf("account_tx: %w", err)
		}

		for _, txm := range page.Transactions {
			if !txm.Validated {
				continue
			}
			res := b.extractor.Extract(txm)
			n, err := b.sink.Store(ctx, res, b.client.AMMInfo)
			if err != nil {
				return records, err
			}
			records += n
		}

		if len(page.Marker) == 0 {
			return records, nil
		}
		marker = page.Marker
	}
}

// sleepCtx pauses for d or until the context ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
