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

// seenCapacity bounds the duplicate-suppression set. The stream can
// deliver the same transaction once per subscribed account, so recent
// hashes are remembered and older ones aged out.
const seenCapacity = 4096

// Subscriber consumes the realtime transaction stream for the monitored
// accounts. Ledger positions are tracked in memory per account and
// flushed to the cursor store in batches; a crash loses at most one
// batch of positions, which the next backfill pass re-covers.
type Subscriber struct {
	dial       xrpl.DialFunc
	extractor  *extract.Extractor
	sink       *Sink
	cursors    storage.CursorStore
	accounts   []domain.MonitoredAccount
	flushEvery int
	logger     zerolog.Logger

	// In-memory state, owned by the Run goroutine. floors holds each
	// account's starting cursor, re-derived from the store on every
	// (re)connect; events at or below the floor are replays. positions
	// holds the highest ledger seen since, dirty the entries still
	// needing a flush. The floor is not bumped as events arrive because
	// distinct transactions share a ledger index.
	floors     map[string]int64
	positions  map[string]int64
	dirty      map[string]struct{}
	seen       map[string]struct{}
	seenOrder  []string
	sinceFlush int
}

// SubscriberOptions contains configuration for creating a Subscriber.
type SubscriberOptions struct {
	Dial       xrpl.DialFunc
	Extractor  *extract.Extractor
	Sink       *Sink
	Cursors    storage.CursorStore
	Accounts   []domain.MonitoredAccount
	FlushEvery int // Default: 100 events per cursor flush
	Logger     zerolog.Logger
}

// NewSubscriber creates a new realtime subscriber.
func NewSubscriber(opts SubscriberOptions) *Subscriber {
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 100
	}

	return &Subscriber{
		dial:       opts.Dial,
		extractor:  opts.Extractor,
		sink:       opts.Sink,
		cursors:    opts.Cursors,
		accounts:   opts.Accounts,
		flushEvery: flushEvery,
		logger:     opts.Logger,
		floors:     make(map[string]int64),
		positions:  make(map[string]int64),
		dirty:      make(map[string]struct{}),
		seen:       make(map[string]struct{}),
	}
}

// Run dials a fresh connection, subscribes, and processes events until
// the stream ends or the context is cancelled. A closed stream returns
// an error so the supervisor can schedule a reconnect; cancellation
// returns nil after a final cursor flush.
func (s *Subscriber) Run(ctx context.Context) error {
	client, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	if err := s.seedPositions(ctx); err != nil {
		return err
	}

	addresses := make([]string, 0, len(s.accounts))
	for _, a := range s.accounts {
		addresses = append(addresses, a.Address)
	}

	events, err := client.Subscribe(ctx, addresses)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.logger.Info().Int("accounts", len(addresses)).Msg("realtime subscription established")
	observability.DefaultMetrics.SubscriberUp.Set(1)
	defer observability.DefaultMetrics.SubscriberUp.Set(0)

	for {
		select {
		case <-ctx.Done():
			s.flush(context.WithoutCancel(ctx))
			return nil

		case txm, ok := <-events:
			if !ok {
				s.flush(context.WithoutCancel(ctx))
				return fmt.Errorf("event stream closed")
			}
			if err := s.handleEvent(ctx, client, txm); err != nil {
				s.flush(context.WithoutCancel(ctx))
				return err
			}
		}
	}
}

// handleEvent processes one stream event.
func (s *Subscriber) handleEvent(ctx context.Context, client xrpl.LedgerClient, txm *xrpl.TransactionWithMeta) error {
	observability.DefaultMetrics.StreamEventsReceived.Inc()

	if txm == nil || !txm.Validated {
		return nil
	}
	if s.isDuplicate(txm.Tx.Hash) {
		observability.RecordDuplicateSkipped("stream_event")
		return nil
	}

	ledger := txm.LedgerIndex
	res := s.extractor.Extract(txm)
	if s.isReplay(res, ledger) {
		observability.RecordDuplicateSkipped("replayed_ledger")
		return nil
	}

	if _, err := s.sink.Store(ctx, res, client.AMMInfo); err != nil {
		return err
	}

	observability.UpdateHighestLedger(ledger)
	for _, transfer := range res.Transfers {
		s.advancePosition(transfer.Account, ledger)
	}
	for _, snap := range res.Snapshots {
		s.advancePosition(snap.PoolAccount, ledger)
	}
	for _, pool := range res.NeedsStateLookup {
		s.advancePosition(pool, ledger)
	}

	s.sinceFlush++
	if s.sinceFlush >= s.flushEvery {
		s.flush(ctx)
	}
	return nil
}

// seedPositions re-derives each account's starting cursor from the
// store, so a replay burst after reconnect is discarded without storage
// round-trips.
func (s *Subscriber) seedPositions(ctx context.Context) error {
	for _, a := range s.accounts {
		cur, err := s.cursors.Get(ctx, domain.CollectionRealtime, a.Address)
		if errors.Is(err, storage.ErrNotFound) {
			s.floors[a.Address] = 0
			continue
		}
		if err != nil {
			return fmt.Errorf("load cursor %s: %w", a.Address, err)
		}
		s.floors[a.Address] = cur.LastLedger
	}
	return nil
}

// isReplay reports whether every account the event touches already had
// the event's ledger collected when the subscription started.
func (s *Subscriber) isReplay(res *extract.Result, ledger int64) bool {
	involved := 0
	for _, transfer := range res.Transfers {
		involved++
		if ledger > s.floors[transfer.Account] {
			return false
		}
	}
	for _, snap := range res.Snapshots {
		involved++
		if ledger > s.floors[snap.PoolAccount] {
			return false
		}
	}
	for _, pool := range res.NeedsStateLookup {
		involved++
		if ledger > s.floors[pool] {
			return false
		}
	}
	return involved > 0
}

func (s *Subscriber) advancePosition(account string, ledger int64) {
	if ledger > s.positions[account] {
		s.positions[account] = ledger
		s.dirty[account] = struct{}{}
	}
}

// isDuplicate records the hash and reports whether it was already seen.
func (s *Subscriber) isDuplicate(hash string) bool {
	if hash == "" {
		return false
	}
	if _, dup := s.seen[hash]; dup {
		return true
	}
	s.seen[hash] = struct{}{}
	s.seenOrder = append(s.seenOrder, hash)
	if len(s.seenOrder) > seenCapacity {
		oldest := s.seenOrder[0]
		s.seenOrder = s.seenOrder[1:]
		delete(s.seen, oldest)
	}
	return false
}

// flush persists the positions that moved since the last flush.
// Failures are logged, not fatal: the entry stays dirty and the next
// flush retries it.
func (s *Subscriber) flush(ctx context.Context) {
	if len(s.dirty) == 0 {
		s.sinceFlush = 0
		return
	}

	for account := range s.dirty {
		ledger := s.positions[account]
		if err := s.cursors.Advance(ctx, domain.CollectionRealtime, account, ledger, domain.StatusActive, 0); err != nil {
			s.logger.Warn().Err(err).Str("account", account).Int64("ledger", ledger).Msg("cursor flush failed")
			return
		}
		delete(s.dirty, account)
	}

	observability.DefaultMetrics.CursorFlushes.Inc()
	observability.DefaultMetrics.LastSuccessfulFlush.Set(float64(time.Now().Unix()))
	s.sinceFlush = 0
}
