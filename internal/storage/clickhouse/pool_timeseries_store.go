package clickhouse

import (
	"context"
	"fmt"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/storage"
)

// PoolTimeseriesStore implements storage.PoolTimeseriesStore using ClickHouse.
type PoolTimeseriesStore struct {
	conn *Conn
}

// NewPoolTimeseriesStore creates a new PoolTimeseriesStore.
func NewPoolTimeseriesStore(conn *Conn) *PoolTimeseriesStore {
	return &PoolTimeseriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PoolTimeseriesStore = (*PoolTimeseriesStore)(nil)

// InsertBulk adds multiple points. The pool_timeseries table uses
// ReplacingMergeTree keyed on (pool_address, ledger_index), so
// re-inserting a point is safe and collapses at merge time rather
// than failing the batch.
func (s *PoolTimeseriesStore) InsertBulk(ctx context.Context, points []*domain.PoolTimeseriesPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_timeseries (
			pool_address, ledger_index, timestamp_ms, price, tvl_xrp, k_constant
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.PoolAccount, uint64(p.LedgerIndex), uint64(p.TimestampMs),
			p.Price, p.TVLXRP, p.KConstant,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPoolRange retrieves points for a pool within
// [fromLedger, toLedger] inclusive, ordered by ledger index ASC.
// FINAL collapses rows not yet deduplicated by background merges.
func (s *PoolTimeseriesStore) GetByPoolRange(ctx context.Context, pool string, fromLedger, toLedger int64) ([]*domain.PoolTimeseriesPoint, error) {
	query := `
		SELECT pool_address, ledger_index, timestamp_ms, price, tvl_xrp, k_constant
		FROM pool_timeseries FINAL
		WHERE pool_address = ? AND ledger_index >= ? AND ledger_index <= ?
		ORDER BY ledger_index ASC
	`

	rows, err := s.conn.Query(ctx, query, pool, uint64(fromLedger), uint64(toLedger))
	if err != nil {
		return nil, fmt.Errorf("query by pool/range: %w", err)
	}
	defer rows.Close()

	return scanPoolTimeseries(rows)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanPoolTimeseries scans multiple rows.
func scanPoolTimeseries(rows chRows) ([]*domain.PoolTimeseriesPoint, error) {
	var points []*domain.PoolTimeseriesPoint

	for rows.Next() {
		var p domain.PoolTimeseriesPoint
		var ledgerIndex, timestampMs uint64

		err := rows.Scan(
			&p.PoolAccount, &ledgerIndex, &timestampMs,
			&p.Price, &p.TVLXRP, &p.KConstant,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pool timeseries row: %w", err)
		}

		p.LedgerIndex = int64(ledgerIndex)
		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool timeseries rows: %w", err)
	}

	return points, nil
}
