package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a pool snapshot. Returns ErrDuplicateKey if
// (pool_address, ledger_index) exists.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.PoolSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO amm_snapshots (
			pool_address, ledger_index, timestamp,
			asset1_currency, asset1_issuer, asset1_amount,
			asset2_currency, asset2_issuer, asset2_amount,
			lp_token_currency, lp_token_supply, trading_fee_bps,
			k_constant, price, tvl_xrp,
			transaction_hash, transaction_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := s.pool.Exec(ctx, query,
		snap.PoolAccount,
		snap.LedgerIndex,
		snap.Timestamp,
		snap.Asset1.Currency,
		nullIfEmpty(snap.Asset1.Issuer),
		snap.Asset1.Amount,
		snap.Asset2.Currency,
		nullIfEmpty(snap.Asset2.Issuer),
		snap.Asset2.Amount,
		snap.LPTokenCurrency,
		snap.LPTokenSupply,
		snap.TradingFeeBps,
		snap.KConstant,
		snap.Price,
		snap.TVLXRP,
		nullIfEmpty(snap.TxHash),
		snap.TransactionType,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetByPoolRange retrieves snapshots for a pool within
// [fromLedger, toLedger] inclusive, ordered by ledger index ASC.
func (s *SnapshotStore) GetByPoolRange(ctx context.Context, pool string, fromLedger, toLedger int64) ([]*domain.PoolSnapshot, error) {
	query := snapshotSelectColumns + `
		FROM amm_snapshots
		WHERE pool_address = $1 AND ledger_index >= $2 AND ledger_index <= $3
		ORDER BY ledger_index ASC
	`

	rows, err := s.pool.Query(ctx, query, pool, fromLedger, toLedger)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by pool/range: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.PoolSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snaps, nil
}

// GetLatest retrieves the snapshot with the highest ledger index for
// a pool. Returns ErrNotFound if the pool has no snapshots.
func (s *SnapshotStore) GetLatest(ctx context.Context, pool string) (*domain.PoolSnapshot, error) {
	query := snapshotSelectColumns + `
		FROM amm_snapshots
		WHERE pool_address = $1
		ORDER BY ledger_index DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, pool)
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return snap, nil
}

// CountByPool returns the number of stored snapshots for a pool.
func (s *SnapshotStore) CountByPool(ctx context.Context, pool string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM amm_snapshots WHERE pool_address = $1`, pool,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return count, nil
}

const snapshotSelectColumns = `
		SELECT pool_address, ledger_index, timestamp,
		       asset1_currency, COALESCE(asset1_issuer, ''), asset1_amount,
		       asset2_currency, COALESCE(asset2_issuer, ''), asset2_amount,
		       lp_token_currency, lp_token_supply, trading_fee_bps,
		       k_constant, price, tvl_xrp,
		       COALESCE(transaction_hash, ''), transaction_type
`

// scanSnapshot scans a single row into a PoolSnapshot.
func scanSnapshot(row pgx.Row) (*domain.PoolSnapshot, error) {
	var snap domain.PoolSnapshot

	err := row.Scan(
		&snap.PoolAccount,
		&snap.LedgerIndex,
		&snap.Timestamp,
		&snap.Asset1.Currency,
		&snap.Asset1.Issuer,
		&snap.Asset1.Amount,
		&snap.Asset2.Currency,
		&snap.Asset2.Issuer,
		&snap.Asset2.Amount,
		&snap.LPTokenCurrency,
		&snap.LPTokenSupply,
		&snap.TradingFeeBps,
		&snap.KConstant,
		&snap.Price,
		&snap.TVLXRP,
		&snap.TxHash,
		&snap.TransactionType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan snapshot row: %w", err)
	}

	return &snap, nil
}
