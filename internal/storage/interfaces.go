package storage

import (
	"context"

	"xrpl-amm-lab/internal/domain"
)

// TransferStore provides access to token_transfers storage.
type TransferStore interface {
	// Insert adds a new transfer leg. Returns ErrDuplicateKey if
	// (tx_hash, account, leg_index) exists.
	Insert(ctx context.Context, e *domain.TransferEvent) error

	// GetByAccountRange retrieves transfers for an account within
	// [fromLedger, toLedger] inclusive, ordered by ledger index ASC.
	GetByAccountRange(ctx context.Context, account string, fromLedger, toLedger int64) ([]*domain.TransferEvent, error)

	// CountByAccount returns the number of stored transfers for an account.
	CountByAccount(ctx context.Context, account string) (int64, error)
}

// SnapshotStore provides access to amm_snapshots storage.
type SnapshotStore interface {
	// Insert adds a new pool snapshot. Returns ErrDuplicateKey if
	// (pool, ledger_index) exists; the first write for a key wins.
	Insert(ctx context.Context, s *domain.PoolSnapshot) error

	// GetByPoolRange retrieves snapshots for a pool within
	// [fromLedger, toLedger] inclusive, ordered by ledger index ASC.
	GetByPoolRange(ctx context.Context, pool string, fromLedger, toLedger int64) ([]*domain.PoolSnapshot, error)

	// GetLatest returns the snapshot with the highest ledger index for a
	// pool. Returns ErrNotFound if the pool has no snapshots.
	GetLatest(ctx context.Context, pool string) (*domain.PoolSnapshot, error)

	// CountByPool returns the number of stored snapshots for a pool.
	CountByPool(ctx context.Context, pool string) (int64, error)
}

// CursorStore provides access to collection_cursors storage, one row per
// (collection type, target).
type CursorStore interface {
	// Get returns the cursor row. Returns ErrNotFound if the target has
	// never been processed.
	Get(ctx context.Context, ct domain.CollectionType, target string) (*domain.Cursor, error)

	// Advance upserts the cursor. The stored ledger index never moves
	// backwards: an advance below the current value updates only status,
	// last-run time and the records counter.
	Advance(ctx context.Context, ct domain.CollectionType, target string, ledger int64, status domain.CursorStatus, recordsDelta int64) error

	// SetStatus updates only the status of an existing cursor.
	SetStatus(ctx context.Context, ct domain.CollectionType, target string, status domain.CursorStatus) error

	// Reset forces the ledger index to an explicit value, the one
	// sanctioned way to move a cursor backwards.
	Reset(ctx context.Context, ct domain.CollectionType, target string, ledger int64) error

	// List returns all cursor rows ordered by (collection type, target).
	List(ctx context.Context) ([]*domain.Cursor, error)
}

// PoolTimeseriesStore holds the analytics projection of accepted
// snapshots, queried by downstream strategies and reports.
type PoolTimeseriesStore interface {
	// InsertBulk adds points; duplicates on (pool, ledger_index) are
	// collapsed by the backend.
	InsertBulk(ctx context.Context, points []*domain.PoolTimeseriesPoint) error

	// GetByPoolRange retrieves points for a pool within
	// [fromLedger, toLedger] inclusive, ordered by ledger index ASC.
	GetByPoolRange(ctx context.Context, pool string, fromLedger, toLedger int64) ([]*domain.PoolTimeseriesPoint, error)
}
