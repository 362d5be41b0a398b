package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/storage"
)

// CursorStore implements storage.CursorStore using PostgreSQL.
type CursorStore struct {
	pool *Pool
}

// NewCursorStore creates a new CursorStore.
func NewCursorStore(pool *Pool) *CursorStore {
	return &CursorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CursorStore = (*CursorStore)(nil)

// Get retrieves the cursor for (collectionType, target). Returns
// ErrNotFound if no cursor row exists.
func (s *CursorStore) Get(ctx context.Context, collectionType domain.CollectionType, target string) (*domain.Cursor, error) {
	query := `
		SELECT collection_type, target, last_ledger, last_run, status, records_collected
		FROM collection_cursors
		WHERE collection_type = $1 AND target = $2
	`

	row := s.pool.QueryRow(ctx, query, string(collectionType), target)
	cursor, err := scanCursor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return cursor, nil
}

// Advance upserts the cursor, moving last_ledger forward only. An
// upsert with a lower ledger than the stored one keeps the stored
// value, so a restarted pass can never move a cursor backward.
func (s *CursorStore) Advance(ctx context.Context, collectionType domain.CollectionType, target string, ledger int64, status domain.CursorStatus, recordsDelta int64) error {
	if target == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO collection_cursors (
			collection_type, target, last_ledger, last_run, status, records_collected
		) VALUES ($1, $2, $3, NOW(), $4, $5)
		ON CONFLICT (collection_type, target) DO UPDATE SET
			last_ledger       = GREATEST(collection_cursors.last_ledger, EXCLUDED.last_ledger),
			last_run          = NOW(),
			status            = EXCLUDED.status,
			records_collected = collection_cursors.records_collected + EXCLUDED.records_collected
	`

	_, err := s.pool.Exec(ctx, query,
		string(collectionType), target, ledger, string(status), recordsDelta,
	)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}

// SetStatus updates only the status of an existing cursor. Returns
// ErrNotFound if no cursor row exists.
func (s *CursorStore) SetStatus(ctx context.Context, collectionType domain.CollectionType, target string, status domain.CursorStatus) error {
	query := `
		UPDATE collection_cursors
		SET status = $3, last_run = NOW()
		WHERE collection_type = $1 AND target = $2
	`

	tag, err := s.pool.Exec(ctx, query, string(collectionType), target, string(status))
	if err != nil {
		return fmt.Errorf("set cursor status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Reset forces the cursor to a specific ledger regardless of the
// stored value. This is the only path that can move a cursor backward
// and exists for operator-driven re-ingestion.
func (s *CursorStore) Reset(ctx context.Context, collectionType domain.CollectionType, target string, ledger int64) error {
	query := `
		INSERT INTO collection_cursors (
			collection_type, target, last_ledger, last_run, status, records_collected
		) VALUES ($1, $2, $3, NOW(), $4, 0)
		ON CONFLICT (collection_type, target) DO UPDATE SET
			last_ledger = EXCLUDED.last_ledger,
			last_run    = NOW(),
			status      = EXCLUDED.status
	`

	_, err := s.pool.Exec(ctx, query,
		string(collectionType), target, ledger, string(domain.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}
	return nil
}

// List retrieves all cursors, ordered by (collection type, target).
func (s *CursorStore) List(ctx context.Context) ([]*domain.Cursor, error) {
	query := `
		SELECT collection_type, target, last_ledger, last_run, status, records_collected
		FROM collection_cursors
		ORDER BY collection_type ASC, target ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer rows.Close()

	var cursors []*domain.Cursor
	for rows.Next() {
		cursor, err := scanCursor(rows)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, cursor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cursor rows: %w", err)
	}

	return cursors, nil
}

// scanCursor scans a single row into a Cursor.
func scanCursor(row pgx.Row) (*domain.Cursor, error) {
	var c domain.Cursor
	var collectionType, status string

	err := row.Scan(
		&collectionType,
		&c.Target,
		&c.LastLedger,
		&c.LastRun,
		&status,
		&c.RecordsCollected,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan cursor row: %w", err)
	}
	c.CollectionType = domain.CollectionType(collectionType)
	c.Status = domain.CursorStatus(status)

	return &c, nil
}
