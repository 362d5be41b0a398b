package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/storage"
)

// TransferStore implements storage.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *Pool
}

// NewTransferStore creates a new TransferStore.
func NewTransferStore(pool *Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

// Insert adds a new transfer leg. Returns ErrDuplicateKey if
// (tx_hash, account, leg_index) exists.
func (s *TransferStore) Insert(ctx context.Context, e *domain.TransferEvent) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_transfers (
			transaction_hash, leg_index, ledger_index, timestamp,
			wallet_address, currency, issuer, amount,
			direction, counterparty, transaction_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		e.TxHash,
		e.LegIndex,
		e.LedgerIndex,
		e.Timestamp,
		e.Account,
		e.Currency,
		nullIfEmpty(e.Issuer),
		e.Amount,
		string(e.Direction),
		nullIfEmpty(e.Counterparty),
		e.TransactionType,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetByAccountRange retrieves transfers for an account within
// [fromLedger, toLedger] inclusive, ordered by ledger index ASC.
func (s *TransferStore) GetByAccountRange(ctx context.Context, account string, fromLedger, toLedger int64) ([]*domain.TransferEvent, error) {
	query := `
		SELECT transaction_hash, leg_index, ledger_index, timestamp,
		       wallet_address, currency, COALESCE(issuer, ''), amount,
		       direction, COALESCE(counterparty, ''), transaction_type
		FROM token_transfers
		WHERE wallet_address = $1 AND ledger_index >= $2 AND ledger_index <= $3
		ORDER BY ledger_index ASC, transaction_hash ASC, leg_index ASC
	`

	rows, err := s.pool.Query(ctx, query, account, fromLedger, toLedger)
	if err != nil {
		return nil, fmt.Errorf("get transfers by account/range: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// CountByAccount returns the number of stored transfers for an account.
func (s *TransferStore) CountByAccount(ctx context.Context, account string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM token_transfers WHERE wallet_address = $1`, account,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transfers: %w", err)
	}
	return count, nil
}

// scanTransfers scans multiple rows into a slice of TransferEvent.
func scanTransfers(rows pgx.Rows) ([]*domain.TransferEvent, error) {
	var events []*domain.TransferEvent

	for rows.Next() {
		var e domain.TransferEvent
		var direction string

		err := rows.Scan(
			&e.TxHash,
			&e.LegIndex,
			&e.LedgerIndex,
			&e.Timestamp,
			&e.Account,
			&e.Currency,
			&e.Issuer,
			&e.Amount,
			&direction,
			&e.Counterparty,
			&e.TransactionType,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		e.Direction = domain.TransferDirection(direction)

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer rows: %w", err)
	}

	return events, nil
}

// nullIfEmpty maps the empty string to SQL NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
