package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/storage"
)

// TransferStore is an in-memory implementation of storage.TransferStore.
type TransferStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransferEvent // keyed by (tx_hash, account, leg_index)
}

// NewTransferStore creates a new in-memory transfer store.
func NewTransferStore() *TransferStore {
	return &TransferStore{
		data: make(map[string]*domain.TransferEvent),
	}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

func transferKey(txHash, account string, legIndex int) string {
	return fmt.Sprintf("%s|%s|%d", txHash, account, legIndex)
}

// Insert adds a new transfer leg. Returns ErrDuplicateKey if
// (tx_hash, account, leg_index) exists.
func (s *TransferStore) Insert(_ context.Context, e *domain.TransferEvent) error {
	if e == nil || e.TxHash == "" || e.Account == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := transferKey(e.TxHash, e.Account, e.LegIndex)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	eventCopy := *e
	s.data[key] = &eventCopy
	return nil
}

// GetByAccountRange retrieves transfers for an account within
// [fromLedger, toLedger] inclusive, ordered by ledger index ASC.
func (s *TransferStore) GetByAccountRange(_ context.Context, account string, fromLedger, toLedger int64) ([]*domain.TransferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferEvent
	for _, e := range s.data {
		if e.Account == account && e.LedgerIndex >= fromLedger && e.LedgerIndex <= toLedger {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].LedgerIndex != result[j].LedgerIndex {
			return result[i].LedgerIndex < result[j].LedgerIndex
		}
		if result[i].TxHash != result[j].TxHash {
			return result[i].TxHash < result[j].TxHash
		}
		return result[i].LegIndex < result[j].LegIndex
	})

	return result, nil
}

// CountByAccount returns the number of stored transfers for an account.
func (s *TransferStore) CountByAccount(_ context.Context, account string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, e := range s.data {
		if e.Account == account {
			count++
		}
	}
	return count, nil
}
