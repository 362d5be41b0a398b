package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PoolSnapshot // keyed by (pool_address, ledger_index)
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.PoolSnapshot),
	}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

func snapshotKey(pool string, ledger int64) string {
	return fmt.Sprintf("%s|%d", pool, ledger)
}

// Insert adds a pool snapshot. Returns ErrDuplicateKey if
// (pool_address, ledger_index) exists.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.PoolSnapshot) error {
	if snap == nil || snap.PoolAccount == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := snapshotKey(snap.PoolAccount, snap.LedgerIndex)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	snapCopy := *snap
	s.data[key] = &snapCopy
	return nil
}

// GetByPoolRange retrieves snapshots for a pool within
// [fromLedger, toLedger] inclusive, ordered by ledger index ASC.
func (s *SnapshotStore) GetByPoolRange(_ context.Context, pool string, fromLedger, toLedger int64) ([]*domain.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PoolSnapshot
	for _, snap := range s.data {
		if snap.PoolAccount == pool && snap.LedgerIndex >= fromLedger && snap.LedgerIndex <= toLedger {
			snapCopy := *snap
			result = append(result, &snapCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LedgerIndex < result[j].LedgerIndex
	})

	return result, nil
}

// GetLatest retrieves the snapshot with the highest ledger index for
// a pool. Returns ErrNotFound if the pool has no snapshots.
func (s *SnapshotStore) GetLatest(_ context.Context, pool string) (*domain.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.PoolSnapshot
	for _, snap := range s.data {
		if snap.PoolAccount != pool {
			continue
		}
		if latest == nil || snap.LedgerIndex > latest.LedgerIndex {
			latest = snap
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	snapCopy := *latest
	return &snapCopy, nil
}

// CountByPool returns the number of stored snapshots for a pool.
func (s *SnapshotStore) CountByPool(_ context.Context, pool string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, snap := range s.data {
		if snap.PoolAccount == pool {
			count++
		}
	}
	return count, nil
}
