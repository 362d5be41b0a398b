package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/storage"
)

// CursorStore is an in-memory implementation of storage.CursorStore.
type CursorStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Cursor // keyed by (collection_type, target)
}

// NewCursorStore creates a new in-memory cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{
		data: make(map[string]*domain.Cursor),
	}
}

// Compile-time interface check.
var _ storage.CursorStore = (*CursorStore)(nil)

func cursorKey(collectionType domain.CollectionType, target string) string {
	return fmt.Sprintf("%s|%s", collectionType, target)
}

// Get retrieves the cursor for (collectionType, target). Returns
// ErrNotFound if no cursor exists.
func (s *CursorStore) Get(_ context.Context, collectionType domain.CollectionType, target string) (*domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[cursorKey(collectionType, target)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cursorCopy := *c
	return &cursorCopy, nil
}

// Advance upserts the cursor, moving last_ledger forward only. An
// upsert with a lower ledger than the stored one keeps the stored
// value.
func (s *CursorStore) Advance(_ context.Context, collectionType domain.CollectionType, target string, ledger int64, status domain.CursorStatus, recordsDelta int64) error {
	if target == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := cursorKey(collectionType, target)
	c, exists := s.data[key]
	if !exists {
		s.data[key] = &domain.Cursor{
			CollectionType:   collectionType,
			Target:           target,
			LastLedger:       ledger,
			LastRun:          time.Now().UTC(),
			Status:           status,
			RecordsCollected: recordsDelta,
		}
		return nil
	}

	if ledger > c.LastLedger {
		c.LastLedger = ledger
	}
	c.LastRun = time.Now().UTC()
	c.Status = status
	c.RecordsCollected += recordsDelta
	return nil
}

// SetStatus updates only the status of an existing cursor. Returns
// ErrNotFound if no cursor exists.
func (s *CursorStore) SetStatus(_ context.Context, collectionType domain.CollectionType, target string, status domain.CursorStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.data[cursorKey(collectionType, target)]
	if !exists {
		return storage.ErrNotFound
	}

	c.Status = status
	c.LastRun = time.Now().UTC()
	return nil
}

// Reset forces the cursor to a specific ledger regardless of the
// stored value.
func (s *CursorStore) Reset(_ context.Context, collectionType domain.CollectionType, target string, ledger int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cursorKey(collectionType, target)
	c, exists := s.data[key]
	if !exists {
		s.data[key] = &domain.Cursor{
			CollectionType: collectionType,
			Target:         target,
			LastLedger:     ledger,
			LastRun:        time.Now().UTC(),
			Status:         domain.StatusPending,
		}
		return nil
	}

	c.LastLedger = ledger
	c.LastRun = time.Now().UTC()
	c.Status = domain.StatusPending
	return nil
}

// List retrieves all cursors, ordered by (collection type, target).
func (s *CursorStore) List(_ context.Context) ([]*domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Cursor
	for _, c := range s.data {
		cursorCopy := *c
		result = append(result, &cursorCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CollectionType != result[j].CollectionType {
			return result[i].CollectionType < result[j].CollectionType
		}
		return result[i].Target < result[j].Target
	})

	return result, nil
}
