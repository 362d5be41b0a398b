package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/storage"
)

const testPool = "rP9jPyP5kyvFRb6ZiRghAGw5u8SGAmU4bd"

func newSnapshot(ledger int64) *domain.PoolSnapshot {
	snap := &domain.PoolSnapshot{
		PoolAccount: testPool,
		LedgerIndex: ledger,
		Timestamp:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Asset1:      domain.AssetAmount{Currency: "XRP", Amount: decimal.NewFromInt(1000)},
		Asset2: domain.AssetAmount{
			Currency: "USD",
			Issuer:   "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B",
			Amount:   decimal.NewFromInt(500),
		},
		TradingFeeBps: 500,
	}
	snap.ComputeMetrics()
	return snap
}

func TestSnapshotStore_InsertAndGetLatest(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	_, err := store.GetLatest(ctx, testPool)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Insert(ctx, newSnapshot(100)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, newSnapshot(300)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, newSnapshot(200)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	latest, err := store.GetLatest(ctx, testPool)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.LedgerIndex != 300 {
		t.Errorf("expected latest ledger 300, got %d", latest.LedgerIndex)
	}

	count, err := store.CountByPool(ctx, testPool)
	if err != nil {
		t.Fatalf("CountByPool failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
}

func TestSnapshotStore_DuplicateKey(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newSnapshot(100)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := store.Insert(ctx, newSnapshot(100))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestSnapshotStore_GetByPoolRange(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	for _, ledger := range []int64{100, 150, 200, 250} {
		if err := store.Insert(ctx, newSnapshot(ledger)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	snapshots, err := store.GetByPoolRange(ctx, testPool, 150, 200)
	if err != nil {
		t.Fatalf("GetByPoolRange failed: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	if snapshots[0].LedgerIndex != 150 || snapshots[1].LedgerIndex != 200 {
		t.Errorf("unexpected range results: %d, %d", snapshots[0].LedgerIndex, snapshots[1].LedgerIndex)
	}
}
