package ingest

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"xrpl-amm-lab/internal/storage/memory"
	"xrpl-amm-lab/internal/xrpl"
)

func newTestSampler(client *mockClient, snapshots *memory.SnapshotStore) *Sampler {
	return NewSampler(SamplerOptions{
		Dial: client.dialFunc(),
		Sink: &Sink{
			Transfers: memory.NewTransferStore(),
			Snapshots: snapshots,
			Logger:    zerolog.Nop(),
		},
		Pools:           []string{testPool},
		SignificancePct: 1.0,
		Logger:          zerolog.Nop(),
	})
}

func TestSampler_FirstObservation_AlwaysSignificant(t *testing.T) {
	s := newTestSampler(newMockClient(1000), memory.NewSnapshotStore())

	if !s.IsSignificant(testPool, decimal.NewFromInt(1000)) {
		t.Error("Expected first observation to be significant")
	}
}

func TestSampler_SmallChange_Filtered(t *testing.T) {
	s := newTestSampler(newMockClient(1000), memory.NewSnapshotStore())

	s.IsSignificant(testPool, decimal.NewFromInt(1000))

	// 0.5% move: below the 1% threshold.
	if s.IsSignificant(testPool, decimal.NewFromInt(1005)) {
		t.Error("Expected 0.5%% change to be filtered")
	}
	// The reference must not creep: still compared against 1000.
	if s.IsSignificant(testPool, decimal.NewFromInt(1009)) {
		t.Error("Expected 0.9%% change from original reference to be filtered")
	}
}

func TestSampler_SignificantChange_Stored(t *testing.T) {
	s := newTestSampler(newMockClient(1000), memory.NewSnapshotStore())

	s.IsSignificant(testPool, decimal.NewFromInt(1000))

	if !s.IsSignificant(testPool, decimal.NewFromInt(1010)) {
		t.Error("Expected exactly 1%% change to pass")
	}
	// Reference updated to 1010: another 1% is now measured from there.
	if s.IsSignificant(testPool, decimal.NewFromInt(1015)) {
		t.Error("Expected 0.5%% from new reference to be filtered")
	}
}

func TestSampler_DecreasingReserve_AlsoSignificant(t *testing.T) {
	s := newTestSampler(newMockClient(1000), memory.NewSnapshotStore())

	s.IsSignificant(testPool, decimal.NewFromInt(1000))

	if !s.IsSignificant(testPool, decimal.NewFromInt(980)) {
		t.Error("Expected 2%% drop to be significant")
	}
}

func TestSampler_Sample_StoresSnapshot(t *testing.T) {
	client := newMockClient(5000)
	client.ammState = &xrpl.AMMState{
		Account:     testPool,
		Amount:      xrpl.Amount{Currency: "XRP", Value: decimal.NewFromInt(2000)},
		Amount2:     xrpl.Amount{Currency: "USD", Issuer: testOther, Value: decimal.NewFromInt(1000)},
		LPToken:     xrpl.Amount{Currency: "03AB", Issuer: testPool, Value: decimal.NewFromInt(1400)},
		TradingFee:  300,
		LedgerIndex: 5000,
	}
	snapshots := memory.NewSnapshotStore()
	s := newTestSampler(client, snapshots)
	ctx := context.Background()

	if err := s.Sample(ctx); err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	snap, err := snapshots.GetLatest(ctx, testPool)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if snap.LedgerIndex != 5000 {
		t.Errorf("Expected sampled ledger 5000, got %d", snap.LedgerIndex)
	}
	if snap.TxHash != "" {
		t.Errorf("Expected sampled snapshot without provenance, got %s", snap.TxHash)
	}

	// A second pass with unchanged reserves stores nothing new.
	if err := s.Sample(ctx); err != nil {
		t.Fatalf("Second sample failed: %v", err)
	}
	count, err := snapshots.CountByPool(ctx, testPool)
	if err != nil {
		t.Fatalf("CountByPool failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 snapshot after unchanged resample, got %d", count)
	}
}
