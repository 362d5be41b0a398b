package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestComputeMetrics_NativeFirstLeg(t *testing.T) {
	s := &PoolSnapshot{
		Asset1: AssetAmount{Currency: "XRP", Amount: decimal.NewFromInt(1000)},
		Asset2: AssetAmount{Currency: "USD", Issuer: "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B", Amount: decimal.NewFromInt(500)},
	}
	s.ComputeMetrics()

	if !s.KConstant.Equal(decimal.NewFromInt(500000)) {
		t.Errorf("expected K 500000, got %s", s.KConstant)
	}
	if !s.Price.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("expected price 0.5, got %s", s.Price)
	}
	if !s.TVLXRP.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("expected TVL 2000, got %s", s.TVLXRP)
	}
}

func TestComputeMetrics_NativeSecondLeg(t *testing.T) {
	s := &PoolSnapshot{
		Asset1: AssetAmount{Currency: "USD", Issuer: "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B", Amount: decimal.NewFromInt(500)},
		Asset2: AssetAmount{Currency: "XRP", Amount: decimal.NewFromInt(1000)},
	}
	s.ComputeMetrics()

	if !s.Price.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected price 2, got %s", s.Price)
	}
	if !s.TVLXRP.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("expected TVL 2000, got %s", s.TVLXRP)
	}
}

func TestComputeMetrics_NoNativeLeg(t *testing.T) {
	s := &PoolSnapshot{
		Asset1: AssetAmount{Currency: "USD", Issuer: "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B", Amount: decimal.NewFromInt(100)},
		Asset2: AssetAmount{Currency: "EUR", Issuer: "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B", Amount: decimal.NewFromInt(90)},
	}
	s.ComputeMetrics()

	if !s.TVLXRP.IsZero() {
		t.Errorf("expected zero TVL without native leg, got %s", s.TVLXRP)
	}
	if !s.Price.Equal(decimal.NewFromFloat(0.9)) {
		t.Errorf("expected price 0.9, got %s", s.Price)
	}
}

func TestComputeMetrics_EmptyFirstLeg(t *testing.T) {
	s := &PoolSnapshot{
		Asset1: AssetAmount{Currency: "XRP"},
		Asset2: AssetAmount{Currency: "USD", Issuer: "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B", Amount: decimal.NewFromInt(500)},
	}
	s.ComputeMetrics()

	if !s.Price.IsZero() {
		t.Errorf("expected zero price with empty first leg, got %s", s.Price)
	}
	if !s.KConstant.IsZero() {
		t.Errorf("expected zero K with empty first leg, got %s", s.KConstant)
	}
}

func TestTimeseriesPoint(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := &PoolSnapshot{
		PoolAccount: "rP9jPyP5kyvFRb6ZiRghAGw5u8SGAmU4bd",
		LedgerIndex: 7000,
		Timestamp:   ts,
		Asset1:      AssetAmount{Currency: "XRP", Amount: decimal.NewFromInt(1000)},
		Asset2:      AssetAmount{Currency: "USD", Issuer: "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B", Amount: decimal.NewFromInt(500)},
	}
	s.ComputeMetrics()

	p := s.TimeseriesPoint()
	if p.PoolAccount != s.PoolAccount || p.LedgerIndex != 7000 {
		t.Errorf("identity fields not carried over: %+v", p)
	}
	if p.TimestampMs != ts.UnixMilli() {
		t.Errorf("expected timestamp %d, got %d", ts.UnixMilli(), p.TimestampMs)
	}
	if p.Price != 0.5 || p.TVLXRP != 2000 || p.KConstant != 500000 {
		t.Errorf("unexpected metric projection: %+v", p)
	}
}
