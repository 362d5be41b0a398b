package strategy

import (
	"math"
	"testing"
)

func seriesFromPrices(prices []float64) []PricePoint {
	series := make([]PricePoint, len(prices))
	for i, p := range prices {
		series[i] = PricePoint{TimestampMs: int64(i) * 1000, Price: p}
	}
	return series
}

// risingSeries returns n points climbing steadily from start by step.
func risingSeries(n int, start, step float64) []PricePoint {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + float64(i)*step
	}
	return seriesFromPrices(prices)
}

func TestNewMomentumStrategy_Defaults(t *testing.T) {
	s, err := NewMomentumStrategy(MomentumOptions{})
	if err != nil {
		t.Fatalf("NewMomentumStrategy failed: %v", err)
	}

	if s.Lookback != 20 {
		t.Errorf("expected default lookback 20, got %d", s.Lookback)
	}
	if s.MomentumThreshold != 0.02 {
		t.Errorf("expected default threshold 0.02, got %v", s.MomentumThreshold)
	}
	if s.StopLossPct != 2.0 || s.TakeProfitPct != 5.0 {
		t.Errorf("unexpected stop/take defaults: %v / %v", s.StopLossPct, s.TakeProfitPct)
	}
	if s.MinConfidence != 0.6 {
		t.Errorf("expected default min confidence 0.6, got %v", s.MinConfidence)
	}
}

func TestNewMomentumStrategy_InvalidLookback(t *testing.T) {
	_, err := NewMomentumStrategy(MomentumOptions{Lookback: 1})
	if err != ErrInvalidLookback {
		t.Fatalf("expected ErrInvalidLookback, got %v", err)
	}
}

func TestMomentum_EmptySeries(t *testing.T) {
	s, _ := NewMomentumStrategy(MomentumOptions{})

	_, err := s.Analyze(nil)
	if err != ErrEmptySeries {
		t.Fatalf("expected ErrEmptySeries, got %v", err)
	}
}

func TestMomentum_InsufficientHistory_Holds(t *testing.T) {
	s, _ := NewMomentumStrategy(MomentumOptions{Lookback: 20})

	sig, err := s.Analyze(risingSeries(5, 1.0, 0.1))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if sig.Action != ActionHold {
		t.Errorf("expected hold on short history, got %s", sig.Action)
	}
}

func TestMomentum_SteadyRise_Buys(t *testing.T) {
	s, _ := NewMomentumStrategy(MomentumOptions{Lookback: 10, MinConfidence: 0.3})

	// 10 points rising 1% each step: momentum ~9%, every move up.
	prices := make([]float64, 10)
	prices[0] = 100
	for i := 1; i < len(prices); i++ {
		prices[i] = prices[i-1] * 1.01
	}

	sig, err := s.Analyze(seriesFromPrices(prices))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if sig.Action != ActionBuy {
		t.Fatalf("expected buy, got %s (%s)", sig.Action, sig.Reason)
	}

	last := prices[len(prices)-1]
	wantStop := last * 0.98
	wantTake := last * 1.05
	if math.Abs(sig.StopLoss-wantStop) > 1e-9 {
		t.Errorf("expected stop loss %v, got %v", wantStop, sig.StopLoss)
	}
	if math.Abs(sig.TakeProfit-wantTake) > 1e-9 {
		t.Errorf("expected take profit %v, got %v", wantTake, sig.TakeProfit)
	}
}

func TestMomentum_SteadyFall_Sells(t *testing.T) {
	s, _ := NewMomentumStrategy(MomentumOptions{Lookback: 10, MinConfidence: 0.3})

	prices := make([]float64, 10)
	prices[0] = 100
	for i := 1; i < len(prices); i++ {
		prices[i] = prices[i-1] * 0.99
	}

	sig, err := s.Analyze(seriesFromPrices(prices))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if sig.Action != ActionSell {
		t.Fatalf("expected sell, got %s (%s)", sig.Action, sig.Reason)
	}
	if sig.StopLoss != 0 || sig.TakeProfit != 0 {
		t.Errorf("sell signal should not carry stop/take levels")
	}
}

func TestMomentum_FlatSeries_Holds(t *testing.T) {
	s, _ := NewMomentumStrategy(MomentumOptions{Lookback: 10})

	sig, err := s.Analyze(risingSeries(10, 100, 0))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if sig.Action != ActionHold {
		t.Errorf("expected hold on flat series, got %s", sig.Action)
	}
}

func TestMomentum_ChoppyRise_NoTrend_Holds(t *testing.T) {
	s, _ := NewMomentumStrategy(MomentumOptions{Lookback: 9, MinConfidence: 0.1})

	// Net change above threshold but moves alternate, so trend stays weak.
	prices := []float64{100, 104, 101, 105, 102, 106, 103, 107, 104}

	sig, err := s.Analyze(seriesFromPrices(prices))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if sig.Action != ActionHold {
		t.Errorf("expected hold without trend confirmation, got %s", sig.Action)
	}
}

func TestMomentum_LowConfidence_DegradesToHold(t *testing.T) {
	s, _ := NewMomentumStrategy(MomentumOptions{
		Lookback:          10,
		MomentumThreshold: 0.005,
		MinConfidence:     0.99,
	})

	// Slow steady rise: momentum clears the low threshold but the
	// confidence blend stays below 0.99.
	prices := make([]float64, 10)
	prices[0] = 100
	for i := 1; i < len(prices); i++ {
		prices[i] = prices[i-1] * 1.002
	}

	sig, err := s.Analyze(seriesFromPrices(prices))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if sig.Action != ActionHold {
		t.Errorf("expected low-confidence signal to hold, got %s", sig.Action)
	}
}

func TestTrendStrength(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"all up", []float64{1, 2, 3, 4, 5}, 1.0},
		{"all down", []float64{5, 4, 3, 2, 1}, -1.0},
		{"alternating", []float64{1, 2, 1, 2, 1}, 0.0},
		{"mostly up", []float64{1, 2, 3, 2, 4}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trendStrength(seriesFromPrices(tt.prices))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("trendStrength = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMomentumID_IncludesParameters(t *testing.T) {
	s, _ := NewMomentumStrategy(MomentumOptions{Lookback: 15, MomentumThreshold: 0.03})

	want := "MOMENTUM_lb15_th0.030_sl2.0_tp5.0"
	if s.ID() != want {
		t.Errorf("ID = %q, want %q", s.ID(), want)
	}
}
