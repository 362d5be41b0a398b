package strategy

import "fmt"

// MomentumStrategy buys when price momentum over a lookback window exceeds a
// threshold with a confirming trend, and sells on the mirrored condition.
type MomentumStrategy struct {
	Lookback          int     // number of recent points considered
	MomentumThreshold float64 // fractional price change required (e.g. 0.02 = 2%)
	StopLossPct       float64 // stop loss percentage below entry (e.g. 2.0 = 2%)
	TakeProfitPct     float64 // take profit percentage above entry (e.g. 5.0 = 5%)
	MinConfidence     float64 // signals below this confidence degrade to hold
}

// MomentumOptions configures NewMomentumStrategy.
// Zero values fall back to defaults.
type MomentumOptions struct {
	Lookback          int
	MomentumThreshold float64
	StopLossPct       float64
	TakeProfitPct     float64
	MinConfidence     float64
}

// NewMomentumStrategy creates a MomentumStrategy with defaults applied.
func NewMomentumStrategy(opts MomentumOptions) (*MomentumStrategy, error) {
	if opts.Lookback == 0 {
		opts.Lookback = 20
	}
	if opts.MomentumThreshold == 0 {
		opts.MomentumThreshold = 0.02
	}
	if opts.StopLossPct == 0 {
		opts.StopLossPct = 2.0
	}
	if opts.TakeProfitPct == 0 {
		opts.TakeProfitPct = 5.0
	}
	if opts.MinConfidence == 0 {
		opts.MinConfidence = 0.6
	}

	if opts.Lookback < 2 {
		return nil, ErrInvalidLookback
	}
	if opts.MomentumThreshold < 0 {
		return nil, ErrInvalidThreshold
	}
	if opts.MinConfidence < 0 || opts.MinConfidence > 1 {
		return nil, ErrInvalidConfidence
	}

	return &MomentumStrategy{
		Lookback:          opts.Lookback,
		MomentumThreshold: opts.MomentumThreshold,
		StopLossPct:       opts.StopLossPct,
		TakeProfitPct:     opts.TakeProfitPct,
		MinConfidence:     opts.MinConfidence,
	}, nil
}

// ID returns the strategy identifier including parameters.
func (s *MomentumStrategy) ID() string {
	return fmt.Sprintf("MOMENTUM_lb%d_th%.3f_sl%.1f_tp%.1f",
		s.Lookback, s.MomentumThreshold, s.StopLossPct, s.TakeProfitPct)
}

// Analyze emits a signal for the latest point of the series.
//
// momentum is the fractional price change across the lookback window.
// trend strength is (up moves - down moves) / total moves, in [-1, 1].
// A buy requires momentum above the threshold and trend above 0.3;
// a sell mirrors both conditions. Anything else holds.
func (s *MomentumStrategy) Analyze(series []PricePoint) (*Signal, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}

	last := series[len(series)-1]
	if len(series) < s.Lookback {
		return &Signal{
			Action: ActionHold,
			Price:  last.Price,
			Reason: fmt.Sprintf("insufficient history: %d of %d points", len(series), s.Lookback),
		}, nil
	}

	window := series[len(series)-s.Lookback:]
	first := window[0].Price
	if first <= 0 {
		return &Signal{Action: ActionHold, Price: last.Price, Reason: "non-positive window start price"}, nil
	}

	momentum := (last.Price - first) / first
	trend := trendStrength(window)
	confidence := signalConfidence(momentum, trend)

	var action, reason string
	switch {
	case momentum > s.MomentumThreshold && trend > 0.3:
		action = ActionBuy
		reason = fmt.Sprintf("momentum %.4f above threshold with uptrend %.2f", momentum, trend)
	case momentum < -s.MomentumThreshold && trend < -0.3:
		action = ActionSell
		reason = fmt.Sprintf("momentum %.4f below threshold with downtrend %.2f", momentum, trend)
	default:
		action = ActionHold
		reason = fmt.Sprintf("momentum %.4f within threshold", momentum)
	}

	if action != ActionHold && confidence < s.MinConfidence {
		action = ActionHold
		reason = fmt.Sprintf("confidence %.2f below minimum %.2f", confidence, s.MinConfidence)
	}

	sig := &Signal{
		Action:     action,
		Price:      last.Price,
		Confidence: confidence,
		Reason:     reason,
	}
	if action == ActionBuy {
		sig.StopLoss = last.Price * (1 - s.StopLossPct/100)
		sig.TakeProfit = last.Price * (1 + s.TakeProfitPct/100)
	}

	return sig, nil
}

// trendStrength counts the balance of up vs down moves inside the window.
func trendStrength(window []PricePoint) float64 {
	var up, down int
	for i := 1; i < len(window); i++ {
		switch {
		case window[i].Price > window[i-1].Price:
			up++
		case window[i].Price < window[i-1].Price:
			down++
		}
	}
	total := len(window) - 1
	if total == 0 {
		return 0
	}
	return float64(up-down) / float64(total)
}

// signalConfidence blends momentum magnitude and trend agreement.
// Momentum saturates at 10% so one spike cannot dominate the score.
func signalConfidence(momentum, trend float64) float64 {
	m := momentum / 0.1
	if m < 0 {
		m = -m
	}
	if m > 1 {
		m = 1
	}
	t := trend
	if t < 0 {
		t = -t
	}
	c := m*0.5 + t*0.5
	if c > 1 {
		c = 1
	}
	return c
}
