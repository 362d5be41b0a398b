// Package strategy produces trade signals from pool price series.
package strategy

import "errors"

// Signal actions.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// Strategy errors
var (
	ErrEmptySeries       = errors.New("price series is empty")
	ErrInvalidLookback   = errors.New("lookback must be positive")
	ErrInvalidThreshold  = errors.New("momentum threshold must be positive")
	ErrInvalidConfidence = errors.New("min confidence must be in [0, 1]")
)

// PricePoint is a single observation of a pool price.
type PricePoint struct {
	TimestampMs int64
	Price       float64
}

// Signal is a strategy decision for a single point in time.
type Signal struct {
	Action     string
	Price      float64
	Confidence float64
	StopLoss   float64
	TakeProfit float64
	Reason     string
}

// Strategy analyzes a price series and emits a signal for its latest point.
type Strategy interface {
	// Analyze returns the signal for the most recent point of the series.
	// The series must be ordered by timestamp ascending.
	Analyze(series []PricePoint) (*Signal, error)

	// ID returns the strategy identifier (includes parameters).
	ID() string
}
