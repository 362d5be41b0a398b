package xrpl

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DropsPerXRP converts the native integer drop representation to XRP.
const DropsPerXRP = 1_000_000

// rippleEpoch is 2000-01-01T00:00:00Z, the zero point of ledger timestamps.
const rippleEpoch = 946684800

// Amount is a ledger amount in either of its two wire forms: a plain
// string of drops for XRP, or an object with currency, issuer and value
// for issued tokens. After decoding, Value is always in whole units
// (drops already divided down for XRP).
type Amount struct {
	Currency string
	Issuer   string
	Value    decimal.Decimal
}

// IsNative reports whether the amount is denominated in XRP.
func (a Amount) IsNative() bool {
	return a.Currency == "XRP"
}

// IsZero reports whether the amount has no value set.
func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

// UnmarshalJSON decodes both wire forms of a ledger amount.
func (a *Amount) UnmarshalJSON(data []byte) error {
	// Native form: "123456789" (drops).
	var drops string
	if err := json.Unmarshal(data, &drops); err == nil {
		value, err := decimal.NewFromString(drops)
		if err != nil {
			return fmt.Errorf("parse drops %q: %w", drops, err)
		}
		a.Currency = "XRP"
		a.Issuer = ""
		a.Value = value.Div(decimal.NewFromInt(DropsPerXRP))
		return nil
	}

	// Issued form: {"currency": ..., "issuer": ..., "value": ...}.
	var issued struct {
		Currency string `json:"currency"`
		Issuer   string `json:"issuer"`
		Value    string `json:"value"`
	}
	if err := json.Unmarshal(data, &issued); err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}
	if issued.Currency == "" {
		return fmt.Errorf("parse amount: missing currency")
	}

	value := decimal.Zero
	if issued.Value != "" {
		parsed, err := decimal.NewFromString(issued.Value)
		if err != nil {
			return fmt.Errorf("parse amount value %q: %w", issued.Value, err)
		}
		value = parsed
	}

	a.Currency = issued.Currency
	a.Issuer = issued.Issuer
	a.Value = value
	return nil
}

// DropsToXRP parses a drops string (the AccountRoot Balance wire form)
// into whole XRP.
func DropsToXRP(drops string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(drops)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse drops %q: %w", drops, err)
	}
	return value.Div(decimal.NewFromInt(DropsPerXRP)), nil
}

// RippleTimeToTime converts a ledger timestamp (seconds since the ripple
// epoch) to UTC wall time. A zero ledger timestamp maps to the epoch
// itself; callers sampling live state pass their own clock instead.
func RippleTimeToTime(rt int64) time.Time {
	return time.Unix(rt+rippleEpoch, 0).UTC()
}
