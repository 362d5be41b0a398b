package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// NativeCurrency is the ledger's native asset code.
const NativeCurrency = "XRP"

// AssetAmount is one leg of an AMM pool.
type AssetAmount struct {
	Currency string
	Issuer   string // empty for XRP
	Amount   decimal.Decimal
}

// IsNative reports whether the asset is the ledger's native currency.
func (a AssetAmount) IsNative() bool {
	return a.Currency == NativeCurrency
}

// PoolSnapshot is the state of an AMM pool at one ledger index.
// At most one snapshot per (pool, ledger index) exists; the storage
// layer enforces the uniqueness and later writes for the same key are
// dropped. Derived, never mutated after creation.
type PoolSnapshot struct {
	PoolAccount string
	LedgerIndex int64
	Timestamp   time.Time

	Asset1 AssetAmount
	Asset2 AssetAmount

	LPTokenCurrency string
	LPTokenSupply   decimal.Decimal
	TradingFeeBps   int32

	// Derived metrics, filled by ComputeMetrics.
	KConstant decimal.Decimal
	Price     decimal.Decimal // asset2 per asset1
	TVLXRP    decimal.Decimal

	// Provenance. Empty for sampler-originated snapshots.
	TxHash          string
	TransactionType string
}

// ComputeMetrics fills KConstant, Price and TVLXRP from the asset legs.
// Price is zero when asset1 is empty. TVL is approximated as twice the
// native leg and stays zero for pools without a native leg; pricing
// those would need an external oracle.
func (s *PoolSnapshot) ComputeMetrics() {
	s.KConstant = s.Asset1.Amount.Mul(s.Asset2.Amount)

	if s.Asset1.Amount.IsPositive() {
		s.Price = s.Asset2.Amount.Div(s.Asset1.Amount)
	} else {
		s.Price = decimal.Zero
	}

	switch {
	case s.Asset1.IsNative():
		s.TVLXRP = s.Asset1.Amount.Mul(decimal.NewFromInt(2))
	case s.Asset2.IsNative():
		s.TVLXRP = s.Asset2.Amount.Mul(decimal.NewFromInt(2))
	default:
		s.TVLXRP = decimal.Zero
	}
}

// PoolTimeseriesPoint is the analytics-side projection of a snapshot,
// kept in ClickHouse for downstream strategy and reporting queries.
type PoolTimeseriesPoint struct {
	PoolAccount string
	LedgerIndex int64
	TimestampMs int64
	Price       float64
	TVLXRP      float64
	KConstant   float64
}

// TimeseriesPoint projects the snapshot into its analytics form.
func (s *PoolSnapshot) TimeseriesPoint() *PoolTimeseriesPoint {
	price, _ := s.Price.Float64()
	tvl, _ := s.TVLXRP.Float64()
	k, _ := s.KConstant.Float64()
	return &PoolTimeseriesPoint{
		PoolAccount: s.PoolAccount,
		LedgerIndex: s.LedgerIndex,
		TimestampMs: s.Timestamp.UnixMilli(),
		Price:       price,
		TVLXRP:      tvl,
		KConstant:   k,
	}
}
