package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferDirection is the sign of a balance change from the monitored
// account's point of view.
type TransferDirection string

const (
	DirectionIn  TransferDirection = "in"
	DirectionOut TransferDirection = "out"
)

// TransferEvent is one balance-change leg of a validated transaction
// touching a monitored account. A single transaction may produce several
// legs for the same account (e.g. an AMM deposit moves XRP and a token);
// each leg is a separate row keyed by (tx hash, account, leg index).
// Immutable once stored.
type TransferEvent struct {
	TxHash          string
	LegIndex        int
	LedgerIndex     int64
	Timestamp       time.Time
	Account         string // monitored account the leg belongs to
	Currency        string // "XRP" or a 3-char / 40-hex currency code
	Issuer          string // empty for XRP
	Amount          decimal.Decimal
	Direction       TransferDirection
	Counterparty    string // other side of the leg, if resolvable
	TransactionType string // lower-cased ledger transaction type
}
