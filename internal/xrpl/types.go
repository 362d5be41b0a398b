package xrpl

import "encoding/json"

// tesSuccess is the result code of a transaction that applied successfully.
const tesSuccess = "tesSUCCESS"

// Transaction is the decoded common envelope of a ledger transaction.
// Only the fields the collector reads are modeled; everything else is
// dropped at decode time.
type Transaction struct {
	Hash            string `json:"hash"`
	Account         string `json:"Account"`
	Destination     string `json:"Destination,omitempty"`
	TransactionType string `json:"TransactionType"`
	Date            int64  `json:"date"` // seconds since the ripple epoch
	LedgerIndex     int64  `json:"ledger_index,omitempty"`
	Fee             string `json:"Fee,omitempty"`
}

// Meta is transaction metadata as applied to the ledger.
type Meta struct {
	TransactionResult string         `json:"TransactionResult"`
	AffectedNodes     []AffectedNode `json:"AffectedNodes"`
}

// Succeeded reports whether the transaction applied (tesSUCCESS).
func (m *Meta) Succeeded() bool {
	return m.TransactionResult == tesSuccess
}

// AffectedNode is one ledger entry touched by a transaction. Exactly one
// of Created, Modified or Deleted is set on the wire.
type AffectedNode struct {
	Created  *NodeFields `json:"CreatedNode,omitempty"`
	Modified *NodeFields `json:"ModifiedNode,omitempty"`
	Deleted  *NodeFields `json:"DeletedNode,omitempty"`
}

// Entry returns whichever node variant is present and its kind.
func (n AffectedNode) Entry() (*NodeFields, NodeKind) {
	switch {
	case n.Modified != nil:
		return n.Modified, NodeModified
	case n.Created != nil:
		return n.Created, NodeCreated
	case n.Deleted != nil:
		return n.Deleted, NodeDeleted
	}
	return nil, NodeKind("")
}

// NodeKind is the mutation kind of an affected node.
type NodeKind string

const (
	NodeCreated  NodeKind = "created"
	NodeModified NodeKind = "modified"
	NodeDeleted  NodeKind = "deleted"
)

// NodeFields carries the typed portions of an affected node. Final and
// Previous field sets stay raw; callers decode them against the entry
// type they expect (AMM, AccountRoot, RippleState).
type NodeFields struct {
	LedgerEntryType string          `json:"LedgerEntryType"`
	LedgerIndex     string          `json:"LedgerIndex"`
	FinalFields     json.RawMessage `json:"FinalFields,omitempty"`
	PreviousFields  json.RawMessage `json:"PreviousFields,omitempty"`
	NewFields       json.RawMessage `json:"NewFields,omitempty"`
}

// EffectiveFields returns FinalFields for modified/deleted nodes and
// NewFields for created ones.
func (f *NodeFields) EffectiveFields() json.RawMessage {
	if len(f.FinalFields) > 0 {
		return f.FinalFields
	}
	return f.NewFields
}

// AMMFields is the decoded shape of an AMM ledger entry's field set.
type AMMFields struct {
	Account        string `json:"Account"`
	Amount         Amount `json:"Amount"`
	Amount2        Amount `json:"Amount2"`
	LPTokenBalance Amount `json:"LPTokenBalance"`
	TradingFee     int32  `json:"TradingFee"`
}

// AccountRootFields is the decoded shape of an AccountRoot entry,
// restricted to the balance-tracking fields.
type AccountRootFields struct {
	Account string `json:"Account"`
	Balance string `json:"Balance"` // drops
}

// RippleStateFields is the decoded shape of a RippleState (trust line)
// entry. The balance is held from the low account's perspective.
type RippleStateFields struct {
	Balance   Amount     `json:"Balance"`
	HighLimit LimitField `json:"HighLimit"`
	LowLimit  LimitField `json:"LowLimit"`
}

// LimitField is one side of a trust line.
type LimitField struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer"`
	Value    string `json:"value"`
}

// TransactionWithMeta is one validated transaction together with its
// metadata, as returned by account_tx and the subscription stream.
type TransactionWithMeta struct {
	Tx          Transaction
	Meta        Meta
	LedgerIndex int64
	Validated   bool
}

// accountTxRecord is the account_tx wire shape.
type accountTxRecord struct {
	Tx          *Transaction `json:"tx"`
	Meta        *Meta        `json:"meta"`
	LedgerIndex int64        `json:"ledger_index"`
	Validated   bool         `json:"validated"`
}

// streamTxMessage is the subscription stream wire shape; the transaction
// sits under "transaction" and the ledger index at the top level.
type streamTxMessage struct {
	Type        string       `json:"type"`
	Transaction *Transaction `json:"transaction"`
	Meta        *Meta        `json:"meta"`
	LedgerIndex int64        `json:"ledger_index"`
	Validated   bool         `json:"validated"`
	Account     string       `json:"account,omitempty"`
}

// AccountTxPage is one page of historical transactions. A non-nil Marker
// means more pages follow; pass it back verbatim to continue.
type AccountTxPage struct {
	Transactions []*TransactionWithMeta
	Marker       json.RawMessage
}

// AMMState is the live state of an AMM pool from amm_info.
type AMMState struct {
	Account     string
	Amount      Amount
	Amount2     Amount
	LPToken     Amount
	TradingFee  int32
	LedgerIndex int64
}
