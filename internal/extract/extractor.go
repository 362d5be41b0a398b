// Package extract turns validated ledger transactions into domain events.
// Extraction is pure: it never performs I/O, so the same transaction
// always yields the same events regardless of which collection path
// (backfill or realtime) processed it.
package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/xrpl"
)

// ammTransactionTypes are the transaction types that mutate AMM pool
// state. A transaction of any other type never triggers a snapshot,
// even when it touches a pool account.
var ammTransactionTypes = map[string]struct{}{
	"AMMCreate":   {},
	"AMMDeposit":  {},
	"AMMWithdraw": {},
	"AMMBid":      {},
	"AMMVote":     {},
}

// IsAMMTransaction reports whether the transaction type mutates AMM state.
func IsAMMTransaction(txType string) bool {
	_, ok := ammTransactionTypes[txType]
	return ok
}

// Result is everything extracted from one transaction.
type Result struct {
	Transfers []*domain.TransferEvent
	Snapshots []*domain.PoolSnapshot

	// NeedsStateLookup lists monitored pool accounts touched by an
	// AMM-mutating transaction whose metadata carried no decodable AMM
	// node. The caller resolves these with an amm_info call and
	// SnapshotFromState.
	NeedsStateLookup []string
}

// Extractor derives transfer legs and pool snapshots from transaction
// metadata for a fixed set of monitored accounts.
type Extractor struct {
	accounts map[string]domain.MonitoredAccount
}

// NewExtractor creates an extractor watching the given accounts.
func NewExtractor(accounts []domain.MonitoredAccount) *Extractor {
	m := make(map[string]domain.MonitoredAccount, len(accounts))
	for _, a := range accounts {
		m[a.Address] = a
	}
	return &Extractor{accounts: m}
}

// Extract walks the transaction's affected nodes and returns the
// transfer legs for monitored accounts plus any pool snapshots. Failed
// transactions yield an empty result: their metadata still records the
// fee burn, but the collection model only tracks applied transfers.
func (e *Extractor) Extract(txm *xrpl.TransactionWithMeta) *Result {
	res := &Result{}
	if txm == nil || !txm.Meta.Succeeded() {
		return res
	}

	ledgerIndex := txm.LedgerIndex
	if ledgerIndex == 0 {
		ledgerIndex = txm.Tx.LedgerIndex
	}
	timestamp := xrpl.RippleTimeToTime(txm.Tx.Date)
	txType := strings.ToLower(txm.Tx.TransactionType)

	legIndex := make(map[string]int)
	touched := make(map[string]struct{})
	snapshotted := make(map[string]struct{})

	for _, node := range txm.Meta.AffectedNodes {
		fields, kind := node.Entry()
		if fields == nil {
			continue
		}

		switch fields.LedgerEntryType {
		case "AccountRoot":
			account, delta, ok := accountRootDelta(fields, kind)
			if !ok {
				continue
			}
			touched[account] = struct{}{}
			monitored, watching := e.accounts[account]
			if !watching {
				continue
			}
			// The sender's XRP delta includes the burned fee; strip it
			// so the leg reflects the transferred value.
			if account == txm.Tx.Account && txm.Tx.Fee != "" {
				if fee, err := xrpl.DropsToXRP(txm.Tx.Fee); err == nil {
					delta = delta.Add(fee)
				}
			}
			if delta.IsZero() {
				continue
			}
			res.Transfers = append(res.Transfers, &domain.TransferEvent{
				TxHash:          txm.Tx.Hash,
				LegIndex:        nextLeg(legIndex, monitored.Address),
				LedgerIndex:     ledgerIndex,
				Timestamp:       timestamp,
				Account:         monitored.Address,
				Currency:        domain.NativeCurrency,
				Amount:          delta.Abs(),
				Direction:       direction(delta),
				Counterparty:    e.nativeCounterparty(monitored.Address, &txm.Tx),
				TransactionType: txType,
			})

		case "RippleState":
			e.extractTrustLineLegs(res, fields, kind, txm, ledgerIndex, timestamp, txType, legIndex, touched)

		case "AMM":
			snap, ok := e.extractSnapshot(fields, txm, ledgerIndex, timestamp)
			if !ok {
				continue
			}
			res.Snapshots = append(res.Snapshots, snap)
			snapshotted[snap.PoolAccount] = struct{}{}
		}
	}

	// An AMM-mutating transaction that touched a monitored pool but
	// produced no decodable AMM node needs a live state lookup.
	if IsAMMTransaction(txm.Tx.TransactionType) {
		for account := range touched {
			monitored, watching := e.accounts[account]
			if !watching || !monitored.IsPool() {
				continue
			}
			if _, done := snapshotted[account]; done {
				continue
			}
			res.NeedsStateLookup = append(res.NeedsStateLookup, account)
		}
	}

	return res
}

// extractTrustLineLegs emits transfer legs for both ends of a modified
// trust line, for whichever ends are monitored. The stored balance is
// held from the low account's perspective.
func (e *Extractor) extractTrustLineLegs(
	res *Result,
	fields *xrpl.NodeFields,
	kind xrpl.NodeKind,
	txm *xrpl.TransactionWithMeta,
	ledgerIndex int64,
	timestamp time.Time,
	txType string,
	legIndex map[string]int,
	touched map[string]struct{},
) {
	var state xrpl.RippleStateFields
	if err := json.Unmarshal(fields.EffectiveFields(), &state); err != nil {
		return
	}

	// LowLimit.issuer is the low account, HighLimit.issuer the high one.
	lowAccount := state.LowLimit.Issuer
	highAccount := state.HighLimit.Issuer
	currency := state.Balance.Currency
	if lowAccount == "" || highAccount == "" || currency == "" {
		return
	}
	touched[lowAccount] = struct{}{}
	touched[highAccount] = struct{}{}

	lowDelta, ok := trustLineDelta(fields, kind, state.Balance.Value)
	if !ok || lowDelta.IsZero() {
		return
	}

	// The low account gains when the stored balance rises; the high
	// account's change is the mirror image.
	for _, side := range []struct {
		account      string
		counterparty string
		delta        decimal.Decimal
	}{
		{lowAccount, highAccount, lowDelta},
		{highAccount, lowAccount, lowDelta.Neg()},
	} {
		if _, watching := e.accounts[side.account]; !watching {
			continue
		}
		res.Transfers = append(res.Transfers, &domain.TransferEvent{
			TxHash:          txm.Tx.Hash,
			LegIndex:        nextLeg(legIndex, side.account),
			LedgerIndex:     ledgerIndex,
			Timestamp:       timestamp,
			Account:         side.account,
			Currency:        currency,
			Issuer:          side.counterparty,
			Amount:          side.delta.Abs(),
			Direction:       direction(side.delta),
			Counterparty:    side.counterparty,
			TransactionType: txType,
		})
	}
}

// extractSnapshot decodes an AMM ledger entry into a pool snapshot.
// Only monitored pool accounts produce snapshots.
func (e *Extractor) extractSnapshot(fields *xrpl.NodeFields, txm *xrpl.TransactionWithMeta, ledgerIndex int64, timestamp time.Time) (*domain.PoolSnapshot, bool) {
	var amm xrpl.AMMFields
	if err := json.Unmarshal(fields.EffectiveFields(), &amm); err != nil {
		return nil, false
	}
	if amm.Account == "" || amm.Amount.IsZero() || amm.Amount2.IsZero() {
		return nil, false
	}
	monitored, watching := e.accounts[amm.Account]
	if !watching || !monitored.IsPool() {
		return nil, false
	}

	snap := &domain.PoolSnapshot{
		PoolAccount: amm.Account,
		LedgerIndex: ledgerIndex,
		Timestamp:   timestamp,
		Asset1: domain.AssetAmount{
			Currency: amm.Amount.Currency,
			Issuer:   amm.Amount.Issuer,
			Amount:   amm.Amount.Value,
		},
		Asset2: domain.AssetAmount{
			Currency: amm.Amount2.Currency,
			Issuer:   amm.Amount2.Issuer,
			Amount:   amm.Amount2.Value,
		},
		LPTokenCurrency: amm.LPTokenBalance.Currency,
		LPTokenSupply:   amm.LPTokenBalance.Value,
		TradingFeeBps:   amm.TradingFee,
		TxHash:          txm.Tx.Hash,
		TransactionType: txm.Tx.TransactionType,
	}
	snap.ComputeMetrics()
	return snap, true
}

// SnapshotFromState builds a snapshot from live amm_info state. Used
// both for lookups flagged by Extract and for periodic sampling, where
// no transaction is involved and provenance stays empty.
func SnapshotFromState(state *xrpl.AMMState, timestamp time.Time, txHash, txType string) *domain.PoolSnapshot {
	snap := &domain.PoolSnapshot{
		PoolAccount: state.Account,
		LedgerIndex: state.LedgerIndex,
		Timestamp:   timestamp,
		Asset1: domain.AssetAmount{
			Currency: state.Amount.Currency,
			Issuer:   state.Amount.Issuer,
			Amount:   state.Amount.Value,
		},
		Asset2: domain.AssetAmount{
			Currency: state.Amount2.Currency,
			Issuer:   state.Amount2.Issuer,
			Amount:   state.Amount2.Value,
		},
		LPTokenCurrency: state.LPToken.Currency,
		LPTokenSupply:   state.LPToken.Value,
		TradingFeeBps:   state.TradingFee,
		TxHash:          txHash,
		TransactionType: txType,
	}
	snap.ComputeMetrics()
	return snap
}

// accountRootDelta computes the XRP balance change of an AccountRoot
// node. Created nodes count their full initial balance as the delta.
func accountRootDelta(fields *xrpl.NodeFields, kind xrpl.NodeKind) (string, decimal.Decimal, bool) {
	var final xrpl.AccountRootFields
	if err := json.Unmarshal(fields.EffectiveFields(), &final); err != nil {
		return "", decimal.Zero, false
	}
	if final.Account == "" || final.Balance == "" {
		return "", decimal.Zero, false
	}
	finalBalance, err := xrpl.DropsToXRP(final.Balance)
	if err != nil {
		return "", decimal.Zero, false
	}

	if kind == xrpl.NodeCreated {
		return final.Account, finalBalance, true
	}

	var prev xrpl.AccountRootFields
	if len(fields.PreviousFields) == 0 {
		return "", decimal.Zero, false
	}
	if err := json.Unmarshal(fields.PreviousFields, &prev); err != nil {
		return "", decimal.Zero, false
	}
	if prev.Balance == "" {
		// Node was modified but its balance was not.
		return "", decimal.Zero, false
	}
	prevBalance, err := xrpl.DropsToXRP(prev.Balance)
	if err != nil {
		return "", decimal.Zero, false
	}

	return final.Account, finalBalance.Sub(prevBalance), true
}

// trustLineDelta computes the low-account balance change of a
// RippleState node given its final balance.
func trustLineDelta(fields *xrpl.NodeFields, kind xrpl.NodeKind, finalBalance decimal.Decimal) (decimal.Decimal, bool) {
	if kind == xrpl.NodeCreated {
		return finalBalance, true
	}
	if len(fields.PreviousFields) == 0 {
		return decimal.Zero, false
	}
	// A limit-only change (TrustSet) lists PreviousFields without a
	// Balance key. Absent means the balance did not move, which is not
	// the same as a previous balance of zero.
	var prev struct {
		Balance *xrpl.Amount `json:"Balance"`
	}
	if err := json.Unmarshal(fields.PreviousFields, &prev); err != nil {
		return decimal.Zero, false
	}
	if prev.Balance == nil {
		return decimal.Zero, false
	}
	return finalBalance.Sub(prev.Balance.Value), true
}

// nativeCounterparty resolves the other party of an XRP leg from the
// transaction envelope.
func (e *Extractor) nativeCounterparty(account string, tx *xrpl.Transaction) string {
	if account != tx.Account {
		return tx.Account
	}
	return tx.Destination
}

func nextLeg(legIndex map[string]int, account string) int {
	idx := legIndex[account]
	legIndex[account] = idx + 1
	return idx
}

func direction(delta decimal.Decimal) domain.TransferDirection {
	if delta.IsPositive() {
		return domain.DirectionIn
	}
	return domain.DirectionOut
}
