package extract

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/xrpl"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

const (
	walletAddr = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	otherAddr  = "rrrrrrrrrrrrrrrrrrrrrhoLvTp"
	poolAddr   = "rP9jPyP5kyvFRb6ZiRghAGw5u8SGAmU4bd"
	issuerAddr = "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B"
)

func testExtractor() *Extractor {
	return NewExtractor([]domain.MonitoredAccount{
		{Address: walletAddr, Role: domain.RoleWallet, Name: "wallet"},
		{Address: poolAddr, Role: domain.RolePool, Name: "xrp-usd pool"},
	})
}

func modifiedNode(entryType string, final, previous string) xrpl.AffectedNode {
	return xrpl.AffectedNode{
		Modified: &xrpl.NodeFields{
			LedgerEntryType: entryType,
			LedgerIndex:     "ABCDEF",
			FinalFields:     json.RawMessage(final),
			PreviousFields:  json.RawMessage(previous),
		},
	}
}

func paymentTx(hash, from, to string) xrpl.TransactionWithMeta {
	return xrpl.TransactionWithMeta{
		Tx: xrpl.Transaction{
			Hash:            hash,
			Account:         from,
			Destination:     to,
			TransactionType: "Payment",
			Date:            772396800, // 2024-06-23T00:00:00Z ripple time
			Fee:             "12",
		},
		Meta:        xrpl.Meta{TransactionResult: "tesSUCCESS"},
		LedgerIndex: 5000,
		Validated:   true,
	}
}

func TestExtract_XRPPayment_SenderLeg(t *testing.T) {
	txm := paymentTx("TX1", walletAddr, otherAddr)
	// Sender goes from 100 XRP to 89.999988 XRP: 10 XRP sent plus 12 drops fee.
	txm.Meta.AffectedNodes = []xrpl.AffectedNode{
		modifiedNode("AccountRoot",
			`{"Account":"`+walletAddr+`","Balance":"89999988"}`,
			`{"Balance":"100000000"}`),
		modifiedNode("AccountRoot",
			`{"Account":"`+otherAddr+`","Balance":"60000000"}`,
			`{"Balance":"50000000"}`),
	}

	res := testExtractor().Extract(&txm)

	if len(res.Transfers) != 1 {
		t.Fatalf("Expected 1 transfer, got %d", len(res.Transfers))
	}
	leg := res.Transfers[0]
	if leg.Account != walletAddr {
		t.Errorf("Expected account %s, got %s", walletAddr, leg.Account)
	}
	if leg.Direction != domain.DirectionOut {
		t.Errorf("Expected direction out, got %s", leg.Direction)
	}
	// Fee is stripped: the leg is exactly 10 XRP, not 10.000012.
	if !leg.Amount.Equal(decimalFromString(t, "10")) {
		t.Errorf("Expected amount 10, got %s", leg.Amount)
	}
	if leg.Currency != "XRP" || leg.Issuer != "" {
		t.Errorf("Expected native XRP leg, got %s/%s", leg.Currency, leg.Issuer)
	}
	if leg.Counterparty != otherAddr {
		t.Errorf("Expected counterparty %s, got %s", otherAddr, leg.Counterparty)
	}
	if leg.LedgerIndex != 5000 {
		t.Errorf("Expected ledger 5000, got %d", leg.LedgerIndex)
	}
	if leg.TransactionType != "payment" {
		t.Errorf("Expected lower-cased tx type, got %s", leg.TransactionType)
	}
}

func TestExtract_XRPPayment_ReceiverLeg(t *testing.T) {
	txm := paymentTx("TX2", otherAddr, walletAddr)
	txm.Meta.AffectedNodes = []xrpl.AffectedNode{
		modifiedNode("AccountRoot",
			`{"Account":"`+walletAddr+`","Balance":"110000000"}`,
			`{"Balance":"100000000"}`),
	}

	res := testExtractor().Extract(&txm)

	if len(res.Transfers) != 1 {
		t.Fatalf("Expected 1 transfer, got %d", len(res.Transfers))
	}
	leg := res.Transfers[0]
	if leg.Direction != domain.DirectionIn {
		t.Errorf("Expected direction in, got %s", leg.Direction)
	}
	if !leg.Amount.Equal(decimalFromString(t, "10")) {
		t.Errorf("Expected amount 10, got %s", leg.Amount)
	}
	if leg.Counterparty != otherAddr {
		t.Errorf("Expected counterparty %s, got %s", otherAddr, leg.Counterparty)
	}
}

func TestExtract_FailedTransaction_Empty(t *testing.T) {
	txm := paymentTx("TX3", walletAddr, otherAddr)
	txm.Meta.TransactionResult = "tecUNFUNDED_PAYMENT"
	txm.Meta.AffectedNodes = []xrpl.AffectedNode{
		modifiedNode("AccountRoot",
			`{"Account":"`+walletAddr+`","Balance":"99999988"}`,
			`{"Balance":"100000000"}`),
	}

	res := testExtractor().Extract(&txm)

	if len(res.Transfers) != 0 || len(res.Snapshots) != 0 || len(res.NeedsStateLookup) != 0 {
		t.Fatalf("Expected empty result for failed tx, got %+v", res)
	}
}

func TestExtract_UnmonitoredAccount_Ignored(t *testing.T) {
	txm := paymentTx("TX4", otherAddr, issuerAddr)
	txm.Meta.AffectedNodes = []xrpl.AffectedNode{
		modifiedNode("AccountRoot",
			`{"Account":"`+otherAddr+`","Balance":"40000000"}`,
			`{"Balance":"50000000"}`),
	}

	res := testExtractor().Extract(&txm)

	if len(res.Transfers) != 0 {
		t.Fatalf("Expected no transfers for unmonitored accounts, got %d", len(res.Transfers))
	}
}

func TestExtract_TrustLine_HolderReceives(t *testing.T) {
	txm := paymentTx("TX5", otherAddr, walletAddr)
	// Wallet is the low account; balance rises from 5 to 30 USD.
	txm.Meta.AffectedNodes = []xrpl.AffectedNode{
		modifiedNode("RippleState",
			`{"Balance":{"currency":"USD","issuer":"rrrrrrrrrrrrrrrrrrrrBZbvji","value":"30"},
			  "LowLimit":{"currency":"USD","issuer":"`+walletAddr+`","value":"1000000"},
			  "HighLimit":{"currency":"USD","issuer":"`+issuerAddr+`","value":"0"}}`,
			`{"Balance":{"currency":"USD","issuer":"rrrrrrrrrrrrrrrrrrrrBZbvji","value":"5"}}`),
	}

	res := testExtractor().Extract(&txm)

	if len(res.Transfers) != 1 {
		t.Fatalf("Expected 1 transfer, got %d", len(res.Transfers))
	}
	leg := res.Transfers[0]
	if leg.Account != walletAddr {
		t.Errorf("Expected account %s, got %s", walletAddr, leg.Account)
	}
	if leg.Currency != "USD" {
		t.Errorf("Expected currency USD, got %s", leg.Currency)
	}
	if leg.Issuer != issuerAddr {
		t.Errorf("Expected issuer %s, got %s", issuerAddr, leg.Issuer)
	}
	if leg.Direction != domain.DirectionIn {
		t.Errorf("Expected direction in, got %s", leg.Direction)
	}
	if !leg.Amount.Equal(decimalFromString(t, "25")) {
		t.Errorf("Expected amount 25, got %s", leg.Amount)
	}
}

func TestExtract_TrustLine_HighAccountMirrored(t *testing.T) {
	txm := paymentTx("TX6", walletAddr, otherAddr)
	// Wallet is the high account; the low-side balance rising means the
	// wallet side fell.
	txm.Meta.AffectedNodes = []xrpl.AffectedNode{
		modifiedNode("RippleState",
			`{"Balance":{"currency":"USD","issuer":"rrrrrrrrrrrrrrrrrrrrBZbvji","value":"12"},
			  "LowLimit":{"currency":"USD","issuer":"`+issuerAddr+`","value":"0"},
			  "HighLimit":{"currency":"USD","issuer":"`+walletAddr+`","value":"500"}}`,
			`{"Balance":{"currency":"USD","issuer":"rrrrrrrrrrrrrrrrrrrrBZbvji","value":"2"}}`),
	}

	res := testExtractor().Extract(&txm)

	if len(res.Transfers) != 1 {
		t.Fatalf("Expected 1 transfer, got %d", len(res.Transfers))
	}
	leg := res.Transfers[0]
	if leg.Direction != domain.DirectionOut {
		t.Errorf("Expected direction out for high account, got %s", leg.Direction)
	}
	if !leg.Amount.Equal(decimalFromString(t, "10")) {
		t.Errorf("Expected amount 10, got %s", leg.Amount)
	}
	if leg.Counterparty != issuerAddr {
		t.Errorf("Expected counterparty %s, got %s", issuerAddr, leg.Counterparty)
	}
}

func TestExtract_TrustLine_LimitOnlyChange_NoTransfer(t *testing.T) {
	txm := paymentTx("TX11", walletAddr, "")
	txm.Tx.TransactionType = "TrustSet"
	// A limit change leaves Balance out of PreviousFields. The final
	// balance is untouched and must not be read as a delta from zero.
	txm.Meta.AffectedNodes = []xrpl.AffectedNode{
		modifiedNode("RippleState",
			`{"Balance":{"currency":"USD","issuer":"rrrrrrrrrrrrrrrrrrrrBZbvji","value":"250"},
			  "LowLimit":{"currency":"USD","issuer":"`+walletAddr+`","value":"5000"},
			  "HighLimit":{"currency":"USD","issuer":"`+issuerAddr+`","value":"0"}}`,
			`{"LowLimit":{"currency":"USD","issuer":"`+walletAddr+`","value":"1000"}}`),
	}

	res := testExtractor().Extract(&txm)

	if len(res.Transfers) != 0 {
		t.Fatalf("Expected no transfers for a limit-only change, got %d (first amount %s)",
			len(res.Transfers), res.Transfers[0].Amount)
	}
}

func TestExtract_MultiLeg_IndexesPerAccount(t *testing.T) {
	txm := paymentTx("TX7", walletAddr, poolAddr)
	txm.Tx.TransactionType = "AMMDeposit"
	// An AMM deposit moves both XRP and a token for the same wallet.
	txm.Meta.AffectedNodes = []xrpl.AffectedNode{
		modifiedNode("AccountRoot",
			`{"Account":"`+walletAddr+`","Balance":"89999988"}`,
			`{"Balance":"100000000"}`),
		modifiedNode("RippleState",
			`{"Balance":{"currency":"USD","issuer":"rrrrrrrrrrrrrrrrrrrrBZbvji","value":"10"},
			  "LowLimit":{"currency":"USD","issuer":"`+walletAddr+`","value":"1000"},
			  "HighLimit":{"currency":"USD","issuer":"`+issuerAddr+`","value":"0"}}`,
			`{"Balance":{"currency":"USD","issuer":"rrrrrrrrrrrrrrrrrrrrBZbvji","value":"30"}}`),
	}

	res := testExtractor().Extract(&txm)

	if len(res.Transfers) != 2 {
		t.Fatalf("Expected 2 transfers, got %d", len(res.Transfers))
	}
	if res.Transfers[0].LegIndex != 0 || res.Transfers[1].LegIndex != 1 {
		t.Errorf("Expected leg indexes 0,1, got %d,%d",
			res.Transfers[0].LegIndex, res.Transfers[1].LegIndex)
	}
}

func TestExtract_AMMNode_ProducesSnapshot(t *testing.T) {
	txm := paymentTx("TX8", walletAddr, "")
	txm.Tx.TransactionType = "AMMDeposit"
	txm.Meta.AffectedNodes = []xrpl.AffectedNode{
		modifiedNode("AMM",
			`{"Account":"`+poolAddr+`",
			  "Amount":"1000000000",
			  "Amount2":{"currency":"USD","issuer":"`+issuerAddr+`","value":"500"},
			  "LPTokenBalance":{"currency":"03AB","issuer":"`+poolAddr+`","value":"700"},
			  "TradingFee":500}`,
			`{"Amount":"900000000"}`),
	}

	res := testExtractor().Extract(&txm)

	if len(res.Snapshots) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(res.Snapshots))
	}
	snap := res.Snapshots[0]
	if snap.PoolAccount != poolAddr {
		t.Errorf("Expected pool %s, got %s", poolAddr, snap.PoolAccount)
	}
	if !snap.Asset1.Amount.Equal(decimalFromString(t, "1000")) {
		t.Errorf("Expected asset1 1000 XRP, got %s", snap.Asset1.Amount)
	}
	if !snap.KConstant.Equal(decimalFromString(t, "500000")) {
		t.Errorf("Expected k 500000, got %s", snap.KConstant)
	}
	if !snap.Price.Equal(decimalFromString(t, "0.5")) {
		t.Errorf("Expected price 0.5, got %s", snap.Price)
	}
	if !snap.TVLXRP.Equal(decimalFromString(t, "2000")) {
		t.Errorf("Expected TVL 2000, got %s", snap.TVLXRP)
	}
	if snap.TradingFeeBps != 500 {
		t.Errorf("Expected fee 500, got %d", snap.TradingFeeBps)
	}
	if snap.TxHash != "TX8" || snap.TransactionType != "AMMDeposit" {
		t.Errorf("Expected provenance TX8/AMMDeposit, got %s/%s", snap.TxHash, snap.TransactionType)
	}
	if len(res.NeedsStateLookup) != 0 {
		t.Errorf("Expected no lookup when snapshot extracted, got %v", res.NeedsStateLookup)
	}
}

func TestExtract_AMMTransactionWithoutAMMNode_FlagsLookup(t *testing.T) {
	txm := paymentTx("TX9", otherAddr, "")
	txm.Tx.TransactionType = "AMMBid"
	txm.Meta.AffectedNodes = []xrpl.AffectedNode{
		modifiedNode("AccountRoot",
			`{"Account":"`+poolAddr+`","Balance":"1000000000"}`,
			`{"Balance":"999000000"}`),
	}

	res := testExtractor().Extract(&txm)

	if len(res.NeedsStateLookup) != 1 || res.NeedsStateLookup[0] != poolAddr {
		t.Fatalf("Expected lookup for %s, got %v", poolAddr, res.NeedsStateLookup)
	}
}

func TestExtract_PaymentTouchingPool_NoLookup(t *testing.T) {
	// A plain payment through the pool account must not trigger amm_info.
	txm := paymentTx("TX10", otherAddr, poolAddr)
	txm.Meta.AffectedNodes = []xrpl.AffectedNode{
		modifiedNode("AccountRoot",
			`{"Account":"`+poolAddr+`","Balance":"1001000000"}`,
			`{"Balance":"1000000000"}`),
	}

	res := testExtractor().Extract(&txm)

	if len(res.NeedsStateLookup) != 0 {
		t.Errorf("Expected no lookup for Payment, got %v", res.NeedsStateLookup)
	}
	if len(res.Transfers) != 1 {
		t.Errorf("Expected pool transfer leg, got %d", len(res.Transfers))
	}
}

func TestExtract_SameTransaction_Deterministic(t *testing.T) {
	txm := paymentTx("TX11", walletAddr, otherAddr)
	txm.Meta.AffectedNodes = []xrpl.AffectedNode{
		modifiedNode("AccountRoot",
			`{"Account":"`+walletAddr+`","Balance":"89999988"}`,
			`{"Balance":"100000000"}`),
	}

	ex := testExtractor()
	first := ex.Extract(&txm)
	second := ex.Extract(&txm)

	if len(first.Transfers) != len(second.Transfers) {
		t.Fatalf("Expected identical results, got %d vs %d legs",
			len(first.Transfers), len(second.Transfers))
	}
	a, b := first.Transfers[0], second.Transfers[0]
	if a.LegIndex != b.LegIndex || !a.Amount.Equal(b.Amount) || a.Direction != b.Direction {
		t.Errorf("Extraction not deterministic: %+v vs %+v", a, b)
	}
}

func TestSnapshotFromState(t *testing.T) {
	state := &xrpl.AMMState{
		Account:     poolAddr,
		Amount:      xrpl.Amount{Currency: "XRP", Value: decimalFromString(t, "2000")},
		Amount2:     xrpl.Amount{Currency: "USD", Issuer: issuerAddr, Value: decimalFromString(t, "1000")},
		LPToken:     xrpl.Amount{Currency: "03AB", Issuer: poolAddr, Value: decimalFromString(t, "1400")},
		TradingFee:  300,
		LedgerIndex: 7000,
	}

	snap := SnapshotFromState(state, xrpl.RippleTimeToTime(772396800), "", "")

	if snap.LedgerIndex != 7000 {
		t.Errorf("Expected ledger 7000, got %d", snap.LedgerIndex)
	}
	if !snap.Price.Equal(decimalFromString(t, "0.5")) {
		t.Errorf("Expected price 0.5, got %s", snap.Price)
	}
	if !snap.TVLXRP.Equal(decimalFromString(t, "4000")) {
		t.Errorf("Expected TVL 4000, got %s", snap.TVLXRP)
	}
	if snap.TxHash != "" {
		t.Errorf("Expected empty provenance for sampled state, got %s", snap.TxHash)
	}
}
