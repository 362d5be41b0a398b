package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/extract"
	"xrpl-amm-lab/internal/xrpl"
)

const (
	testWallet = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	testPool   = "rP9jPyP5kyvFRb6ZiRghAGw5u8SGAmU4bd"
	testOther  = "rrrrrrrrrrrrrrrrrrrrrhoLvTp"
)

type rangeCall struct {
	account  string
	min, max int64
}

// mockClient implements xrpl.StreamClient against canned data.
type mockClient struct {
	mu sync.Mutex

	currentLedger int64
	currentErr    error

	// pages maps "account:min:max" to transactions served for that range.
	pages      map[string][]*xrpl.TransactionWithMeta
	rangeCalls []rangeCall
	failRange  func(call int) error

	ammState *xrpl.AMMState
	ammErr   error

	events chan *xrpl.TransactionWithMeta

	subscribeErr error
	closed       bool
}

func newMockClient(currentLedger int64) *mockClient {
	return &mockClient{
		currentLedger: currentLedger,
		pages:         make(map[string][]*xrpl.TransactionWithMeta),
		events:        make(chan *xrpl.TransactionWithMeta, 64),
	}
}

func rangeKey(account string, min, max int64) string {
	return fmt.Sprintf("%s:%d:%d", account, min, max)
}

func (m *mockClient) CurrentLedger(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLedger, m.currentErr
}

func (m *mockClient) AccountTransactions(_ context.Context, account string, min, max int64, _ json.RawMessage) (*xrpl.AccountTxPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := len(m.rangeCalls)
	m.rangeCalls = append(m.rangeCalls, rangeCall{account: account, min: min, max: max})

	if m.failRange != nil {
		if err := m.failRange(call); err != nil {
			return nil, err
		}
	}

	return &xrpl.AccountTxPage{Transactions: m.pages[rangeKey(account, min, max)]}, nil
}

func (m *mockClient) AMMInfo(_ context.Context, _ string) (*xrpl.AMMState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ammErr != nil {
		return nil, m.ammErr
	}
	if m.ammState == nil {
		return &xrpl.AMMState{
			Account:     testPool,
			Amount:      xrpl.Amount{Currency: "XRP", Value: decimal.NewFromInt(1000)},
			Amount2:     xrpl.Amount{Currency: "USD", Issuer: testOther, Value: decimal.NewFromInt(500)},
			LPToken:     xrpl.Amount{Currency: "03AB", Issuer: testPool, Value: decimal.NewFromInt(700)},
			TradingFee:  500,
			LedgerIndex: m.currentLedger,
		}, nil
	}
	return m.ammState, nil
}

func (m *mockClient) Subscribe(_ context.Context, _ []string) (<-chan *xrpl.TransactionWithMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}
	return m.events, nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) dialFunc() xrpl.DialFunc {
	return func(_ context.Context) (xrpl.StreamClient, error) {
		return m, nil
	}
}

var _ xrpl.StreamClient = (*mockClient)(nil)

// paymentEvent builds a validated XRP payment into the wallet.
func paymentEvent(hash string, ledger int64, drops string) *xrpl.TransactionWithMeta {
	final := fmt.Sprintf(`{"Account":%q,"Balance":%q}`, testWallet, drops)
	return &xrpl.TransactionWithMeta{
		Tx: xrpl.Transaction{
			Hash:            hash,
			Account:         testOther,
			Destination:     testWallet,
			TransactionType: "Payment",
			Date:            772396800,
			Fee:             "12",
		},
		Meta: xrpl.Meta{
			TransactionResult: "tesSUCCESS",
			AffectedNodes: []xrpl.AffectedNode{{
				Modified: &xrpl.NodeFields{
					LedgerEntryType: "AccountRoot",
					LedgerIndex:     "ABCDEF",
					FinalFields:     json.RawMessage(final),
					PreviousFields:  json.RawMessage(`{"Balance":"100000000"}`),
				},
			}},
		},
		LedgerIndex: ledger,
		Validated:   true,
	}
}

func testAccounts() []domain.MonitoredAccount {
	return []domain.MonitoredAccount{
		{Address: testWallet, Role: domain.RoleWallet, Name: "wallet"},
		{Address: testPool, Role: domain.RolePool, Name: "pool"},
	}
}

func testExtractor() *extract.Extractor {
	return extract.NewExtractor(testAccounts())
}
