package xrpl

import (
	"context"
	"encoding/json"
)

// LedgerClient is the request/response side of a ledger connection.
// All calls carry a bounded timeout; a timeout surfaces as an error and
// is treated by callers as a retryable connection failure.
type LedgerClient interface {
	// CurrentLedger returns the latest validated ledger index.
	CurrentLedger(ctx context.Context) (int64, error)

	// AccountTransactions returns one page of validated transactions for
	// the account within [minLedger, maxLedger]. A nil marker starts from
	// the beginning; the returned page's marker continues pagination.
	AccountTransactions(ctx context.Context, account string, minLedger, maxLedger int64, marker json.RawMessage) (*AccountTxPage, error)

	// AMMInfo returns the current validated state of an AMM pool account.
	AMMInfo(ctx context.Context, account string) (*AMMState, error)
}

// StreamClient adds the push subscription side. Events ends (channel
// close) when the transport fails; the client performs no reconnection
// of its own.
type StreamClient interface {
	LedgerClient

	// Subscribe requests transaction notifications for the accounts and
	// returns the event stream. May be called once per client.
	Subscribe(ctx context.Context, accounts []string) (<-chan *TransactionWithMeta, error)

	// Close tears down the connection and the event stream.
	Close() error
}

// DialFunc opens a fresh ledger connection. The reconnect supervisor and
// the periodic tasks each dial their own client so a dead connection in
// one task never stalls the others.
type DialFunc func(ctx context.Context) (StreamClient, error)
