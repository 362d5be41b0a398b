package xrpl

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures websocket client behavior.
type WSConfig struct {
	// HandshakeTimeout bounds the initial dial.
	HandshakeTimeout time.Duration
	// RequestTimeout bounds each request/response call.
	RequestTimeout time.Duration
	// PingInterval is the keepalive ping cadence.
	PingInterval time.Duration
	// ReadTimeout is the idle limit; no frame for this long counts as a
	// dead connection.
	ReadTimeout time.Duration
	// WriteTimeout bounds each outbound frame.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default websocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout: 10 * time.Second,
		RequestTimeout:   30 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// WSClient implements StreamClient over a single websocket connection to
// a rippled/clio node. The connection is not self-healing: any transport
// error closes the event stream and fails in-flight requests, and the
// caller dials a new client.
type WSClient struct {
	endpoint string
	config   WSConfig

	conn   *websocket.Conn
	connMu sync.Mutex

	closed    atomic.Bool
	failed    atomic.Bool
	requestID atomic.Uint64

	// pending maps request ID to the channel awaiting its response.
	pending   map[uint64]chan rpcResult
	pendingMu sync.Mutex

	// events carries push notifications once Subscribe has been called.
	events     chan *TransactionWithMeta
	subscribed atomic.Bool

	done chan struct{}
	wg   sync.WaitGroup
}

var _ StreamClient = (*WSClient)(nil)

type rpcResult struct {
	result json.RawMessage
	err    error
}

// Dial connects to the endpoint and starts the reader and keepalive
// loops.
func Dial(ctx context.Context, endpoint string, config *WSConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", endpoint, err)
	}

	c := &WSClient{
		endpoint: endpoint,
		config:   cfg,
		conn:     conn,
		pending:  make(map[uint64]chan rpcResult),
		events:   make(chan *TransactionWithMeta, 1024),
		done:     make(chan struct{}),
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// NewDialer returns a DialFunc for the endpoint.
func NewDialer(endpoint string, config *WSConfig) DialFunc {
	return func(ctx context.Context) (StreamClient, error) {
		return Dial(ctx, endpoint, config)
	}
}

// Close tears down the connection, the event stream and all pending
// requests.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.failPending(fmt.Errorf("client closed"))
	c.wg.Wait()
	return nil
}

// CurrentLedger returns the latest validated ledger index via server_info.
func (c *WSClient) CurrentLedger(ctx context.Context) (int64, error) {
	result, err := c.request(ctx, "server_info", nil)
	if err != nil {
		return 0, err
	}

	var info struct {
		Info struct {
			ValidatedLedger struct {
				Seq int64 `json:"seq"`
			} `json:"validated_ledger"`
		} `json:"info"`
	}
	if err := json.Unmarshal(result, &info); err != nil {
		return 0, fmt.Errorf("decode server_info: %w", err)
	}
	if info.Info.ValidatedLedger.Seq == 0 {
		return 0, fmt.Errorf("server_info: no validated ledger")
	}
	return info.Info.ValidatedLedger.Seq, nil
}

// AccountTransactions returns one page of validated transactions for the
// account within [minLedger, maxLedger].
func (c *WSClient) AccountTransactions(ctx context.Context, account string, minLedger, maxLedger int64, marker json.RawMessage) (*AccountTxPage, error) {
	params := map[string]any{
		"account":          account,
		"ledger_index_min": minLedger,
		"ledger_index_max": maxLedger,
		"limit":            200,
	}
	if len(marker) > 0 {
		params["marker"] = marker
	}

	result, err := c.request(ctx, "account_tx", params)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Transactions []accountTxRecord `json:"transactions"`
		Marker       json.RawMessage   `json:"marker"`
	}
	if err := json.Unmarshal(result, &decoded); err != nil {
		return nil, fmt.Errorf("decode account_tx: %w", err)
	}

	page := &AccountTxPage{Marker: decoded.Marker}
	for _, rec := range decoded.Transactions {
		if rec.Tx == nil || rec.Meta == nil {
			continue
		}
		ledger := rec.LedgerIndex
		if ledger == 0 {
			ledger = rec.Tx.LedgerIndex
		}
		page.Transactions = append(page.Transactions, &TransactionWithMeta{
			Tx:          *rec.Tx,
			Meta:        *rec.Meta,
			LedgerIndex: ledger,
			Validated:   rec.Validated,
		})
	}
	return page, nil
}

// AMMInfo returns the current validated state of an AMM pool.
func (c *WSClient) AMMInfo(ctx context.Context, account string) (*AMMState, error) {
	result, err := c.request(ctx, "amm_info", map[string]any{
		"amm_account":  account,
		"ledger_index": "validated",
	})
	if err != nil {
		return nil, err
	}

	var decoded struct {
		AMM struct {
			Account    string `json:"account"`
			Amount     Amount `json:"amount"`
			Amount2    Amount `json:"amount2"`
			LPToken    Amount `json:"lp_token"`
			TradingFee int32  `json:"trading_fee"`
		} `json:"amm"`
		LedgerIndex int64 `json:"ledger_index"`
	}
	if err := json.Unmarshal(result, &decoded); err != nil {
		return nil, fmt.Errorf("decode amm_info: %w", err)
	}

	poolAccount := decoded.AMM.Account
	if poolAccount == "" {
		poolAccount = account
	}
	return &AMMState{
		Account:     poolAccount,
		Amount:      decoded.AMM.Amount,
		Amount2:     decoded.AMM.Amount2,
		LPToken:     decoded.AMM.LPToken,
		TradingFee:  decoded.AMM.TradingFee,
		LedgerIndex: decoded.LedgerIndex,
	}, nil
}

// Subscribe requests transaction notifications for the accounts plus the
// ledger stream and returns the event channel. The channel closes when
// the transport fails or the client is closed.
func (c *WSClient) Subscribe(ctx context.Context, accounts []string) (<-chan *TransactionWithMeta, error) {
	if c.subscribed.Swap(true) {
		return nil, fmt.Errorf("already subscribed")
	}

	_, err := c.request(ctx, "subscribe", map[string]any{
		"accounts": accounts,
		"streams":  []string{"ledger"},
	})
	if err != nil {
		c.subscribed.Store(false)
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	return c.events, nil
}

// request performs one command round trip with response correlation.
func (c *WSClient) request(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	if c.closed.Load() || c.failed.Load() {
		return nil, fmt.Errorf("connection down")
	}

	id := c.requestID.Add(1)
	req := map[string]any{"id": id, "command": command}
	for k, v := range params {
		req[k] = v
	}

	ch := make(chan rpcResult, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	cleanup := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	c.connMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("write %s: %w", command, err)
	}

	timer := time.NewTimer(c.config.RequestTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("%s: %w", command, res.err)
		}
		return res.result, nil
	case <-timer.C:
		cleanup()
		return nil, fmt.Errorf("%s: timeout after %v", command, c.config.RequestTimeout)
	case <-c.done:
		return nil, fmt.Errorf("client closed")
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	}
}

// readLoop reads frames and dispatches responses and push notifications.
// Any read error ends the loop, closes the event stream and fails all
// pending requests; recovery is the supervisor's job.
func (c *WSClient) readLoop() {
	defer c.wg.Done()
	defer func() {
		c.failed.Store(true)
		c.failPending(fmt.Errorf("connection lost"))
		close(c.events)
	}()

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		c.handleMessage(message)
	}
}

// handleMessage routes one inbound frame.
func (c *WSClient) handleMessage(message []byte) {
	var envelope struct {
		ID     uint64          `json:"id"`
		Type   string          `json:"type"`
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
		ErrMsg string          `json:"error_message"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		return
	}

	switch envelope.Type {
	case "response":
		c.pendingMu.Lock()
		ch, ok := c.pending[envelope.ID]
		if ok {
			delete(c.pending, envelope.ID)
		}
		c.pendingMu.Unlock()
		if !ok {
			return
		}

		if envelope.Status != "success" {
			msg := envelope.ErrMsg
			if msg == "" {
				msg = envelope.Error
			}
			ch <- rpcResult{err: fmt.Errorf("server error: %s", msg)}
			return
		}
		ch <- rpcResult{result: envelope.Result}

	case "transaction":
		var stream streamTxMessage
		if err := json.Unmarshal(message, &stream); err != nil || stream.Transaction == nil || stream.Meta == nil {
			return
		}
		ledger := stream.LedgerIndex
		if ledger == 0 {
			ledger = stream.Transaction.LedgerIndex
		}
		event := &TransactionWithMeta{
			Tx:          *stream.Transaction,
			Meta:        *stream.Meta,
			LedgerIndex: ledger,
			Validated:   stream.Validated,
		}

		// Block rather than drop; the buffer absorbs bursts.
		select {
		case c.events <- event:
		case <-c.done:
		}

	case "ledgerClosed":
		// Heartbeat only; the ledger stream keeps the read deadline fed
		// on quiet accounts.
	}
}

// failPending delivers an error to every in-flight request.
func (c *WSClient) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		select {
		case ch <- rpcResult{err: err}:
		default:
		}
		delete(c.pending, id)
	}
}

// pingLoop sends keepalive pings until shutdown.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Dead connection; the reader will notice and bail.
			}
			c.connMu.Unlock()
		}
	}
}
