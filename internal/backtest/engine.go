// Package backtest replays a price series through a strategy and
// measures the hypothetical trading performance.
package backtest

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"xrpl-amm-lab/internal/strategy"
)

// Exit reasons recorded on closed trades.
const (
	ExitReasonSignal     = "sell_signal"
	ExitReasonStopLoss   = "stop_loss"
	ExitReasonTakeProfit = "take_profit"
	ExitReasonEndOfData  = "end_of_data"
)

// Engine errors
var (
	ErrNoStrategy = errors.New("strategy is required")
	ErrNoData     = errors.New("no price points to backtest")
)

// Trade is a completed round trip.
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	PnL        float64
	PnLPct     float64
	ExitReason string
}

// Result aggregates backtest performance.
type Result struct {
	InitialBalance float64
	FinalBalance   float64
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	TotalPnL       float64
	TotalPnLPct    float64
	MaxDrawdown    float64
	MaxDrawdownPct float64
	SharpeRatio    float64
	WinRate        float64
	AverageWin     float64
	AverageLoss    float64
	ProfitFactor   float64
	Trades         []Trade
	EquityCurve    []float64
}

// Engine runs a strategy over a historical price series.
type Engine struct {
	strategy       strategy.Strategy
	initialBalance float64
	commission     float64
	slippage       float64
	positionPct    float64
	logger         zerolog.Logger
}

// EngineOptions configures NewEngine.
// Zero values fall back to defaults.
type EngineOptions struct {
	Strategy       strategy.Strategy
	InitialBalance float64 // starting XRP balance, default 10000
	Commission     float64 // fraction per fill, default 0.001
	Slippage       float64 // fraction per fill, default 0.0005
	PositionPct    float64 // fraction of balance per entry, default 0.95
	Logger         zerolog.Logger
}

// NewEngine creates a backtest engine with defaults applied.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Strategy == nil {
		return nil, ErrNoStrategy
	}
	if opts.InitialBalance == 0 {
		opts.InitialBalance = 10000
	}
	if opts.Commission == 0 {
		opts.Commission = 0.001
	}
	if opts.Slippage == 0 {
		opts.Slippage = 0.0005
	}
	if opts.PositionPct == 0 {
		opts.PositionPct = 0.95
	}

	return &Engine{
		strategy:       opts.Strategy,
		initialBalance: opts.InitialBalance,
		commission:     opts.Commission,
		slippage:       opts.Slippage,
		positionPct:    opts.PositionPct,
		logger:         opts.Logger,
	}, nil
}

// position is an open long position during a run.
type position struct {
	entryTime  time.Time
	entryPrice float64
	quantity   float64
	cost       float64
	stopLoss   float64
	takeProfit float64
}

// Run replays the series point by point. For each point the engine first
// checks stop loss and take profit on the open position, then asks the
// strategy for a signal over the history seen so far. Any position still
// open after the last point is closed at that point's price.
func (e *Engine) Run(ctx context.Context, series []strategy.PricePoint) (*Result, error) {
	if len(series) == 0 {
		return nil, ErrNoData
	}

	balance := e.initialBalance
	var pos *position
	var trades []Trade
	equity := make([]float64, 0, len(series))

	for i, point := range series {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ts := time.UnixMilli(point.TimestampMs).UTC()

		// Protective exits take priority over strategy signals.
		if pos != nil {
			if pos.stopLoss > 0 && point.Price <= pos.stopLoss {
				balance, trades = e.closePosition(balance, trades, pos, ts, point.Price, ExitReasonStopLoss)
				pos = nil
			} else if pos.takeProfit > 0 && point.Price >= pos.takeProfit {
				balance, trades = e.closePosition(balance, trades, pos, ts, point.Price, ExitReasonTakeProfit)
				pos = nil
			}
		}

		sig, err := e.strategy.Analyze(series[:i+1])
		if err != nil {
			return nil, err
		}

		switch sig.Action {
		case strategy.ActionBuy:
			if pos == nil {
				pos = e.openPosition(balance, ts, point.Price, sig)
				if pos != nil {
					balance -= pos.cost
				}
			}
		case strategy.ActionSell:
			if pos != nil {
				balance, trades = e.closePosition(balance, trades, pos, ts, point.Price, ExitReasonSignal)
				pos = nil
			}
		}

		equity = append(equity, markToMarket(balance, pos, point.Price))
	}

	if pos != nil {
		last := series[len(series)-1]
		ts := time.UnixMilli(last.TimestampMs).UTC()
		balance, trades = e.closePosition(balance, trades, pos, ts, last.Price, ExitReasonEndOfData)
		equity[len(equity)-1] = balance
	}

	res := e.buildResult(balance, trades, equity)

	e.logger.Info().
		Str("strategy", e.strategy.ID()).
		Int("trades", res.TotalTrades).
		Float64("final_balance", res.FinalBalance).
		Float64("pnl_pct", res.TotalPnLPct).
		Msg("backtest complete")

	return res, nil
}

// openPosition buys with a fraction of the balance at the slipped price.
// Returns nil when the balance cannot cover a position.
func (e *Engine) openPosition(balance float64, ts time.Time, price float64, sig *strategy.Signal) *position {
	fillPrice := price * (1 + e.slippage)
	budget := balance * e.positionPct
	if budget <= 0 || fillPrice <= 0 {
		return nil
	}

	quantity := budget / (fillPrice * (1 + e.commission))
	cost := quantity * fillPrice * (1 + e.commission)
	if cost > balance {
		return nil
	}

	return &position{
		entryTime:  ts,
		entryPrice: fillPrice,
		quantity:   quantity,
		cost:       cost,
		stopLoss:   sig.StopLoss,
		takeProfit: sig.TakeProfit,
	}
}

// closePosition sells the full position at the slipped price and records the trade.
func (e *Engine) closePosition(balance float64, trades []Trade, pos *position, ts time.Time, price float64, reason string) (float64, []Trade) {
	fillPrice := price * (1 - e.slippage)
	proceeds := pos.quantity * fillPrice * (1 - e.commission)
	pnl := proceeds - pos.cost

	var pnlPct float64
	if pos.cost > 0 {
		pnlPct = pnl / pos.cost * 100
	}

	trades = append(trades, Trade{
		EntryTime:  pos.entryTime,
		ExitTime:   ts,
		EntryPrice: pos.entryPrice,
		ExitPrice:  fillPrice,
		Quantity:   pos.quantity,
		PnL:        pnl,
		PnLPct:     pnlPct,
		ExitReason: reason,
	})

	return balance + proceeds, trades
}

// buildResult computes aggregate statistics from the closed trades and equity curve.
func (e *Engine) buildResult(balance float64, trades []Trade, equity []float64) *Result {
	res := &Result{
		InitialBalance: e.initialBalance,
		FinalBalance:   balance,
		TotalTrades:    len(trades),
		TotalPnL:       balance - e.initialBalance,
		Trades:         trades,
		EquityCurve:    equity,
	}
	if e.initialBalance > 0 {
		res.TotalPnLPct = res.TotalPnL / e.initialBalance * 100
	}

	var grossWin, grossLoss float64
	for _, t := range trades {
		if t.PnL > 0 {
			res.WinningTrades++
			grossWin += t.PnL
		} else {
			res.LosingTrades++
			grossLoss += -t.PnL
		}
	}
	if res.TotalTrades > 0 {
		res.WinRate = float64(res.WinningTrades) / float64(res.TotalTrades) * 100
	}
	if res.WinningTrades > 0 {
		res.AverageWin = grossWin / float64(res.WinningTrades)
	}
	if res.LosingTrades > 0 {
		res.AverageLoss = grossLoss / float64(res.LosingTrades)
	}
	if grossLoss > 0 {
		res.ProfitFactor = grossWin / grossLoss
	}

	res.MaxDrawdown, res.MaxDrawdownPct = maxDrawdown(equity)
	res.SharpeRatio = sharpeRatio(equity)

	return res
}

// maxDrawdown returns the largest peak-to-trough decline of the equity curve.
func maxDrawdown(equity []float64) (float64, float64) {
	var peak, dd, ddPct float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		d := peak - v
		if d > dd {
			dd = d
			ddPct = d / peak * 100
		}
	}
	return dd, ddPct
}

// sharpeRatio computes the annualized-free Sharpe ratio over per-point
// equity returns. Returns 0 when the curve is too short or flat.
func sharpeRatio(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] <= 0 {
			continue
		}
		returns = append(returns, (equity[i]-equity[i-1])/equity[i-1])
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance)
}

// markToMarket values the portfolio at the current price.
func markToMarket(balance float64, pos *position, price float64) float64 {
	if pos == nil {
		return balance
	}
	return balance + pos.quantity*price
}
