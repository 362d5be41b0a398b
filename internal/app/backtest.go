package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"xrpl-amm-lab/internal/backtest"
	"xrpl-amm-lab/internal/storage"
	"xrpl-amm-lab/internal/strategy"
)

// BacktestOptions selects the data window and strategy parameters.
type BacktestOptions struct {
	Pool           string
	FromLedger     int64
	ToLedger       int64
	Lookback       int
	Threshold      float64
	StopLossPct    float64
	TakeProfitPct  float64
	InitialBalance float64
}

// Backtest replays a pool's stored snapshot prices through the momentum
// strategy and writes a performance report to w.
func (a *App) Backtest(ctx context.Context, w io.Writer, opts BacktestOptions) error {
	if opts.Pool == "" {
		return errors.New("--pool is required")
	}

	st, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	series, err := a.loadPriceSeries(ctx, st, opts.Pool, opts.FromLedger, opts.ToLedger)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		fmt.Fprintln(w, "no snapshots found for backtest window")
		return nil
	}

	strat, err := strategy.NewMomentumStrategy(strategy.MomentumOptions{
		Lookback:          opts.Lookback,
		MomentumThreshold: opts.Threshold,
		StopLossPct:       opts.StopLossPct,
		TakeProfitPct:     opts.TakeProfitPct,
	})
	if err != nil {
		return err
	}

	engine, err := backtest.NewEngine(backtest.EngineOptions{
		Strategy:       strat,
		InitialBalance: opts.InitialBalance,
		Logger:         a.Logger,
	})
	if err != nil {
		return err
	}

	result, err := engine.Run(ctx, series)
	if err != nil {
		return err
	}

	writeBacktestReport(w, strat.ID(), len(series), result)
	return nil
}

func (a *App) loadPriceSeries(ctx context.Context, st *stores, pool string, from, to int64) ([]strategy.PricePoint, error) {
	if to == 0 {
		latest, err := st.Snapshots.GetLatest(ctx, pool)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		to = latest.LedgerIndex
	}
	if from == 0 {
		from = 1
	}
	if from > to {
		return nil, errors.New("--from must not exceed --to")
	}

	snapshots, err := st.Snapshots.GetByPoolRange(ctx, pool, from, to)
	if err != nil {
		return nil, err
	}

	series := make([]strategy.PricePoint, 0, len(snapshots))
	for _, s := range snapshots {
		series = append(series, strategy.PricePoint{
			TimestampMs: s.Timestamp.UnixMilli(),
			Price:       s.Price.InexactFloat64(),
		})
	}
	return series, nil
}

func writeBacktestReport(w io.Writer, strategyID string, points int, r *backtest.Result) {
	fmt.Fprintf(w, "Strategy:        %s\n", strategyID)
	fmt.Fprintf(w, "Data points:     %d\n", points)
	fmt.Fprintf(w, "Initial balance: %.2f\n", r.InitialBalance)
	fmt.Fprintf(w, "Final balance:   %.2f\n", r.FinalBalance)
	fmt.Fprintf(w, "Total PnL:       %.2f (%.2f%%)\n", r.TotalPnL, r.TotalPnLPct)
	fmt.Fprintf(w, "Trades:          %d (%d won / %d lost, win rate %.1f%%)\n",
		r.TotalTrades, r.WinningTrades, r.LosingTrades, r.WinRate)
	fmt.Fprintf(w, "Max drawdown:    %.2f (%.2f%%)\n", r.MaxDrawdown, r.MaxDrawdownPct)
	fmt.Fprintf(w, "Sharpe ratio:    %.3f\n", r.SharpeRatio)
	if r.TotalTrades > 0 {
		fmt.Fprintf(w, "Average win:     %.2f\n", r.AverageWin)
		fmt.Fprintf(w, "Average loss:    %.2f\n", r.AverageLoss)
		fmt.Fprintf(w, "Profit factor:   %.2f\n", r.ProfitFactor)
	}
}
