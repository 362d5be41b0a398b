package cli

import (
	"github.com/spf13/cobra"

	"xrpl-amm-lab/internal/app"
)

var (
	backtestPool       string
	backtestFrom       int64
	backtestTo         int64
	backtestLookback   int
	backtestThreshold  float64
	backtestStopLoss   float64
	backtestTakeProfit float64
	backtestBalance    float64
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay stored pool prices through the momentum strategy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Backtest(cmd.Context(), cmd.OutOrStdout(), app.BacktestOptions{
			Pool:           backtestPool,
			FromLedger:     backtestFrom,
			ToLedger:       backtestTo,
			Lookback:       backtestLookback,
			Threshold:      backtestThreshold,
			StopLossPct:    backtestStopLoss,
			TakeProfitPct:  backtestTakeProfit,
			InitialBalance: backtestBalance,
		})
	},
}

func init() {
	backtestCmd.Flags().StringVar(&backtestPool, "pool", "", "Pool account address to backtest")
	backtestCmd.Flags().Int64Var(&backtestFrom, "from", 0, "Start ledger index (inclusive)")
	backtestCmd.Flags().Int64Var(&backtestTo, "to", 0, "End ledger index (inclusive, defaults to latest stored)")
	backtestCmd.Flags().IntVar(&backtestLookback, "lookback", 0, "Momentum window size in points (default 20)")
	backtestCmd.Flags().Float64Var(&backtestThreshold, "threshold", 0, "Momentum threshold as a fraction (default 0.02)")
	backtestCmd.Flags().Float64Var(&backtestStopLoss, "stop-loss", 0, "Stop loss percentage (default 2.0)")
	backtestCmd.Flags().Float64Var(&backtestTakeProfit, "take-profit", 0, "Take profit percentage (default 5.0)")
	backtestCmd.Flags().Float64Var(&backtestBalance, "balance", 0, "Initial balance in XRP (default 10000)")
}
