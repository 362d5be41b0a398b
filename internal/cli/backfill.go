package cli

import (
	"github.com/spf13/cobra"

	"xrpl-amm-lab/internal/app"
)

var backfillOpts app.BackfillOptions

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run one catch-up pass and exit",
	Long: "Without flags, fills detected gaps for every monitored account. " +
		"With --account, --from and --to, collects that explicit ledger range " +
		"under a historical cursor and marks it completed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Backfill(cmd.Context(), backfillOpts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillOpts.Account, "account", "", "account address for an explicit historical range")
	backfillCmd.Flags().Int64Var(&backfillOpts.FromLedger, "from", 0, "first ledger index of the range")
	backfillCmd.Flags().Int64Var(&backfillOpts.ToLedger, "to", 0, "last ledger index of the range")
}
