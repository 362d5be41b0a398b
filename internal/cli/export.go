package cli

import (
	"github.com/spf13/cobra"

	"xrpl-amm-lab/internal/app"
)

var (
	exportPool      string
	exportFrom      int64
	exportTo        int64
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export pool snapshot history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), app.ExportOptions{
			Pool:       exportPool,
			FromLedger: exportFrom,
			ToLedger:   exportTo,
			PNGPath:    exportPNGPath,
			CSVPath:    exportCSVPath,
			MaxPoints:  exportMaxPoints,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPool, "pool", "", "Pool account address to export")
	exportCmd.Flags().Int64Var(&exportFrom, "from", 0, "Start ledger index (inclusive, defaults to first stored)")
	exportCmd.Flags().Int64Var(&exportTo, "to", 0, "End ledger index (inclusive, defaults to latest stored)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
