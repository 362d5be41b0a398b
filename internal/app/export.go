package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/storage"
)

// ExportOptions selects what Export renders and where.
type ExportOptions struct {
	Pool       string
	FromLedger int64 // 0 means from the first stored snapshot
	ToLedger   int64 // 0 means up to the latest stored snapshot
	CSVPath    string
	PNGPath    string
	MaxPoints  int
}

// Export renders a pool's snapshot history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Pool == "" {
		return errors.New("--pool is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = a.Config.Export.MaxDataPoints
	}

	st, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	to := opts.ToLedger
	if to == 0 {
		latest, err := st.Snapshots.GetLatest(ctx, opts.Pool)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				a.Logger.Info().Str("pool", opts.Pool).Msg("no snapshots found for export")
				return nil
			}
			return err
		}
		to = latest.LedgerIndex
	}

	from := opts.FromLedger
	if from == 0 {
		from = 1
	}
	if from > to {
		return errors.New("--from must not exceed --to")
	}

	snapshots, err := st.Snapshots.GetByPoolRange(ctx, opts.Pool, from, to)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		a.Logger.Info().Str("pool", opts.Pool).Msg("no snapshots found for export window")
		return nil
	}

	downsampled := downsampleSnapshots(snapshots, opts.MaxPoints)
	a.Logger.Info().
		Int("total", len(snapshots)).
		Int("exported", len(downsampled)).
		Msg("exporting snapshots")

	if opts.CSVPath != "" {
		if err := writeSnapshotsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSnapshotsPNG(opts.PNGPath, opts.Pool, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSnapshots(snapshots []*domain.PoolSnapshot, max int) []*domain.PoolSnapshot {
	if max <= 0 || len(snapshots) <= max {
		return snapshots
	}

	result := make([]*domain.PoolSnapshot, 0, max)
	step := float64(len(snapshots)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(snapshots) {
			idx = len(snapshots) - 1
		}
		result = append(result, snapshots[idx])
	}
	return result
}

func writeSnapshotsCSV(path string, snapshots []*domain.PoolSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"ledger_index", "timestamp", "asset1_currency", "asset1_amount",
		"asset2_currency", "asset2_amount", "price", "tvl_xrp",
		"k_constant", "trading_fee_bps", "tx_hash", "transaction_type",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, s := range snapshots {
		record := []string{
			formatLedger(s.LedgerIndex),
			s.Timestamp.UTC().Format(time.RFC3339),
			s.Asset1.Currency,
			s.Asset1.Amount.String(),
			s.Asset2.Currency,
			s.Asset2.Amount.String(),
			s.Price.String(),
			s.TVLXRP.String(),
			s.KConstant.String(),
			formatLedger(int64(s.TradingFeeBps)),
			s.TxHash,
			s.TransactionType,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSnapshotsPNG(path, pool string, snapshots []*domain.PoolSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(snapshots))
	price := make([]float64, len(snapshots))
	tvl := make([]float64, len(snapshots))

	for i, s := range snapshots {
		x[i] = s.Timestamp
		price[i] = s.Price.InexactFloat64()
		tvl[i] = s.TVLXRP.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.6f")
	}
	graph := chart.Chart{
		Title:  pool,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (asset2/asset1)",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name: "TVL (XRP)",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: price,
			},
			chart.TimeSeries{
				Name:    "TVL",
				XValues: x,
				YValues: tvl,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatLedger(v int64) string {
	return strconv.FormatInt(v, 10)
}
