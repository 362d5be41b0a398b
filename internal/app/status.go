package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// Status writes the collection cursor table and per-pool snapshot counts
// to w.
func (a *App) Status(ctx context.Context, w io.Writer) error {
	st, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	cursors, err := st.Cursors.List(ctx)
	if err != nil {
		return err
	}

	if len(cursors) == 0 {
		fmt.Fprintln(w, "no collection cursors yet")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tTARGET\tLAST LEDGER\tSTATUS\tRECORDS\tLAST RUN")
		for _, c := range cursors {
			lastRun := "-"
			if !c.LastRun.IsZero() {
				lastRun = c.LastRun.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n",
				c.CollectionType, c.Target, c.LastLedger, c.Status, c.RecordsCollected, lastRun)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	pools := a.Config.PoolAccounts()
	if len(pools) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POOL\tSNAPSHOTS\tLATEST LEDGER")
	for _, pool := range pools {
		count, err := st.Snapshots.CountByPool(ctx, pool)
		if err != nil {
			return fmt.Errorf("count snapshots for %s: %w", pool, err)
		}
		latest := "-"
		if snap, err := st.Snapshots.GetLatest(ctx, pool); err == nil {
			latest = fmt.Sprintf("%d", snap.LedgerIndex)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", pool, count, latest)
	}
	return tw.Flush()
}
