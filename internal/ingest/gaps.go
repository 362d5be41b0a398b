package ingest

import (
	"context"
	"errors"
	"fmt"

	"xrpl-amm-lab/internal/domain"
	"xrpl-amm-lab/internal/storage"
)

// LedgersPerDay approximates validated ledger cadence (one every ~4s).
const LedgersPerDay = 21600

// InSyncThreshold is the largest cursor lag, in ledgers, still treated
// as up to date. Roughly seven minutes of ledger time.
const InSyncThreshold = 100

// GapState classifies a target's collection position.
type GapState string

const (
	// GapNeverCollected means no cursor row exists for the target.
	GapNeverCollected GapState = "never_collected"

	// GapInSync means the cursor is within InSyncThreshold of the tip.
	GapInSync GapState = "in_sync"

	// GapLagging means the cursor trails the tip far enough to backfill.
	GapLagging GapState = "lagging"
)

// Gap describes the ledger range a target needs backfilled. From and To
// are inclusive and only meaningful when State is not GapInSync.
type Gap struct {
	Account string
	State   GapState
	From    int64
	To      int64
}

// Ledgers is the gap width, zero when in sync.
func (g Gap) Ledgers() int64 {
	if g.State == GapInSync {
		return 0
	}
	return g.To - g.From + 1
}

// GapDetector decides what ledger range, if any, a target needs
// backfilled, bounded by a maximum lookback window.
type GapDetector struct {
	cursors         storage.CursorStore
	maxLookbackDays int64
}

// NewGapDetector creates a detector. maxLookbackDays bounds how far
// behind the tip a backfill may start.
func NewGapDetector(cursors storage.CursorStore, maxLookbackDays int64) *GapDetector {
	if maxLookbackDays <= 0 {
		maxLookbackDays = 1
	}
	return &GapDetector{cursors: cursors, maxLookbackDays: maxLookbackDays}
}

// Detect computes the gap for one account against the current validated
// ledger. A never-collected account backfills the full lookback window;
// a lagging one resumes from its cursor, clamped to the same window.
func (d *GapDetector) Detect(ctx context.Context, account string, currentLedger int64) (Gap, error) {
	if currentLedger <= 0 {
		return Gap{}, fmt.Errorf("current ledger %d out of range", currentLedger)
	}

	oldest := currentLedger - d.maxLookbackDays*LedgersPerDay + 1
	if oldest < 1 {
		oldest = 1
	}

	cursor, err := d.cursors.Get(ctx, domain.CollectionRealtime, account)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Gap{Account: account, State: GapNeverCollected, From: oldest, To: currentLedger}, nil
		}
		return Gap{}, fmt.Errorf("get cursor for %s: %w", account, err)
	}

	if currentLedger-cursor.LastLedger <= InSyncThreshold {
		return Gap{Account: account, State: GapInSync}, nil
	}

	from := cursor.LastLedger + 1
	if from < oldest {
		from = oldest
	}
	return Gap{Account: account, State: GapLagging, From: from, To: currentLedger}, nil
}
