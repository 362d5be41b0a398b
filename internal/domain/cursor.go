package domain

import "time"

// CollectionType distinguishes cursor rows by the process that owns them.
// Realtime collection and gap backfill share the "realtime" cursor so the
// subscriber resumes from wherever the backfill engine advanced it.
type CollectionType string

const (
	CollectionRealtime   CollectionType = "realtime"
	CollectionHistorical CollectionType = "historical"
)

// CursorStatus tracks the lifecycle of a collection target.
type CursorStatus string

const (
	StatusPending   CursorStatus = "pending"
	StatusActive    CursorStatus = "active"
	StatusStopped   CursorStatus = "stopped"
	StatusCompleted CursorStatus = "completed"
	StatusFailed    CursorStatus = "failed"
)

// Cursor records collection progress for one (collection type, target)
// pair. LastLedger is monotonically non-decreasing under normal operation;
// only an explicit reset may move it backwards. Rows are created on first
// successful processing and never deleted.
type Cursor struct {
	CollectionType   CollectionType
	Target           string
	LastLedger       int64
	LastRun          time.Time
	Status           CursorStatus
	RecordsCollected int64
}
