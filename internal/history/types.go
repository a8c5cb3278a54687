// Package history provides the SQLite-backed persistent context store:
// an append-ordered log of request records surviving process restarts,
// with keep-recent compaction.
package history

import "time"

// Record kinds.
const (
	KindRecord  = "record"
	KindSummary = "summary"
)

// Record is one immutable, timestamped entry in the store. Ids are
// strictly increasing in append order. Records are never mutated after
// append; compaction supersedes them with a summary entry.
type Record struct {
	ID            int64
	Kind          string // record or summary
	Request       string
	TaskSummary   string
	ResultSummary string
	SpanStart     int64 // summaries: first superseded record id
	SpanEnd       int64 // summaries: last superseded record id
	Timestamp     time.Time
}

// Message is one conversation message persisted alongside records.
type Message struct {
	ID        int64
	Role      string // user, assistant
	Content   string
	Timestamp time.Time
}

// Policy controls when and how far compaction runs.
type Policy struct {
	// MaxRecords triggers compaction once the live record count exceeds
	// it. Zero disables automatic triggering.
	MaxRecords int
	// KeepRecent is how many of the newest records stay uncompacted.
	KeepRecent int
}

// Summarizer condenses a run of records into one summary string. The
// engine guarantees ordering and non-duplication; what the summary keeps
// is up to this collaborator.
type Summarizer func(records []Record) string

// CompactionSummary describes the outcome of one compaction pass. A
// zero-value Replaced count means the pass was a no-op.
type CompactionSummary struct {
	ID        int64
	SpanStart int64
	SpanEnd   int64
	Replaced  int
	Summary   string
}
