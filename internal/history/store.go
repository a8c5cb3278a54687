package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// PersistenceError reports a failed durability write. It is recoverable:
// the engine logs the gap and continues without that entry persisted.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store provides SQLite-backed persistence for context records. It is a
// process-wide singleton with explicit init/teardown: Load on startup,
// Close on shutdown. Appends from concurrent requests serialize here, so
// record ids reflect total append order.
type Store struct {
	db *sql.DB

	mu     sync.Mutex
	lastID int64
	loaded bool
}

// NewStore opens the SQLite database at dbPath and creates tables if they
// don't exist.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: concurrent appenders serialize at the pool instead
	// of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL DEFAULT 'record',
		request TEXT NOT NULL,
		task_summary TEXT NOT NULL,
		result_summary TEXT NOT NULL,
		span_start INTEGER NOT NULL DEFAULT 0,
		span_end INTEGER NOT NULL DEFAULT 0,
		superseded INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Load replays the log sequentially, validating that ids are strictly
// ascending, and primes the monotonic id watermark. Called once at
// process start; calling it again is a no-op.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	rows, err := s.db.Query(`SELECT id FROM records ORDER BY id ASC`)
	if err != nil {
		return &PersistenceError{Op: "load", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var prev int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return &PersistenceError{Op: "load", Err: err}
		}
		if id <= prev {
			return &PersistenceError{Op: "load", Err: fmt.Errorf("non-monotonic record id %d after %d", id, prev)}
		}
		prev = id
	}
	if err := rows.Err(); err != nil {
		return &PersistenceError{Op: "load", Err: err}
	}

	s.lastID = prev
	s.loaded = true
	return nil
}

// Append writes one record and returns its id, durable before returning.
// If rec.ID is set, the append is a retry: an existing record with that id
// is left untouched and its id returned, so at-least-once appends never
// duplicate.
func (s *Store) Append(rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Kind == "" {
		rec.Kind = KindRecord
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	if rec.ID > 0 {
		res, err := s.db.Exec(
			`INSERT OR IGNORE INTO records (id, kind, request, task_summary, result_summary, span_start, span_end, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Kind, rec.Request, rec.TaskSummary, rec.ResultSummary, rec.SpanStart, rec.SpanEnd, rec.Timestamp,
		)
		if err != nil {
			return 0, &PersistenceError{Op: "append", Err: err}
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Retry of an id already durable; reject the duplicate.
			return rec.ID, nil
		}
		if rec.ID > s.lastID {
			s.lastID = rec.ID
		}
		return rec.ID, nil
	}

	res, err := s.db.Exec(
		`INSERT INTO records (kind, request, task_summary, result_summary, span_start, span_end, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Kind, rec.Request, rec.TaskSummary, rec.ResultSummary, rec.SpanStart, rec.SpanEnd, rec.Timestamp,
	)
	if err != nil {
		return 0, &PersistenceError{Op: "append", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &PersistenceError{Op: "append", Err: err}
	}
	s.lastID = id
	return id, nil
}

// ReadRecent returns the last n live entries (records plus compaction
// summaries) in append order, most recent last.
func (s *Store) ReadRecent(n int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, request, task_summary, result_summary, span_start, span_end, timestamp
		 FROM (
			SELECT * FROM records WHERE superseded = 0 ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		n,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "read", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Request, &rec.TaskSummary, &rec.ResultSummary, &rec.SpanStart, &rec.SpanEnd, &rec.Timestamp); err != nil {
			return nil, &PersistenceError{Op: "read", Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "read", Err: err}
	}

	return records, nil
}

// LiveRecordCount returns how many uncompacted plain records remain.
func (s *Store) LiveRecordCount() (int, error) {
	row := s.db.QueryRow(`SELECT COUNT(*) FROM records WHERE superseded = 0 AND kind = ?`, KindRecord)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, &PersistenceError{Op: "count", Err: err}
	}
	return n, nil
}

// Compact replaces the contiguous run of oldest live records, leaving the
// newest policy.KeepRecent untouched, with one summary entry produced by
// summarize. Superseded records stay in the table for audit but drop out
// of reads. Invoking Compact again over an already-compacted range is a
// no-op: the second pass sees nothing old enough to replace.
func (s *Store) Compact(policy Policy, summarize Summarizer) (CompactionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := policy.KeepRecent
	if keep < 0 {
		keep = 0
	}

	rows, err := s.db.Query(
		`SELECT id, kind, request, task_summary, result_summary, span_start, span_end, timestamp
		 FROM records WHERE superseded = 0 AND kind = ? ORDER BY id ASC`,
		KindRecord,
	)
	if err != nil {
		return CompactionSummary{}, &PersistenceError{Op: "compact", Err: err}
	}
	var live []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Request, &rec.TaskSummary, &rec.ResultSummary, &rec.SpanStart, &rec.SpanEnd, &rec.Timestamp); err != nil {
			_ = rows.Close()
			return CompactionSummary{}, &PersistenceError{Op: "compact", Err: err}
		}
		live = append(live, rec)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return CompactionSummary{}, &PersistenceError{Op: "compact", Err: err}
	}
	_ = rows.Close()

	if len(live) <= keep {
		return CompactionSummary{}, nil
	}
	run := live[:len(live)-keep]

	summary := summarize(run)
	first, last := run[0].ID, run[len(run)-1].ID

	tx, err := s.db.Begin()
	if err != nil {
		return CompactionSummary{}, &PersistenceError{Op: "compact", Err: err}
	}
	res, err := tx.Exec(
		`INSERT INTO records (kind, request, task_summary, result_summary, span_start, span_end, timestamp)
		 VALUES (?, '', '', ?, ?, ?, ?)`,
		KindSummary, summary, first, last, time.Now().UTC(),
	)
	if err != nil {
		_ = tx.Rollback()
		return CompactionSummary{}, &PersistenceError{Op: "compact", Err: err}
	}
	summaryID, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return CompactionSummary{}, &PersistenceError{Op: "compact", Err: err}
	}
	if _, err := tx.Exec(
		`UPDATE records SET superseded = 1 WHERE kind = ? AND superseded = 0 AND id BETWEEN ? AND ?`,
		KindRecord, first, last,
	); err != nil {
		_ = tx.Rollback()
		return CompactionSummary{}, &PersistenceError{Op: "compact", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return CompactionSummary{}, &PersistenceError{Op: "compact", Err: err}
	}

	s.lastID = summaryID
	return CompactionSummary{
		ID:        summaryID,
		SpanStart: first,
		SpanEnd:   last,
		Replaced:  len(run),
		Summary:   summary,
	}, nil
}

// Clear drops all records and messages and resets the id sequence. Used
// by the explicit reset command only.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return &PersistenceError{Op: "clear", Err: err}
	}
	for _, stmt := range []string{
		`DELETE FROM records`,
		`DELETE FROM messages`,
		`DELETE FROM sqlite_sequence WHERE name IN ('records', 'messages')`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()
			return &PersistenceError{Op: "clear", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "clear", Err: err}
	}

	s.lastID = 0
	return nil
}

// AddMessage appends one conversation message.
func (s *Store) AddMessage(role, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (role, content, timestamp) VALUES (?, ?, ?)`,
		role, content, time.Now().UTC(),
	)
	if err != nil {
		return &PersistenceError{Op: "message", Err: err}
	}
	return nil
}

// RecentMessages returns the last n messages in chronological order.
func (s *Store) RecentMessages(n int) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, role, content, timestamp FROM (
			SELECT * FROM messages ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		n,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "read", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, &PersistenceError{Op: "read", Err: err}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "read", Err: err}
	}

	return messages, nil
}

// DefaultSummarizer is the fallback used when no summarizing collaborator
// is configured. It keeps the request texts of the compacted run, newest
// last, truncated to a sane bound.
func DefaultSummarizer(records []Record) string {
	const maxLen = 2000
	out := fmt.Sprintf("compacted %d earlier requests:", len(records))
	for _, rec := range records {
		line := "\n- " + rec.Request
		if len(out)+len(line) > maxLen {
			out += "\n- ..."
			break
		}
		out += line
	}
	return out
}
