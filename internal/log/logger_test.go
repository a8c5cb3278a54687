package log

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndReadAll(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	events := []LogEvent{
		{Event: EventRequestStarted, RequestID: "abc12345"},
		{Event: EventCommandDenied, RequestID: "abc12345", Command: "shutdown", Reason: "matches denied pattern shutdown"},
		{Event: EventRequestFailed, RequestID: "abc12345", Error: "command denied", DurationMs: 12},
	}
	for _, ev := range events {
		if err := logger.Append(ev); err != nil {
			t.Fatalf("Append(%s) failed: %v", ev.Event, err)
		}
	}

	got, err := logger.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("read %d events, want %d", len(got), len(events))
	}
	for i, ev := range events {
		if got[i].Event != ev.Event {
			t.Errorf("event %d = %q, want %q", i, got[i].Event, ev.Event)
		}
		if got[i].Time.IsZero() {
			t.Errorf("event %d has no timestamp", i)
		}
	}
	if got[1].Command != "shutdown" {
		t.Errorf("denied command = %q, want shutdown", got[1].Command)
	}
}

func TestAppendDoesNotTruncate(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if err := logger.Append(LogEvent{Event: EventRequestStarted}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// A second Logger over the same directory appends to the same file.
	reopened, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if err := reopened.Append(LogEvent{Event: EventRequestComplete}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := reopened.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d events, want 2", len(got))
	}
}

func TestReadAllMissingFile(t *testing.T) {
	logger, err := NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	got, err := logger.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("read %d events from a missing file, want 0", len(got))
	}
}

func TestNewLoggerCreatesDataDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewLogger(dir); err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".skipper")); err != nil {
		t.Errorf("data directory missing: %v", err)
	}
}
