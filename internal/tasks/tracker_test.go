package tasks

import (
	"testing"
)

func descriptions(t *testing.T, tr *Tracker) []string {
	t.Helper()
	return tr.Descriptions()
}

func TestDeriveNumberedList(t *testing.T) {
	tr := Derive("please do the following:\n1. create the directory\n2) copy the files\n3. run the tests")
	got := descriptions(t, tr)
	want := []string{"create the directory", "copy the files", "run the tests"}
	if len(got) != len(want) {
		t.Fatalf("derived %d items %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDeriveBulletList(t *testing.T) {
	tr := Derive("- check the config\n* restart the service")
	got := descriptions(t, tr)
	if len(got) != 2 {
		t.Fatalf("derived %v, want 2 items", got)
	}
	if got[0] != "check the config" || got[1] != "restart the service" {
		t.Errorf("items = %v", got)
	}
}

func TestDeriveConjunctionSplit(t *testing.T) {
	tr := Derive("build the project then run the tests; publish the results")
	got := descriptions(t, tr)
	if len(got) != 3 {
		t.Fatalf("derived %v, want 3 items", got)
	}
	if got[0] != "build the project" {
		t.Errorf("first item = %q", got[0])
	}
}

func TestDeriveFallbackSingleItem(t *testing.T) {
	tr := Derive("list files in .")
	got := descriptions(t, tr)
	if len(got) != 1 {
		t.Fatalf("derived %v, want 1 item", got)
	}
	if got[0] != "list files in ." {
		t.Errorf("item = %q, want the raw request", got[0])
	}
	items := tr.Items()
	if items[0].ID != 1 || items[0].Status != StatusPending {
		t.Errorf("item = %+v, want id 1 pending", items[0])
	}
}

func TestMarkAndEvidence(t *testing.T) {
	tr := Derive("1. step one\n2. step two")
	if err := tr.Mark(1, StatusDone, "ran: ls"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	items := tr.Items()
	if items[0].Status != StatusDone || items[0].Evidence != "ran: ls" {
		t.Errorf("item 1 = %+v", items[0])
	}
	if items[1].Status != StatusPending {
		t.Errorf("item 2 status = %q, want pending", items[1].Status)
	}
	if err := tr.Mark(99, StatusDone, ""); err == nil {
		t.Error("Mark accepted an unknown id")
	}
}

func TestSuccessGateRequiresAllDone(t *testing.T) {
	tr := Derive("1. a\n2. b")
	if tr.CanReportSuccess() {
		t.Error("gate open with pending items")
	}
	_ = tr.Mark(1, StatusDone, "")
	if tr.CanReportSuccess() {
		t.Error("gate open with one item pending")
	}
	_ = tr.Mark(2, StatusDone, "")
	if !tr.CanReportSuccess() {
		t.Error("gate closed with everything done")
	}
	if !tr.AllDone() {
		t.Error("AllDone false with everything done")
	}
}

func TestAcknowledgedPartialOpensGate(t *testing.T) {
	tr := Derive("1. a\n2. b")
	_ = tr.Mark(1, StatusDone, "")
	_ = tr.Mark(2, StatusFailed, "command denied")

	if tr.CanReportSuccess() {
		t.Error("gate open with an unacknowledged failure")
	}
	if err := tr.AcknowledgePartial(2); err != nil {
		t.Fatalf("AcknowledgePartial failed: %v", err)
	}
	if !tr.AcknowledgedPartial() {
		t.Error("AcknowledgedPartial false after acknowledgement")
	}
	if !tr.CanReportSuccess() {
		t.Error("gate closed after the failure was acknowledged")
	}
}

func TestAcknowledgePartialOnlyFailedItems(t *testing.T) {
	tr := Derive("1. a")
	if err := tr.AcknowledgePartial(1); err == nil {
		t.Error("acknowledged a pending item")
	}
	_ = tr.Mark(1, StatusDone, "")
	if err := tr.AcknowledgePartial(1); err == nil {
		t.Error("acknowledged a done item")
	}
}

func TestCompletionPercent(t *testing.T) {
	tr := Derive("1. a\n2. b\n3. c\n4. d")
	if p := tr.CompletionPercent(); p != 0 {
		t.Errorf("percent = %d, want 0", p)
	}
	_ = tr.Mark(1, StatusDone, "")
	_ = tr.Mark(2, StatusDone, "")
	if p := tr.CompletionPercent(); p != 50 {
		t.Errorf("percent = %d, want 50", p)
	}
}

func TestSummary(t *testing.T) {
	tr := Derive("1. a\n2. b\n3. c")
	_ = tr.Mark(1, StatusDone, "")
	_ = tr.Mark(2, StatusFailed, "")
	if got := tr.Summary(); got != "1/3 steps done, 1 failed" {
		t.Errorf("Summary = %q", got)
	}
}
