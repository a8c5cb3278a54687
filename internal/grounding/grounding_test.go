package grounding

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func findVerdict(verdicts []Verdict, claim string) (Verdict, bool) {
	for _, v := range verdicts {
		if v.Claim == claim {
			return v, true
		}
	}
	return Verdict{}, false
}

func TestCheckVerifiesExistingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "hello")

	g := New(OSFS{}, nil)
	verdicts := g.Check("I read README.md and it looks fine.", dir)

	v, ok := findVerdict(verdicts, "README.md")
	if !ok {
		t.Fatalf("no verdict for README.md in %v", verdicts)
	}
	if !v.Verified {
		t.Errorf("README.md verdict = %+v, want verified", v)
	}
}

func TestCheckFlagsMissingFile(t *testing.T) {
	g := New(OSFS{}, nil)
	verdicts := g.Check("I created output.txt in the project.", t.TempDir())

	v, ok := findVerdict(verdicts, "output.txt")
	if !ok {
		t.Fatalf("no verdict for output.txt in %v", verdicts)
	}
	if v.Verified {
		t.Errorf("output.txt verdict = %+v, want unverified", v)
	}
	if v.Reason != "file not found" {
		t.Errorf("reason = %q, want file not found", v.Reason)
	}
}

func TestCheckVerifiesDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "docs"), 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	g := New(OSFS{}, nil)
	verdicts := g.Check("The docs live in the directory docs under the root.", dir)
	v, ok := findVerdict(verdicts, "docs")
	if !ok {
		t.Fatalf("no verdict for docs in %v", verdicts)
	}
	if !v.Verified {
		t.Errorf("docs verdict = %+v, want verified", v)
	}

	verdicts = g.Check("Check the folder missing for details.", dir)
	v, ok = findVerdict(verdicts, "missing")
	if !ok {
		t.Fatalf("no verdict for missing in %v", verdicts)
	}
	if v.Verified {
		t.Errorf("missing verdict = %+v, want unverified", v)
	}
}

func TestFileClaimRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "notes.d"), 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	g := New(OSFS{}, nil)
	verdicts := g.Check("I wrote notes.d with the summary.", dir)
	v, ok := findVerdict(verdicts, "notes.d")
	if !ok {
		t.Fatalf("no verdict for notes.d in %v", verdicts)
	}
	if v.Verified {
		t.Errorf("directory passed a file claim: %+v", v)
	}
}

func TestCheckFlagsHypotheticalPhrasing(t *testing.T) {
	g := New(OSFS{}, nil)
	verdicts := g.Check("Imagine the config would look like a YAML document.", t.TempDir())

	found := 0
	for _, v := range verdicts {
		if v.Reason == "hypothetical phrasing, not verifiable" {
			found++
			if v.Verified {
				t.Errorf("hypothetical verdict marked verified: %+v", v)
			}
		}
	}
	if found == 0 {
		t.Errorf("no hypothetical verdicts in %v", verdicts)
	}
}

func TestCustomMarkersReplaceDefaults(t *testing.T) {
	g := New(OSFS{}, []string{`(?i)\ballegedly\b`})

	verdicts := g.Check("Imagine this works.", t.TempDir())
	if _, ok := findVerdict(verdicts, "Imagine"); ok {
		t.Error("default marker still active with custom set")
	}

	verdicts = g.Check("The job allegedly finished.", t.TempDir())
	if _, ok := findVerdict(verdicts, "allegedly"); !ok {
		t.Errorf("custom marker not applied: %v", verdicts)
	}
}

func TestMalformedMarkerSkipped(t *testing.T) {
	g := New(OSFS{}, []string{`(unclosed`, `(?i)\bmaybe\b`})
	verdicts := g.Check("This maybe works.", t.TempDir())
	if _, ok := findVerdict(verdicts, "maybe"); !ok {
		t.Errorf("valid marker lost alongside the malformed one: %v", verdicts)
	}
}

func TestAnnotateLeavesCleanDraftAlone(t *testing.T) {
	draft := "Everything checked out."
	got := Annotate(draft, []Verdict{{Claim: "a.txt", Verified: true}})
	if got != draft {
		t.Errorf("Annotate changed a clean draft: %q", got)
	}
}

func TestAnnotateAppendsUnverifiedClaims(t *testing.T) {
	draft := "I created result.txt."
	got := Annotate(draft, []Verdict{
		{Claim: "result.txt", Verified: false, Reason: "file not found"},
		{Claim: "log.txt", Verified: true, Reason: "file exists"},
	})
	if !strings.HasPrefix(got, draft) {
		t.Errorf("annotated draft no longer starts with the original: %q", got)
	}
	if !strings.Contains(got, "Unverified claims:") {
		t.Errorf("annotation header missing: %q", got)
	}
	if !strings.Contains(got, "result.txt (file not found)") {
		t.Errorf("unverified claim missing: %q", got)
	}
	if strings.Contains(got, "log.txt") {
		t.Errorf("verified claim listed as unverified: %q", got)
	}
}
