// Package grounding cross-checks draft responses against observable
// filesystem state before they are finalized. Unverifiable claims are
// annotated, never silently passed through.
package grounding

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FS is the filesystem collaborator. The engine assumes only this
// contract, never a concrete implementation.
type FS interface {
	// Stat reports whether path exists and whether it is a directory.
	Stat(path string) (exists bool, isDir bool)
	// ReadDir lists the entry names of a directory.
	ReadDir(path string) ([]string, error)
	// ReadFile returns the file contents.
	ReadFile(path string) ([]byte, error)
}

// OSFS implements FS against the real filesystem.
type OSFS struct{}

func (OSFS) Stat(path string) (bool, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return false, false
	}
	return true, info.IsDir()
}

func (OSFS) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Verdict is one verification result for a checkable claim.
type Verdict struct {
	Claim    string
	Verified bool
	Reason   string
}

// DefaultHypotheticalMarkers flags speculative phrasing. What counts as
// hypothetical is deliberately configuration, not engine logic.
var DefaultHypotheticalMarkers = []string{
	`(?i)\b(?:imagine|suppose|hypothetically|pretend)\b`,
	`(?i)\b(?:would|should|could)\s+(?:now\s+)?(?:look like|be|have|contain)\b`,
	`(?i)\byou could\b`,
	`(?i)\bshould now\b`,
}

var (
	fileRef = regexp.MustCompile(`(?:file|open|opened|read|wrote|write|modify|modified|created?)\s+['"]?([^\s'"]+\.\w+)['"]?`)
	dirRef  = regexp.MustCompile(`(?:directory|folder)\s+['"]?([^\s'",.]+)['"]?`)
)

// Grounder verifies claims extracted from draft responses.
type Grounder struct {
	fs      FS
	markers []*regexp.Regexp
}

// New creates a Grounder over fs. Passing no marker patterns selects
// DefaultHypotheticalMarkers; a malformed pattern is skipped.
func New(fs FS, markers []string) *Grounder {
	if len(markers) == 0 {
		markers = DefaultHypotheticalMarkers
	}
	g := &Grounder{fs: fs}
	for _, m := range markers {
		if re, err := regexp.Compile(m); err == nil {
			g.markers = append(g.markers, re)
		}
	}
	return g
}

// Check extracts file, directory, and hypothetical-phrasing claims from
// draft and verifies each against the filesystem, resolving relative
// paths under workingDir. Hypothetical phrasing is reported unverifiable
// rather than failing the check.
func (g *Grounder) Check(draft, workingDir string) []Verdict {
	var verdicts []Verdict

	for _, m := range fileRef.FindAllStringSubmatch(draft, -1) {
		path := m[1]
		resolved := path
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(workingDir, resolved)
		}
		exists, isDir := g.fs.Stat(resolved)
		if exists && !isDir {
			verdicts = append(verdicts, Verdict{Claim: path, Verified: true, Reason: "file exists"})
		} else {
			verdicts = append(verdicts, Verdict{Claim: path, Verified: false, Reason: "file not found"})
		}
	}

	for _, m := range dirRef.FindAllStringSubmatch(draft, -1) {
		path := m[1]
		resolved := path
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(workingDir, resolved)
		}
		exists, isDir := g.fs.Stat(resolved)
		if exists && isDir {
			verdicts = append(verdicts, Verdict{Claim: path, Verified: true, Reason: "directory exists"})
		} else {
			verdicts = append(verdicts, Verdict{Claim: path, Verified: false, Reason: "directory not found"})
		}
	}

	for _, re := range g.markers {
		for _, m := range re.FindAllString(draft, -1) {
			verdicts = append(verdicts, Verdict{
				Claim:    m,
				Verified: false,
				Reason:   "hypothetical phrasing, not verifiable",
			})
		}
	}

	return verdicts
}

// Annotate appends verification warnings for every unverified claim. An
// unannotated draft means every extracted claim checked out.
func Annotate(draft string, verdicts []Verdict) string {
	var unverified []Verdict
	for _, v := range verdicts {
		if !v.Verified {
			unverified = append(unverified, v)
		}
	}
	if len(unverified) == 0 {
		return draft
	}

	var b strings.Builder
	b.WriteString(draft)
	b.WriteString("\n\nUnverified claims:\n")
	for _, v := range unverified {
		b.WriteString("- ")
		b.WriteString(v.Claim)
		b.WriteString(" (")
		b.WriteString(v.Reason)
		b.WriteString(")\n")
	}
	return b.String()
}
