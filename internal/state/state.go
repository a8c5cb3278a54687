// Package state defines the shared per-request record threaded through
// every pipeline stage. One State instance is owned by exactly one flow
// run; concurrent requests each get their own.
package state

import (
	"fmt"
	"time"
)

// Section identifies one of the four named sections of the shared state.
type Section string

// Section name constants.
const (
	SectionRequest Section = "request"
	SectionTask    Section = "task"
	SectionContext Section = "context"
	SectionResult  Section = "result"
)

// TaskType classifies a request.
type TaskType string

// Task type constants.
const (
	TaskShell      TaskType = "shell"
	TaskCoding     TaskType = "coding"
	TaskIntegrated TaskType = "integrated"
)

// AccessError reports a stage reading a section before any earlier stage
// populated it. This is a programming error, fatal to the run.
type AccessError struct {
	Stage   string
	Section Section
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("stage %s read section %q before it was populated", e.Stage, e.Section)
}

// Intent is the structured interpretation of a raw request.
type Intent struct {
	Command    string
	Parameters map[string]string
	Confidence float64
}

// RequestSection holds the original input and its parsed intent.
type RequestSection struct {
	Raw        string
	ReceivedAt time.Time
	Intent     Intent
}

// TaskSection holds the classification and the derived checklist.
type TaskSection struct {
	Type      TaskType
	Tools     []string
	Checklist []string // item descriptions, mirrored from the tracker
}

// HistoryEntry is one recent-history record surfaced into the context
// section. It is a read-only projection of a persisted record.
type HistoryEntry struct {
	ID        int64
	Request   string
	Summary   string
	Timestamp time.Time
}

// ContextSection holds the environment the stages operate in.
type ContextSection struct {
	WorkingDir string
	Env        map[string]string
	SessionIDs []string // opaque handles; sessions are owned by the controller
	History    []HistoryEntry
}

// CommandOutput records one executed command and what it produced.
type CommandOutput struct {
	Command  string
	Output   string
	ExitCode int
}

// GroundingNote is one verification verdict attached to the result.
type GroundingNote struct {
	Claim    string
	Verified bool
	Reason   string
}

// ResultSection accumulates what the run produced.
type ResultSection struct {
	Response       string
	CommandOutputs []CommandOutput
	FileChanges    []string
	Verdicts       []GroundingNote
	Degraded       bool
	Err            string
}

// State is the mutable record passed through a flow run. All four sections
// exist from construction; stages may extend or replace section contents
// but never remove a section. Reads must be gated through Require so that
// reading an unpopulated section surfaces an AccessError instead of
// silently consuming zero values.
type State struct {
	Request RequestSection
	Task    TaskSection
	Context ContextSection
	Result  ResultSection

	populated map[Section]bool
}

// New constructs a State with all four sections present and empty.
// The request section is populated with the raw input immediately, since
// the initial request is what seeds the run.
func New(raw string) *State {
	s := &State{
		Context: ContextSection{
			Env: map[string]string{},
		},
		populated: map[Section]bool{},
	}
	s.Request.Raw = raw
	s.Request.ReceivedAt = time.Now().UTC()
	s.MarkPopulated(SectionRequest)
	return s
}

// MarkPopulated records that a section now carries meaningful data.
func (s *State) MarkPopulated(sec Section) {
	s.populated[sec] = true
}

// Populated reports whether a section has been populated.
func (s *State) Populated(sec Section) bool {
	return s.populated[sec]
}

// Require returns an AccessError if any of the named sections has not yet
// been populated. Stages call this from their prep phase before reading.
func (s *State) Require(stage string, sections ...Section) error {
	for _, sec := range sections {
		if !s.populated[sec] {
			return &AccessError{Stage: stage, Section: sec}
		}
	}
	return nil
}

// Sections returns the four section names in their canonical order. Used
// by the flow engine's post-stage invariant check.
func Sections() []Section {
	return []Section{SectionRequest, SectionTask, SectionContext, SectionResult}
}
