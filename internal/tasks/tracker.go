// Package tasks derives an explicit checklist from a request and tracks
// per-item completion. The tracker is the gate that keeps a final
// response from claiming unfinished work is complete.
package tasks

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Status is a checklist item's completion state.
type Status string

// Item statuses.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Item is one step of the derived checklist.
type Item struct {
	ID          int
	Description string
	Status      Status
	Evidence    string
	// AckPartial marks a Failed item the response may acknowledge as an
	// explicit partial result instead of blocking the success gate.
	AckPartial bool
}

// Tracker holds one ordered checklist per request. It is discarded when
// the request's flow run completes; the context stage may summarize it
// first.
type Tracker struct {
	mu    sync.Mutex
	items []Item
}

var (
	numberedStep = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+(.+)$`)
	bulletStep   = regexp.MustCompile(`(?m)^\s*[-*•]\s+(.+)$`)
	conjunction  = regexp.MustCompile(`(?i)\s*(?:,\s*then\s+|\bthen\b|\band then\b|;\s*)\s*`)
)

// Derive decomposes a request into checklist items, best effort. Numbered
// lists win over bullets, bullets over conjunction splitting; a request
// with no recognizable structure becomes a single item.
func Derive(request string) *Tracker {
	var steps []string

	for _, m := range numberedStep.FindAllStringSubmatch(request, -1) {
		steps = append(steps, strings.TrimSpace(m[1]))
	}
	if len(steps) == 0 {
		for _, m := range bulletStep.FindAllStringSubmatch(request, -1) {
			steps = append(steps, strings.TrimSpace(m[1]))
		}
	}
	if len(steps) == 0 {
		for _, part := range conjunction.Split(request, -1) {
			part = strings.TrimSpace(part)
			if len(part) > 3 {
				steps = append(steps, part)
			}
		}
	}
	if len(steps) == 0 {
		steps = []string{strings.TrimSpace(request)}
	}

	t := &Tracker{items: make([]Item, 0, len(steps))}
	for i, step := range steps {
		t.items = append(t.items, Item{ID: i + 1, Description: step, Status: StatusPending})
	}
	return t
}

// Items returns a copy of the checklist in order.
func (t *Tracker) Items() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Item, len(t.items))
	copy(out, t.items)
	return out
}

// Descriptions returns the item descriptions in order.
func (t *Tracker) Descriptions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.items))
	for i, item := range t.items {
		out[i] = item.Description
	}
	return out
}

// Mark sets an item's status and evidence.
func (t *Tracker) Mark(id int, status Status, evidence string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.items {
		if t.items[i].ID == id {
			t.items[i].Status = status
			t.items[i].Evidence = evidence
			return nil
		}
	}
	return fmt.Errorf("no checklist item with id %d", id)
}

// AcknowledgePartial flags a Failed item as an accepted partial result.
func (t *Tracker) AcknowledgePartial(id int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.items {
		if t.items[i].ID == id {
			if t.items[i].Status != StatusFailed {
				return fmt.Errorf("item %d is %s, only failed items can be acknowledged", id, t.items[i].Status)
			}
			t.items[i].AckPartial = true
			return nil
		}
	}
	return fmt.Errorf("no checklist item with id %d", id)
}

// AllDone reports whether every item completed successfully.
func (t *Tracker) AllDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, item := range t.items {
		if item.Status != StatusDone {
			return false
		}
	}
	return len(t.items) > 0
}

// AcknowledgedPartial reports whether at least one Failed item carries
// the acknowledged-partial flag.
func (t *Tracker) AcknowledgedPartial() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, item := range t.items {
		if item.Status == StatusFailed && item.AckPartial {
			return true
		}
	}
	return false
}

// CanReportSuccess is the response gate: a run may claim overall success
// only when everything is done, or when what failed was explicitly
// acknowledged as partial.
func (t *Tracker) CanReportSuccess() bool {
	return t.AllDone() || t.AcknowledgedPartial()
}

// CompletionPercent returns how much of the checklist is done, 0-100.
func (t *Tracker) CompletionPercent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.items) == 0 {
		return 0
	}
	done := 0
	for _, item := range t.items {
		if item.Status == StatusDone {
			done++
		}
	}
	return done * 100 / len(t.items)
}

// Summary renders a one-line digest suitable for persistence.
func (t *Tracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	done, failed := 0, 0
	for _, item := range t.items {
		switch item.Status {
		case StatusDone:
			done++
		case StatusFailed:
			failed++
		}
	}
	return fmt.Sprintf("%d/%d steps done, %d failed", done, len(t.items), failed)
}
