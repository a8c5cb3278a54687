// contextnode.go implements the stage that persists the request to the
// context store and loads the recent-history window.
package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/skipper-dev/skipper/internal/flow"
	"github.com/skipper-dev/skipper/internal/history"
	"github.com/skipper-dev/skipper/internal/log"
	"github.com/skipper-dev/skipper/internal/state"
)

type contextManager struct {
	agent *Agent
	run   *run
}

func (n *contextManager) Name() string { return stageContext }

type contextPrep struct {
	raw           string
	taskSummary   string
	resultSummary string
}

type contextResult struct {
	recordID int64
	history  []state.HistoryEntry
	gap      string // append failure, logged and carried on
}

func (n *contextManager) Prep(s *state.State) (any, error) {
	if err := s.Require(n.Name(), state.SectionRequest, state.SectionTask, state.SectionResult); err != nil {
		return nil, err
	}

	resultSummary := s.Result.Err
	if resultSummary == "" {
		var outputs []string
		for _, co := range s.Result.CommandOutputs {
			outputs = append(outputs, co.Command)
		}
		resultSummary = "ran: " + strings.Join(outputs, "; ")
	}
	return contextPrep{
		raw:           s.Request.Raw,
		taskSummary:   n.run.tracker.Summary(),
		resultSummary: resultSummary,
	}, nil
}

// Exec appends the record, best effort: a persistence failure is a logged
// gap, never a crashed run. It then reads the recent window back and
// compacts if the store has outgrown its configured bound.
func (n *contextManager) Exec(_ context.Context, prepared any) (any, error) {
	prep := prepared.(contextPrep)
	res := contextResult{}

	id, err := n.agent.store.Append(history.Record{
		Request:       prep.raw,
		TaskSummary:   prep.taskSummary,
		ResultSummary: prep.resultSummary,
	})
	if err != nil {
		res.gap = err.Error()
		n.agent.logEvent(log.LogEvent{
			Event:     log.EventRecordAppendFailed,
			RequestID: n.run.id,
			Error:     err.Error(),
		})
	} else {
		res.recordID = id
		n.agent.logEvent(log.LogEvent{
			Event:     log.EventRecordAppended,
			RequestID: n.run.id,
			RecordID:  id,
		})
	}

	if err := n.agent.store.AddMessage("user", prep.raw); err != nil {
		// Same policy as the record append: log and continue.
		fmt.Fprintf(os.Stderr, "Warning: persisting message: %v\n", err)
	}

	n.maybeCompact()

	window := n.agent.cfg.Store.HistoryWindow
	if window <= 0 {
		window = 20
	}
	records, err := n.agent.store.ReadRecent(window)
	if err == nil {
		for _, rec := range records {
			res.history = append(res.history, state.HistoryEntry{
				ID:        rec.ID,
				Request:   rec.Request,
				Summary:   rec.ResultSummary,
				Timestamp: rec.Timestamp,
			})
		}
	}
	return res, nil
}

// maybeCompact runs size-triggered compaction per the configured policy.
func (n *contextManager) maybeCompact() {
	maxRecords := n.agent.cfg.Store.MaxRecords
	if maxRecords <= 0 {
		return
	}
	count, err := n.agent.store.LiveRecordCount()
	if err != nil || count <= maxRecords {
		return
	}

	summary, err := n.agent.store.Compact(history.Policy{
		MaxRecords: maxRecords,
		KeepRecent: n.agent.cfg.Store.KeepRecent,
	}, n.agent.summarize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: compaction failed: %v\n", err)
		return
	}
	if summary.Replaced > 0 {
		n.agent.logEvent(log.LogEvent{
			Event:     log.EventCompaction,
			RequestID: n.run.id,
			RecordID:  summary.ID,
			Compacted: summary.Replaced,
		})
	}
}

func (n *contextManager) Post(s *state.State, _, result any) (flow.Action, error) {
	res := result.(contextResult)

	s.Context.WorkingDir = n.agent.workingDir
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			s.Context.Env[k] = v
		}
	}
	s.Context.History = res.history
	s.MarkPopulated(state.SectionContext)

	// A persistence gap was already logged; the run continues without
	// that entry being durable.
	return flow.ActionDefault, nil
}
