// Package flow implements the stage graph engine: nodes with three ordered
// phases and an explicit action-label routing table between them.
package flow

import (
	"context"

	"github.com/skipper-dev/skipper/internal/state"
)

// Action is the routing label a node returns from its post phase. The flow
// follows the edge registered for (node, action); a label with no edge
// halts the run.
type Action string

// Common action labels. Nodes are free to return domain-specific labels as
// long as the flow's edge table knows them.
const (
	ActionDefault  Action = "default"
	ActionComplete Action = "complete"
	ActionError    Action = "error"
)

// Node is one discrete unit of processing. The three phases run in order:
//
//	Prep     read-only extraction of what the node needs from shared state
//	Exec     computation over the prepared data only, no state access
//	Post     write results back and return the routing label
//
// Exec receives a context so delegated calls (inference, subprocess I/O)
// stay cancellation- and timeout-bounded.
type Node interface {
	Name() string
	Prep(s *state.State) (any, error)
	Exec(ctx context.Context, prepared any) (any, error)
	Post(s *state.State, prepared, result any) (Action, error)
}

// Phase identifies which node phase an error escaped from.
type Phase string

// Phase constants.
const (
	PhasePrep Phase = "prep"
	PhaseExec Phase = "exec"
	PhasePost Phase = "post"
)
