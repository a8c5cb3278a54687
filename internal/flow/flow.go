package flow

import (
	"context"
	"fmt"

	"github.com/skipper-dev/skipper/internal/state"
)

// DefaultMaxIterations is the cycle guard bound used when a flow is built
// with a non-positive limit. Generous but finite.
const DefaultMaxIterations = 50

type edgeKey struct {
	node   string
	action Action
}

// Flow is a directed graph of nodes with action-label routing. Routing is
// a finite table from (node, action) to the next node name, resolved at
// dispatch time; there is no implicit backtracking. Cycles exist only
// where the table explicitly creates them, bounded by the iteration guard.
type Flow struct {
	entry         string
	nodes         map[string]Node
	edges         map[edgeKey]string
	maxIterations int
}

// New creates a Flow starting at the named entry node. maxIterations <= 0
// selects DefaultMaxIterations.
func New(entry string, maxIterations int) *Flow {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Flow{
		entry:         entry,
		nodes:         make(map[string]Node),
		edges:         make(map[edgeKey]string),
		maxIterations: maxIterations,
	}
}

// AddNode registers a node under its own name. Registering the same name
// twice is an error: the table is meant to be auditable, not patched.
func (f *Flow) AddNode(n Node) error {
	name := n.Name()
	if _, ok := f.nodes[name]; ok {
		return fmt.Errorf("node %q already registered", name)
	}
	f.nodes[name] = n
	return nil
}

// AddEdge routes (from, action) to the node named to. Both endpoints must
// already be registered.
func (f *Flow) AddEdge(from string, action Action, to string) error {
	if _, ok := f.nodes[from]; !ok {
		return fmt.Errorf("edge source %q not registered", from)
	}
	if _, ok := f.nodes[to]; !ok {
		return fmt.Errorf("edge target %q not registered", to)
	}
	f.edges[edgeKey{node: from, action: action}] = to
	return nil
}

// Run executes the flow against the given shared state and returns the
// final action label. Execution halts when a node returns a label with no
// matching edge. Any error escaping a node phase aborts the run with a
// NodeFailure; writes already applied to the state remain.
func (f *Flow) Run(ctx context.Context, s *state.State) (Action, error) {
	current, ok := f.nodes[f.entry]
	if !ok {
		return "", &UnknownNodeError{Node: f.entry}
	}

	var last Action
	for dispatches := 0; ; dispatches++ {
		if dispatches >= f.maxIterations {
			return last, &ExhaustedError{Limit: f.maxIterations, Node: current.Name()}
		}
		if err := ctx.Err(); err != nil {
			return last, err
		}

		prepared, err := current.Prep(s)
		if err != nil {
			return last, &NodeFailure{Node: current.Name(), Phase: PhasePrep, Err: err}
		}

		result, err := current.Exec(ctx, prepared)
		if err != nil {
			return last, &NodeFailure{Node: current.Name(), Phase: PhaseExec, Err: err}
		}

		action, err := current.Post(s, prepared, result)
		if err != nil {
			return action, &NodeFailure{Node: current.Name(), Phase: PhasePost, Err: err}
		}
		last = action

		if err := checkSections(s, current.Name()); err != nil {
			return last, err
		}

		next, ok := f.edges[edgeKey{node: current.Name(), action: action}]
		if !ok {
			// Terminal label: nothing routed for it.
			return action, nil
		}
		current, ok = f.nodes[next]
		if !ok {
			return last, &UnknownNodeError{Node: next}
		}
	}
}

// checkSections asserts the stage-boundary invariant: all four sections
// are structurally present after every node. Sections are value fields so
// presence reduces to the state itself and its maps being intact.
func checkSections(s *state.State, node string) error {
	if s == nil {
		return fmt.Errorf("node %s left shared state nil", node)
	}
	if s.Context.Env == nil {
		return fmt.Errorf("node %s removed the context env map", node)
	}
	return nil
}
