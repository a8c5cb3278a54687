package flow

import "fmt"

// NodeFailure reports a stage crashing in one of its phases. The run is
// aborted; writes already committed to shared state remain, so callers
// must treat the state of an aborted run as best-effort.
type NodeFailure struct {
	Node  string
	Phase Phase
	Err   error
}

func (e *NodeFailure) Error() string {
	return fmt.Sprintf("node %s failed in %s: %v", e.Node, e.Phase, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *NodeFailure) Unwrap() error {
	return e.Err
}

// ExhaustedError reports the iteration guard tripping. This is a logic
// error (an edge table cycle without a terminating condition), surfaced to
// the caller rather than retried.
type ExhaustedError struct {
	Limit int
	Node  string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("flow exhausted after %d dispatches (stopped at node %s)", e.Limit, e.Node)
}

// UnknownNodeError reports an edge pointing at a node that was never
// registered. Detected at dispatch time.
type UnknownNodeError struct {
	Node string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("flow edge routes to unregistered node %q", e.Node)
}
