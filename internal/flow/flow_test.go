package flow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/skipper-dev/skipper/internal/state"
)

// stubNode lets each test supply just the phases it cares about.
type stubNode struct {
	name string
	prep func(s *state.State) (any, error)
	exec func(ctx context.Context, prepared any) (any, error)
	post func(s *state.State, prepared, result any) (Action, error)
}

func (n *stubNode) Name() string { return n.name }

func (n *stubNode) Prep(s *state.State) (any, error) {
	if n.prep != nil {
		return n.prep(s)
	}
	return nil, nil
}

func (n *stubNode) Exec(ctx context.Context, prepared any) (any, error) {
	if n.exec != nil {
		return n.exec(ctx, prepared)
	}
	return nil, nil
}

func (n *stubNode) Post(s *state.State, prepared, result any) (Action, error) {
	if n.post != nil {
		return n.post(s, prepared, result)
	}
	return ActionDefault, nil
}

func labelNode(name string, action Action, visits *[]string) *stubNode {
	return &stubNode{
		name: name,
		post: func(_ *state.State, _, _ any) (Action, error) {
			*visits = append(*visits, name)
			return action, nil
		},
	}
}

func TestFlowRunsNodesInRouteOrder(t *testing.T) {
	var visits []string
	f := New("a", 10)
	if err := f.AddNode(labelNode("a", "next", &visits)); err != nil {
		t.Fatalf("AddNode a: %v", err)
	}
	if err := f.AddNode(labelNode("b", ActionDefault, &visits)); err != nil {
		t.Fatalf("AddNode b: %v", err)
	}
	if err := f.AddNode(labelNode("c", ActionComplete, &visits)); err != nil {
		t.Fatalf("AddNode c: %v", err)
	}
	if err := f.AddEdge("a", "next", "b"); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := f.AddEdge("b", ActionDefault, "c"); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	action, err := f.Run(context.Background(), state.New("req"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if action != ActionComplete {
		t.Errorf("final action = %q, want %q", action, ActionComplete)
	}
	want := []string{"a", "b", "c"}
	if len(visits) != len(want) {
		t.Fatalf("visits = %v, want %v", visits, want)
	}
	for i := range want {
		if visits[i] != want[i] {
			t.Errorf("visits[%d] = %q, want %q", i, visits[i], want[i])
		}
	}
}

func TestFlowHaltsOnUnroutedLabel(t *testing.T) {
	var visits []string
	f := New("a", 10)
	_ = f.AddNode(labelNode("a", "nowhere", &visits))
	_ = f.AddNode(labelNode("b", ActionComplete, &visits))
	_ = f.AddEdge("a", ActionDefault, "b")

	action, err := f.Run(context.Background(), state.New("req"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if action != "nowhere" {
		t.Errorf("final action = %q, want %q", action, "nowhere")
	}
	if len(visits) != 1 {
		t.Errorf("visits = %v, want just node a", visits)
	}
}

func TestFlowExhaustedOnExplicitCycle(t *testing.T) {
	var visits []string
	f := New("a", 5)
	_ = f.AddNode(labelNode("a", ActionDefault, &visits))
	_ = f.AddEdge("a", ActionDefault, "a")

	_, err := f.Run(context.Background(), state.New("req"))
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Run error = %v, want ExhaustedError", err)
	}
	if exhausted.Limit != 5 {
		t.Errorf("Limit = %d, want 5", exhausted.Limit)
	}
	if len(visits) != 5 {
		t.Errorf("node ran %d times, want 5", len(visits))
	}
}

func TestNodeFailureReportsPhaseAndKeepsPartialWrites(t *testing.T) {
	f := New("writer", 10)
	_ = f.AddNode(&stubNode{
		name: "writer",
		post: func(s *state.State, _, _ any) (Action, error) {
			s.Result.Response = "partial"
			s.MarkPopulated(state.SectionResult)
			return ActionDefault, nil
		},
	})
	_ = f.AddNode(&stubNode{
		name: "boom",
		exec: func(context.Context, any) (any, error) {
			return nil, fmt.Errorf("collaborator blew up")
		},
	})
	_ = f.AddEdge("writer", ActionDefault, "boom")

	s := state.New("req")
	_, err := f.Run(context.Background(), s)

	var failure *NodeFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Run error = %v, want NodeFailure", err)
	}
	if failure.Node != "boom" {
		t.Errorf("failure.Node = %q, want %q", failure.Node, "boom")
	}
	if failure.Phase != PhaseExec {
		t.Errorf("failure.Phase = %q, want %q", failure.Phase, PhaseExec)
	}
	// Writes committed before the failure are not rolled back.
	if s.Result.Response != "partial" {
		t.Errorf("Result.Response = %q, want partial write preserved", s.Result.Response)
	}
}

func TestPrepFailureAbortsBeforeExec(t *testing.T) {
	executed := false
	f := New("a", 10)
	_ = f.AddNode(&stubNode{
		name: "a",
		prep: func(*state.State) (any, error) {
			return nil, fmt.Errorf("missing section")
		},
		exec: func(context.Context, any) (any, error) {
			executed = true
			return nil, nil
		},
	})

	_, err := f.Run(context.Background(), state.New("req"))
	var failure *NodeFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Run error = %v, want NodeFailure", err)
	}
	if failure.Phase != PhasePrep {
		t.Errorf("failure.Phase = %q, want %q", failure.Phase, PhasePrep)
	}
	if executed {
		t.Error("exec ran after prep failed")
	}
}

func TestFlowStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var visits []string
	f := New("a", 100)
	_ = f.AddNode(&stubNode{
		name: "a",
		post: func(*state.State, any, any) (Action, error) {
			visits = append(visits, "a")
			cancel()
			return ActionDefault, nil
		},
	})
	_ = f.AddEdge("a", ActionDefault, "a")

	_, err := f.Run(ctx, state.New("req"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if len(visits) != 1 {
		t.Errorf("node ran %d times after cancel, want 1", len(visits))
	}
}

func TestUnknownEntryNode(t *testing.T) {
	f := New("ghost", 10)
	_, err := f.Run(context.Background(), state.New("req"))
	var unknown *UnknownNodeError
	if !errors.As(err, &unknown) {
		t.Fatalf("Run error = %v, want UnknownNodeError", err)
	}
}
