// response.go implements the final stage: drafting the result, passing it
// through the grounder, and applying the checklist success gate.
package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/skipper-dev/skipper/internal/flow"
	"github.com/skipper-dev/skipper/internal/grounding"
	"github.com/skipper-dev/skipper/internal/state"
	"github.com/skipper-dev/skipper/internal/tasks"
)

type responseGenerator struct {
	agent *Agent
	run   *run
}

func (n *responseGenerator) Name() string { return stageResponse }

type responsePrep struct {
	raw        string
	workingDir string
	outputs    []state.CommandOutput
	resultErr  string
	sessions   []string
}

type responseResult struct {
	text     string
	verdicts []grounding.Verdict
}

func (n *responseGenerator) Prep(s *state.State) (any, error) {
	if err := s.Require(n.Name(),
		state.SectionRequest, state.SectionTask, state.SectionContext, state.SectionResult); err != nil {
		return nil, err
	}
	return responsePrep{
		raw:        s.Request.Raw,
		workingDir: s.Context.WorkingDir,
		outputs:    s.Result.CommandOutputs,
		resultErr:  s.Result.Err,
		sessions:   s.Context.SessionIDs,
	}, nil
}

func (n *responseGenerator) Exec(_ context.Context, prepared any) (any, error) {
	prep := prepared.(responsePrep)

	draft := n.draft(prep)
	verdicts := n.agent.grounder.Check(draft, prep.workingDir)
	verdicts = append(verdicts, n.verifyListings(prep)...)
	final := grounding.Annotate(draft, verdicts)

	// Best effort, same policy as the user message.
	_ = n.agent.store.AddMessage("assistant", final)

	return responseResult{text: final, verdicts: verdicts}, nil
}

// draft renders the body of the response from what the run produced,
// honoring the checklist gate: unfinished work is never reported as
// complete.
func (n *responseGenerator) draft(prep responsePrep) string {
	var b strings.Builder

	switch {
	case strings.HasPrefix(prep.resultErr, "command denied:"):
		b.WriteString("The command was not executed: ")
		b.WriteString(strings.TrimPrefix(prep.resultErr, "command denied: "))
		b.WriteString("\n")
	case prep.resultErr != "":
		b.WriteString("The request did not finish: ")
		b.WriteString(prep.resultErr)
		b.WriteString("\n")
	}

	for _, out := range prep.outputs {
		fmt.Fprintf(&b, "$ %s\n%s\n", out.Command, strings.TrimRight(out.Output, "\n"))
	}
	for _, id := range prep.sessions {
		fmt.Fprintf(&b, "Interactive session %s is still open.\n", id)
	}

	if n.run.tracker.CanReportSuccess() {
		if prep.resultErr == "" {
			b.WriteString("Done.")
		}
	} else {
		b.WriteString("Remaining steps:\n")
		for _, item := range n.run.tracker.Items() {
			if item.Status != tasks.StatusDone {
				fmt.Fprintf(&b, "- [%s] %s\n", item.Status, item.Description)
			}
		}
	}
	return b.String()
}

// verifyListings cross-checks entries of any directory listing the run
// produced against the filesystem, so the response only presents paths
// that actually exist.
func (n *responseGenerator) verifyListings(prep responsePrep) []grounding.Verdict {
	const maxEntries = 50
	var verdicts []grounding.Verdict

	for _, out := range prep.outputs {
		if !strings.HasPrefix(out.Command, "ls") {
			continue
		}
		dir := strings.TrimSpace(strings.TrimPrefix(out.Command, "ls"))
		if dir == "" {
			dir = "."
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(prep.workingDir, dir)
		}
		entries := strings.Split(strings.TrimSpace(out.Output), "\n")
		for i, entry := range entries {
			if i >= maxEntries || entry == "" {
				break
			}
			exists, _ := n.agent.fs.Stat(filepath.Join(dir, entry))
			reason := "path exists"
			if !exists {
				reason = "listed path not found"
			}
			verdicts = append(verdicts, grounding.Verdict{Claim: entry, Verified: exists, Reason: reason})
		}
	}
	return verdicts
}

func (n *responseGenerator) Post(s *state.State, _, result any) (flow.Action, error) {
	res := result.(responseResult)

	s.Result.Response = res.text
	for _, v := range res.verdicts {
		s.Result.Verdicts = append(s.Result.Verdicts, state.GroundingNote{
			Claim:    v.Claim,
			Verified: v.Verified,
			Reason:   v.Reason,
		})
	}
	return flow.ActionComplete, nil
}
