// classifier.go implements the stage that classifies the request and
// derives its checklist.
package agent

import (
	"context"
	"strings"

	"github.com/skipper-dev/skipper/internal/flow"
	"github.com/skipper-dev/skipper/internal/state"
	"github.com/skipper-dev/skipper/internal/tasks"
)

type taskClassifier struct {
	agent *Agent
	run   *run
}

func (n *taskClassifier) Name() string { return stageClassifier }

type classifyPrep struct {
	raw    string
	intent state.Intent
}

type classifyResult struct {
	taskType state.TaskType
	tracker  *tasks.Tracker
}

func (n *taskClassifier) Prep(s *state.State) (any, error) {
	if err := s.Require(n.Name(), state.SectionRequest); err != nil {
		return nil, err
	}
	return classifyPrep{raw: s.Request.Raw, intent: s.Request.Intent}, nil
}

var codingKeywords = []string{"code", "script", "function", "refactor", "implement", "write a", "fix the bug"}

func (n *taskClassifier) Exec(_ context.Context, prepared any) (any, error) {
	prep := prepared.(classifyPrep)
	lower := strings.ToLower(prep.raw)

	coding := false
	for _, kw := range codingKeywords {
		if strings.Contains(lower, kw) {
			coding = true
			break
		}
	}
	shell := prep.intent.Command != "" && prep.intent.Command != "edit"

	taskType := state.TaskShell
	switch {
	case coding && shell && prep.intent.Command == "run":
		taskType = state.TaskIntegrated
	case coding:
		taskType = state.TaskCoding
	}

	return classifyResult{
		taskType: taskType,
		tracker:  tasks.Derive(prep.raw),
	}, nil
}

func (n *taskClassifier) Post(s *state.State, _, result any) (flow.Action, error) {
	res := result.(classifyResult)
	n.run.tracker = res.tracker

	s.Task.Type = res.taskType
	s.Task.Checklist = res.tracker.Descriptions()
	s.MarkPopulated(state.SectionTask)
	return flow.Action(res.taskType), nil
}
