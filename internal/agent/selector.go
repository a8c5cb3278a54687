// selector.go implements the stage that picks tools for the classified
// task and runs them, consulting the safety validator before any command
// reaches the process controller.
package agent

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/skipper-dev/skipper/internal/flow"
	"github.com/skipper-dev/skipper/internal/log"
	"github.com/skipper-dev/skipper/internal/state"
	"github.com/skipper-dev/skipper/internal/tasks"
	"github.com/skipper-dev/skipper/internal/terminal"
)

type toolSelector struct {
	agent *Agent
	run   *run
}

func (n *toolSelector) Name() string { return stageSelector }

type selectPrep struct {
	intent   state.Intent
	taskType state.TaskType
}

type selectOutcome struct {
	tools        []string
	outputs      []state.CommandOutput
	evidence     string
	failure      string
	denied       bool
	deniedReason string
	command      string
	sessionID    string
}

func (n *toolSelector) Prep(s *state.State) (any, error) {
	if err := s.Require(n.Name(), state.SectionRequest, state.SectionTask); err != nil {
		return nil, err
	}
	return selectPrep{intent: s.Request.Intent, taskType: s.Task.Type}, nil
}

func (n *toolSelector) Exec(ctx context.Context, prepared any) (any, error) {
	prep := prepared.(selectPrep)
	out := selectOutcome{}

	switch prep.taskType {
	case state.TaskCoding:
		out.tools = []string{"file_reader", "file_writer"}
	case state.TaskIntegrated:
		out.tools = []string{"file_reader", "command_runner"}
	default:
		out.tools = []string{"command_runner"}
	}

	intent := prep.intent
	switch intent.Command {
	case "ls":
		n.listDirectory(&out, intent)
	case "pwd":
		out.outputs = append(out.outputs, state.CommandOutput{Command: "pwd", Output: n.agent.workingDir})
		out.evidence = n.agent.workingDir
	case "cat":
		n.readFile(&out, intent)
	default:
		n.runCommand(ctx, &out, intent)
	}
	return out, nil
}

// listDirectory uses the filesystem collaborator directly; no subprocess
// means no validator round-trip.
func (n *toolSelector) listDirectory(out *selectOutcome, intent state.Intent) {
	path := intent.Parameters["path"]
	if path == "" {
		path = "."
	}
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(n.agent.workingDir, resolved)
	}

	names, err := n.agent.fs.ReadDir(resolved)
	if err != nil {
		out.failure = "listing " + path + ": " + err.Error()
		return
	}
	listing := strings.Join(names, "\n")
	out.outputs = append(out.outputs, state.CommandOutput{Command: "ls " + path, Output: listing})
	out.evidence = listing
}

func (n *toolSelector) readFile(out *selectOutcome, intent state.Intent) {
	path := intent.Parameters["file"]
	if path == "" {
		path = intent.Parameters["path"]
	}
	if path == "" {
		out.failure = "no file named in the request"
		return
	}
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(n.agent.workingDir, resolved)
	}

	data, err := n.agent.fs.ReadFile(resolved)
	if err != nil {
		out.failure = "reading " + path + ": " + err.Error()
		return
	}
	out.outputs = append(out.outputs, state.CommandOutput{Command: "cat " + path, Output: string(data)})
	out.evidence = string(data)
}

// runCommand sends a command line through the validator and, if allowed,
// the process controller. Interactive processes stay registered; one-shot
// commands are reaped once their output is read.
func (n *toolSelector) runCommand(_ context.Context, out *selectOutcome, intent state.Intent) {
	cmdline := intent.Parameters["command"]
	if cmdline == "" {
		cmdline = intent.Command
		if p := intent.Parameters["path"]; p != "" {
			cmdline += " " + p
		} else if f := intent.Parameters["file"]; f != "" {
			cmdline += " " + f
		}
	}
	out.command = cmdline

	decision := n.agent.validator.Validate(cmdline)
	if !decision.Allowed {
		out.denied = true
		out.deniedReason = decision.Reason
		n.agent.logEvent(log.LogEvent{
			Event:     log.EventCommandDenied,
			RequestID: n.run.id,
			Command:   cmdline,
			Reason:    decision.Reason,
		})
		return
	}

	sess, err := n.agent.controller.Start(cmdline, nil, n.agent.workingDir)
	if err != nil {
		// Recoverable: the failure is reported in the result, the run
		// carries on to explain it.
		out.failure = err.Error()
		return
	}

	readTimeout := time.Duration(n.agent.cfg.Sessions.ReadTimeout) * time.Second
	output, err := n.agent.controller.ReadOutput(sess.ID, readTimeout)
	if err != nil {
		out.failure = err.Error()
		return
	}
	out.outputs = append(out.outputs, state.CommandOutput{Command: cmdline, Output: output})
	out.evidence = output

	if st := sess.State(); st == terminal.StateRunning || st == terminal.StateWaitingInput {
		// Still alive: an interactive process the request may keep using.
		out.sessionID = sess.ID
	} else {
		grace := time.Duration(n.agent.cfg.Sessions.GracePeriod) * time.Second
		_ = n.agent.controller.Terminate(sess.ID, grace)
	}
}

func (n *toolSelector) Post(s *state.State, _, result any) (flow.Action, error) {
	out := result.(selectOutcome)

	s.Task.Tools = out.tools
	s.Result.CommandOutputs = append(s.Result.CommandOutputs, out.outputs...)
	s.MarkPopulated(state.SectionResult)

	if out.sessionID != "" {
		s.Context.SessionIDs = append(s.Context.SessionIDs, out.sessionID)
		n.run.sessions = append(n.run.sessions, out.sessionID)
	}

	items := n.run.tracker.Items()
	switch {
	case out.denied:
		s.Result.Err = "command denied: " + out.deniedReason
		if len(items) > 0 {
			_ = n.run.tracker.Mark(items[0].ID, tasks.StatusFailed, "denied by safety validator: "+out.deniedReason)
			_ = n.run.tracker.AcknowledgePartial(items[0].ID)
		}
		return actionDenied, nil
	case out.failure != "":
		s.Result.Err = out.failure
		if len(items) > 0 {
			_ = n.run.tracker.Mark(items[0].ID, tasks.StatusFailed, out.failure)
		}
		return actionExecute, nil
	default:
		if len(items) > 0 {
			_ = n.run.tracker.Mark(items[0].ID, tasks.StatusDone, out.evidence)
		}
		return actionExecute, nil
	}
}
