// Package agent wires the pipeline stages into the default flow and owns
// the process-wide singletons: the persistent context store and the
// interactive process controller.
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/skipper-dev/skipper/internal/config"
	"github.com/skipper-dev/skipper/internal/flow"
	"github.com/skipper-dev/skipper/internal/grounding"
	"github.com/skipper-dev/skipper/internal/history"
	"github.com/skipper-dev/skipper/internal/log"
	"github.com/skipper-dev/skipper/internal/state"
	"github.com/skipper-dev/skipper/internal/tasks"
	"github.com/skipper-dev/skipper/internal/terminal"
)

// Stage name constants for the default flow's routing table.
const (
	stageRequest    = "request_handler"
	stageClassifier = "task_classifier"
	stageSelector   = "tool_selector"
	stageContext    = "context_manager"
	stageResponse   = "response_generator"
)

// Extra action labels used by the default flow.
const (
	actionClassify = flow.Action("classify")
	actionExecute  = flow.Action("execute")
	actionDenied   = flow.Action("denied")
)

// Options carries optional collaborator overrides for New. Nil fields
// select the built-in defaults.
type Options struct {
	Interpreter Interpreter
	Validator   Validator
	FS          grounding.FS
	Summarizer  history.Summarizer
	Store       *history.Store
	Controller  *terminal.Controller
	Logger      *log.Logger
}

// Agent processes requests through the default flow. Safe for concurrent
// use: each request runs with its own shared state; the store and the
// controller are internally synchronized.
type Agent struct {
	cfg        *config.Config
	root       string
	workingDir string

	store      *history.Store
	controller *terminal.Controller
	grounder   *grounding.Grounder
	interp     Interpreter
	validator  Validator
	fs         grounding.FS
	summarize  history.Summarizer
	logger     *log.Logger
}

// New constructs an Agent rooted at the given project directory, loading
// the persistent store from durable storage before returning.
func New(cfg *config.Config, root string, opts Options) (*Agent, error) {
	a := &Agent{
		cfg:        cfg,
		root:       root,
		workingDir: root,
		interp:     opts.Interpreter,
		validator:  opts.Validator,
		fs:         opts.FS,
		summarize:  opts.Summarizer,
		store:      opts.Store,
		controller: opts.Controller,
		logger:     opts.Logger,
	}

	if a.interp == nil {
		a.interp = PatternInterpreter{}
	}
	if a.validator == nil {
		a.validator = DenylistValidator{Patterns: cfg.Safety.DeniedPatterns}
	}
	if a.fs == nil {
		a.fs = grounding.OSFS{}
	}
	if a.summarize == nil {
		a.summarize = history.DefaultSummarizer
	}
	if a.logger == nil {
		logger, err := log.NewLogger(root)
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		a.logger = logger
	}
	if a.store == nil {
		dbPath := cfg.Store.Path
		if !filepath.IsAbs(dbPath) {
			if err := os.MkdirAll(config.Dir(root), 0755); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
			dbPath = filepath.Join(config.Dir(root), dbPath)
		}
		store, err := history.NewStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening context store: %w", err)
		}
		a.store = store
	}
	if err := a.store.Load(); err != nil {
		return nil, fmt.Errorf("loading context store: %w", err)
	}
	if a.controller == nil {
		a.controller = terminal.NewController(cfg.Sessions, a.logger)
	}
	a.grounder = grounding.New(a.fs, nil)

	return a, nil
}

// Controller exposes the session registry, e.g. for the sessions command.
func (a *Agent) Controller() *terminal.Controller {
	return a.controller
}

// Store exposes the persistent context store, e.g. for history commands.
func (a *Agent) Store() *history.Store {
	return a.store
}

// Shutdown flushes and closes the store and terminates every session.
func (a *Agent) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := a.controller.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// run carries per-request state shared by the stage instances of one
// flow execution: the derived checklist and the sessions this request
// started, so cancellation can reach them.
type run struct {
	id       string
	tracker  *tasks.Tracker
	sessions []string
	degraded bool
}

// ProcessRequest executes the default flow for one request and returns
// the shared state it produced. The returned state always carries an
// explicit result: on an aborted run, Result.Err and a non-empty
// Result.Response describing the failure.
func (a *Agent) ProcessRequest(ctx context.Context, text string) (*state.State, error) {
	started := time.Now()
	r := &run{id: uuid.New().String()[:8]}
	s := state.New(text)

	a.logEvent(log.LogEvent{Event: log.EventRequestStarted, RequestID: r.id})

	f, err := a.buildFlow(r)
	if err != nil {
		return s, fmt.Errorf("building flow: %w", err)
	}

	_, runErr := f.Run(ctx, s)

	// Cancellation must not orphan sessions this run started.
	if ctx.Err() != nil {
		grace := time.Duration(a.cfg.Sessions.GracePeriod) * time.Second
		for _, id := range r.sessions {
			_ = a.controller.Terminate(id, grace)
		}
	}

	if runErr != nil {
		if s.Result.Err == "" {
			s.Result.Err = runErr.Error()
		}
		s.MarkPopulated(state.SectionResult)
	}
	// Never return a silent or empty result that could pass for success.
	if s.Result.Response == "" && (s.Result.Err != "" || runErr != nil) {
		s.Result.Response = "Unable to complete the request: " + s.Result.Err
	}

	if runErr != nil || s.Result.Err != "" {
		a.logEvent(log.LogEvent{
			Event:      log.EventRequestFailed,
			RequestID:  r.id,
			Error:      s.Result.Err,
			DurationMs: time.Since(started).Milliseconds(),
		})
		return s, runErr
	}

	a.logEvent(log.LogEvent{
		Event:      log.EventRequestComplete,
		RequestID:  r.id,
		DurationMs: time.Since(started).Milliseconds(),
	})
	return s, nil
}

// loggedNode wraps a stage so every completed dispatch leaves a
// stage_completed event with the action it routed on.
type loggedNode struct {
	flow.Node
	agent *Agent
	run   *run
}

func (n *loggedNode) Post(s *state.State, prepared, result any) (flow.Action, error) {
	action, err := n.Node.Post(s, prepared, result)
	if err == nil {
		n.agent.logEvent(log.LogEvent{
			Event:     log.EventStageCompleted,
			RequestID: n.run.id,
			Stage:     n.Node.Name(),
			Action:    string(action),
		})
	}
	return action, err
}

// buildFlow assembles the default routing table. Kept as an explicit
// per-edge listing so the graph stays auditable.
func (a *Agent) buildFlow(r *run) (*flow.Flow, error) {
	f := flow.New(stageRequest, a.cfg.Engine.MaxIterations)

	nodes := []flow.Node{
		&requestHandler{agent: a, run: r},
		&taskClassifier{agent: a, run: r},
		&toolSelector{agent: a, run: r},
		&contextManager{agent: a, run: r},
		&responseGenerator{agent: a, run: r},
	}
	for _, n := range nodes {
		if err := f.AddNode(&loggedNode{Node: n, agent: a, run: r}); err != nil {
			return nil, err
		}
	}

	edges := []struct {
		from   string
		action flow.Action
		to     string
	}{
		{stageRequest, actionClassify, stageClassifier},
		{stageClassifier, flow.Action(state.TaskShell), stageSelector},
		{stageClassifier, flow.Action(state.TaskCoding), stageSelector},
		{stageClassifier, flow.Action(state.TaskIntegrated), stageSelector},
		{stageSelector, actionExecute, stageContext},
		// A denied command still flows through persistence and response
		// generation so the denial is recorded and explained.
		{stageSelector, actionDenied, stageContext},
		{stageContext, flow.ActionDefault, stageResponse},
	}
	for _, e := range edges {
		if err := f.AddEdge(e.from, e.action, e.to); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (a *Agent) logEvent(event log.LogEvent) {
	if a.logger == nil {
		return
	}
	if err := a.logger.Append(event); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to log %s: %v\n", event.Event, err)
	}
}
