// request.go implements the entry stage: interpreting the raw request
// through the inference collaborator.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skipper-dev/skipper/internal/flow"
	"github.com/skipper-dev/skipper/internal/log"
	"github.com/skipper-dev/skipper/internal/state"
)

type requestHandler struct {
	agent *Agent
	run   *run
}

func (n *requestHandler) Name() string { return stageRequest }

type requestPrep struct {
	raw string
}

type requestResult struct {
	intent   state.Intent
	degraded bool
}

func (n *requestHandler) Prep(s *state.State) (any, error) {
	if err := s.Require(n.Name(), state.SectionRequest); err != nil {
		return nil, err
	}
	return requestPrep{raw: s.Request.Raw}, nil
}

// Exec calls the interpreter with the configured timeout. An unavailable
// collaborator gets exactly the configured retries; after that the run
// degrades instead of guessing.
func (n *requestHandler) Exec(ctx context.Context, prepared any) (any, error) {
	prep := prepared.(requestPrep)
	timeout := time.Duration(n.agent.cfg.Engine.InferenceTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	attempts := 1 + n.agent.cfg.Engine.InferenceRetries
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		intent, err := n.agent.interp.Interpret(callCtx, prep.raw, nil)
		cancel()
		if err == nil {
			return requestResult{intent: intent}, nil
		}
		if !errors.Is(err, ErrInferenceUnavailable) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("interpreting request: %w", err)
		}
		lastErr = err
	}

	n.agent.logEvent(log.LogEvent{
		Event:     log.EventInferenceDegraded,
		RequestID: n.run.id,
		Error:     lastErr.Error(),
	})
	return requestResult{degraded: true}, nil
}

func (n *requestHandler) Post(s *state.State, _, result any) (flow.Action, error) {
	res := result.(requestResult)
	if res.degraded {
		n.run.degraded = true
		s.Result.Degraded = true
		s.Result.Err = "inference collaborator unavailable"
		s.Result.Response = "Unable to complete the request: the interpreter did not respond in time."
		s.MarkPopulated(state.SectionResult)
		return flow.ActionError, nil
	}

	s.Request.Intent = res.intent
	if res.intent.Command == "" {
		s.Result.Err = "could not interpret the request"
		s.Result.Response = "Unable to complete the request: it did not match anything I know how to do."
		s.MarkPopulated(state.SectionResult)
		return flow.ActionError, nil
	}
	return actionClassify, nil
}
