package terminal

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/skipper-dev/skipper/internal/config"
	"github.com/skipper-dev/skipper/internal/log"
)

// Controller owns every interactive subprocess session. The registry is
// internally synchronized; sessions themselves are independent workers.
// Every started session stays reachable here for cleanup even after the
// flow that started it is gone.
type Controller struct {
	cfg    config.SessionsConfig
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// NewController creates a Controller and starts its idle sweep.
// logger may be nil.
func NewController(cfg config.SessionsConfig, logger *log.Logger) *Controller {
	c := &Controller{
		cfg:       cfg,
		logger:    logger,
		sessions:  make(map[string]*Session),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// sessionWriter feeds subprocess output into the session ring and
// refreshes the activity clock.
type sessionWriter struct {
	s *Session
}

func (w *sessionWriter) Write(p []byte) (int, error) {
	n, err := w.s.ring.Write(p)
	w.s.touch()
	return n, err
}

// Start launches command as an interactive subprocess and registers a
// Session for it. env entries are added on top of the parent environment;
// cwd may be empty for the inherited working directory. A launch failure
// returns a SpawnError and leaves no registry entry behind.
func (c *Controller) Start(command string, env map[string]string, cwd string) (*Session, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, &SpawnError{Command: command, Err: fmt.Errorf("empty command")}
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	sess := &Session{
		ID:           uuid.New().String(),
		Command:      command,
		CreatedAt:    time.Now(),
		ring:         NewRing(c.cfg.OutputCapacity),
		cmd:          cmd,
		done:         make(chan struct{}),
		state:        StateStarting,
		lastActivity: time.Now(),
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}
	sess.stdin = stdin
	out := &sessionWriter{s: sess}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, &SpawnError{Command: command, Err: err}
	}

	sess.mu.Lock()
	sess.state = StateRunning
	sess.mu.Unlock()

	c.mu.Lock()
	c.sessions[sess.ID] = sess
	c.mu.Unlock()

	// Exit watcher: the only goroutine allowed to call Wait.
	go func() {
		err := cmd.Wait()
		sess.mu.Lock()
		sess.exitErr = err
		terminating := sess.terminating
		sess.mu.Unlock()
		close(sess.done)
		if !terminating {
			c.markEnded(sess, ReasonExited)
		}
	}()

	c.logEvent(log.LogEvent{
		Event:     log.EventSessionStarted,
		SessionID: sess.ID,
		Command:   command,
	})
	return sess, nil
}

// Get returns the session for id.
func (c *Controller) Get(id string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[id]
	if !ok {
		return nil, &SessionNotFound{ID: id}
	}
	return sess, nil
}

// List returns a snapshot of every registered session.
func (c *Controller) List() []Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	infos := make([]Info, 0, len(c.sessions))
	for _, sess := range c.sessions {
		infos = append(infos, sess.Snapshot())
	}
	return infos
}

// SendInput writes text to the session's stdin, appending a newline if
// the text does not end with one.
func (c *Controller) SendInput(id, text string) error {
	sess, err := c.Get(id)
	if err != nil {
		return err
	}
	if sess.ended() {
		return &SessionTerminated{ID: id}
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if _, err := sess.stdin.Write([]byte(text)); err != nil {
		return &SessionTerminated{ID: id}
	}
	sess.touch()
	return nil
}

// ReadOutput returns whatever the session has produced, waiting up to
// timeout for the first bytes. An elapsed timeout yields an empty chunk,
// not an error. A terminated session yields its remaining buffer.
func (c *Controller) ReadOutput(id string, timeout time.Duration) (string, error) {
	sess, err := c.Get(id)
	if err != nil {
		return "", err
	}

	if chunk := sess.ring.Drain(); len(chunk) > 0 {
		return string(chunk), nil
	}
	if sess.ended() {
		return "", nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-sess.ring.Wait():
	case <-sess.done:
	case <-timer.C:
		// Nothing arrived; the process is sitting on its prompt.
		sess.mu.Lock()
		if sess.state == StateRunning {
			sess.state = StateWaitingInput
		}
		sess.mu.Unlock()
	}
	return string(sess.ring.Drain()), nil
}

// Terminate ends the session: graceful SIGTERM first, SIGKILL once grace
// elapses. After it returns the session is in state Terminated or Failed,
// never Running. Terminating an already-ended session is a no-op.
func (c *Controller) Terminate(id string, grace time.Duration) error {
	return c.terminateWith(id, grace, ReasonExplicit)
}

func (c *Controller) terminateWith(id string, grace time.Duration, reason string) error {
	sess, err := c.Get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.state == StateTerminated || sess.state == StateFailed {
		sess.mu.Unlock()
		return nil
	}
	if sess.terminating {
		sess.mu.Unlock()
		<-sess.done
		return nil
	}
	sess.terminating = true
	sess.mu.Unlock()

	_ = sess.stdin.Close()
	_ = sess.cmd.Process.Signal(syscall.SIGTERM)

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-sess.done:
	case <-timer.C:
		_ = sess.cmd.Process.Kill()
		<-sess.done
	}

	c.markEnded(sess, reason)
	return nil
}

// markEnded applies the terminal state transition exactly once.
func (c *Controller) markEnded(sess *Session, reason string) {
	sess.mu.Lock()
	if sess.state == StateTerminated || sess.state == StateFailed {
		sess.mu.Unlock()
		return
	}
	// A process we killed ourselves exits nonzero; that is still a clean
	// termination. Failed is reserved for processes dying on their own.
	if reason == ReasonExited && sess.exitErr != nil {
		sess.state = StateFailed
	} else {
		sess.state = StateTerminated
	}
	sess.reason = reason
	final := sess.state
	sess.mu.Unlock()

	c.logEvent(log.LogEvent{
		Event:     log.EventSessionTerminated,
		SessionID: sess.ID,
		Reason:    reason,
		Data:      map[string]interface{}{"state": string(final)},
	})
}

// sweepLoop proactively terminates sessions idle past the configured
// timeout. Idle termination uses the same transition as an explicit one,
// distinguishable by its reason.
func (c *Controller) sweepLoop() {
	defer close(c.sweepDone)

	interval := time.Duration(c.cfg.SweepInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopSweep:
			return
		case <-ticker.C:
			c.sweepIdle()
		}
	}
}

func (c *Controller) sweepIdle() {
	idle := time.Duration(c.cfg.IdleTimeout) * time.Second
	if idle <= 0 {
		return
	}
	cutoff := time.Now().Add(-idle)
	grace := time.Duration(c.cfg.GracePeriod) * time.Second

	for _, info := range c.List() {
		if info.State != StateRunning && info.State != StateWaitingInput {
			continue
		}
		if info.LastActivity.Before(cutoff) {
			_ = c.terminateWith(info.ID, grace, ReasonIdle)
		}
	}
}

// Shutdown stops the idle sweep and terminates every live session
// concurrently. The context bounds how long the fan-out may take.
func (c *Controller) Shutdown(ctx context.Context) error {
	select {
	case <-c.stopSweep:
	default:
		close(c.stopSweep)
	}
	<-c.sweepDone

	grace := time.Duration(c.cfg.GracePeriod) * time.Second
	g, _ := errgroup.WithContext(ctx)
	for _, info := range c.List() {
		info := info
		g.Go(func() error {
			return c.terminateWith(info.ID, grace, ReasonShutdown)
		})
	}
	return g.Wait()
}

func (c *Controller) logEvent(event log.LogEvent) {
	if c.logger == nil {
		return
	}
	if err := c.logger.Append(event); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to log %s: %v\n", event.Event, err)
	}
}
