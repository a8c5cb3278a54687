package terminal

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// State is a session's lifecycle state.
type State string

// Session lifecycle states.
const (
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateWaitingInput State = "waiting_input"
	StateTerminated   State = "terminated"
	StateFailed       State = "failed"
)

// Termination reasons, reported alongside the state transition.
const (
	ReasonExplicit = "explicit"
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
	ReasonExited   = "exited"
)

// SpawnError reports a command that could not be launched. No session is
// registered when Start fails this way.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %q: %v", e.Command, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *SpawnError) Unwrap() error {
	return e.Err
}

// SessionNotFound reports an operation against an unknown session id.
type SessionNotFound struct {
	ID string
}

func (e *SessionNotFound) Error() string {
	return fmt.Sprintf("session %s not found", e.ID)
}

// SessionTerminated reports input sent to a session that already ended.
type SessionTerminated struct {
	ID string
}

func (e *SessionTerminated) Error() string {
	return fmt.Sprintf("session %s is terminated", e.ID)
}

// Session is one spawned interactive subprocess. It is owned by the
// controller; everything else holds only its id.
type Session struct {
	ID        string
	Command   string
	CreatedAt time.Time

	ring *Ring
	cmd  *exec.Cmd
	// done closes when the exit watcher observes the process ending.
	done chan struct{}

	mu           sync.Mutex
	state        State
	reason       string
	lastActivity time.Time
	stdin        io.WriteCloser
	exitErr      error
	terminating  bool
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason returns why the session ended; empty while it is alive.
func (s *Session) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// LastActivity returns when the session last saw input or output.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// touch refreshes the activity clock. Called on input sends and from the
// output reader goroutines.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	if s.state == StateWaitingInput {
		s.state = StateRunning
	}
	s.mu.Unlock()
}

// ended reports whether the session reached a terminal state.
func (s *Session) ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateTerminated || s.state == StateFailed
}

// Info is a read-only snapshot for listings.
type Info struct {
	ID           string
	Command      string
	State        State
	Reason       string
	CreatedAt    time.Time
	LastActivity time.Time
	Buffered     int
}

// Snapshot returns a consistent read-only view of the session.
func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:           s.ID,
		Command:      s.Command,
		State:        s.state,
		Reason:       s.reason,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.lastActivity,
		Buffered:     s.ring.Len(),
	}
}
