// collaborators.go defines the external collaborator contracts the engine
// invokes (inference, command safety) and their built-in fallbacks.
package agent

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/skipper-dev/skipper/internal/state"
)

// ErrInferenceUnavailable signals a collaborator timeout or outage. The
// engine retries once and then degrades to an explicit unable-to-complete
// result instead of fabricating an answer.
var ErrInferenceUnavailable = errors.New("inference collaborator unavailable")

// Interpreter turns a natural-language request into a structured intent.
// Implementations must respect ctx; the engine passes a deadline down
// from its execution budget.
type Interpreter interface {
	Interpret(ctx context.Context, text string, recent []state.HistoryEntry) (state.Intent, error)
}

// Decision is a command-safety verdict.
type Decision struct {
	Allowed bool
	Reason  string
}

// Validator is consulted before any command reaches the process
// controller. The engine applies the verdict; it never decides safety
// itself.
type Validator interface {
	Validate(command string) Decision
}

// PatternInterpreter is the built-in fallback interpreter: a fixed table
// of phrasing patterns mapped to commands. It stands in when no AI
// inference collaborator is wired up.
type PatternInterpreter struct{}

var commandPatterns = []struct {
	re  *regexp.Regexp
	cmd string
}{
	{regexp.MustCompile(`(?i)list\s+(?:the\s+)?files?`), "ls"},
	{regexp.MustCompile(`(?i)show\s+(?:the\s+)?(?:directory|folder)\s+contents`), "ls"},
	{regexp.MustCompile(`(?i)create\s+(?:a\s+)?(?:directory|folder)`), "mkdir"},
	{regexp.MustCompile(`(?i)delete\s+(?:the\s+)?file`), "rm"},
	{regexp.MustCompile(`(?i)move\s+(?:the\s+)?file`), "mv"},
	{regexp.MustCompile(`(?i)copy\s+(?:the\s+)?file`), "cp"},
	{regexp.MustCompile(`(?i)(?:read|show|print)\s+(?:the\s+)?file`), "cat"},
	{regexp.MustCompile(`(?i)(?:current|print)\s+(?:working\s+)?directory`), "pwd"},
	{regexp.MustCompile(`(?i)search\s+(?:in|for|through)`), "grep"},
	{regexp.MustCompile(`(?i)(?:run|execute|launch|start)\s+`), "run"},
}

var (
	pathArg   = regexp.MustCompile(`(?:\bin|\bfrom|\bto|\bat)\s+['"]?([^\s'"]+)['"]?`)
	fileArg   = regexp.MustCompile(`['"]?([^\s'"]+\.\w+)['"]?`)
	runTarget = regexp.MustCompile(`(?i)(?:run|execute|launch|start)\s+(?:the\s+)?(?:command\s+)?['"]?(.+?)['"]?\s*$`)
)

// Interpret matches text against the pattern table. Confidence starts at
// 0.6 for a recognized command shape and grows with extracted parameters;
// unrecognized text scores zero.
func (PatternInterpreter) Interpret(_ context.Context, text string, _ []state.HistoryEntry) (state.Intent, error) {
	normalized := strings.TrimSpace(text)

	intent := state.Intent{Parameters: map[string]string{}}
	for _, p := range commandPatterns {
		if p.re.MatchString(normalized) {
			intent.Command = p.cmd
			break
		}
	}
	if intent.Command == "" {
		return intent, nil
	}
	intent.Confidence = 0.6

	if m := pathArg.FindStringSubmatch(normalized); m != nil {
		intent.Parameters["path"] = m[1]
		intent.Confidence += 0.2
	}
	if m := fileArg.FindStringSubmatch(normalized); m != nil {
		intent.Parameters["file"] = m[1]
		intent.Confidence += 0.1
	}
	if intent.Command == "run" {
		if m := runTarget.FindStringSubmatch(normalized); m != nil {
			intent.Parameters["command"] = m[1]
			intent.Confidence += 0.2
		}
	}
	if intent.Confidence > 1.0 {
		intent.Confidence = 1.0
	}
	return intent, nil
}

// DenylistValidator denies any command containing one of its patterns.
// Patterns come from .skipper/config.yaml; matching is plain substring.
type DenylistValidator struct {
	Patterns []string
}

// Validate checks command against the denylist.
func (v DenylistValidator) Validate(command string) Decision {
	for _, p := range v.Patterns {
		if p != "" && strings.Contains(command, p) {
			return Decision{Allowed: false, Reason: "matches denied pattern " + p}
		}
	}
	return Decision{Allowed: true}
}
