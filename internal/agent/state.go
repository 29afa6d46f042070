// Package agent implements the reasoning-loop state machine that wraps every
// responder stage. A run alternates between a decide phase, which asks the
// completion client for either a capability call or a final answer, and an act
// phase, which executes the single pending call, until the run terminates with
// an answer or an error.
package agent

import (
	"fmt"
	"strings"

	"github.com/manjuraavi/auto-responder/internal/capability"
)

// Message is the immutable input unit for a pipeline run.
type Message struct {
	Content string
	Subject string
	Sender  string
	Intent  string // empty until classified
}

// Validate checks required fields.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("message content is required")
	}
	return nil
}

// Turn is one exchange in a run's history.
type Turn struct {
	Role    string // "assistant" or "observation"
	Content string
}

// RunState is the per-run record owned exclusively by the loop. It is created
// at run start, mutated only by the decide and act phases, and discarded when
// the run ends. FinalAnswer and Err are mutually exclusive; PendingAction is
// cleared exactly once when executed.
type RunState struct {
	Message Message
	Context string // retrieved context, when a stage supplies it

	History       []Turn
	PendingAction *capability.Call
	Actions       []capability.Call
	ActionResults []string
	FinalAnswer   string
	Err           error
}

// NewRunState seeds a run for the given message.
func NewRunState(msg Message) *RunState {
	return &RunState{Message: msg}
}

// Result is the externally visible outcome of a run or stage.
// Data is populated iff Success.
type Result struct {
	Success  bool
	Data     map[string]any
	Err      string
	Metadata map[string]any
}

// ErrorResult builds a failed Result for the named stage.
func ErrorResult(stage, format string, args ...any) Result {
	return Result{
		Success:  false,
		Err:      fmt.Sprintf(format, args...),
		Metadata: map[string]any{"agent": stage},
	}
}

// routeDecision is the outcome of routing a RunState after a decide phase.
type routeDecision int

const (
	routeAct routeDecision = iota
	routeFinal
	routeError
)

// route is a total pure function over RunState: error wins, then final
// answer, then a pending action. A decide that produced none of them is
// itself a failure and must not silently loop.
func route(s *RunState) routeDecision {
	if s.Err != nil {
		return routeError
	}
	if s.FinalAnswer != "" {
		return routeFinal
	}
	if s.PendingAction != nil {
		return routeAct
	}
	return routeError
}
