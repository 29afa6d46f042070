package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/manjuraavi/auto-responder/internal/capability"
	"github.com/manjuraavi/auto-responder/internal/llm"
	"github.com/manjuraavi/auto-responder/internal/logging"
)

// LoopConfig holds reasoning loop policy.
type LoopConfig struct {
	// MaxSteps caps executed capability calls per run. 0 means unlimited,
	// matching the behavior of a loop with a cooperative decide phase.
	MaxSteps int

	// SystemPrompt overrides the default stage prompt when set.
	SystemPrompt string
}

// DefaultLoopConfig returns sensible defaults.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxSteps: 10,
	}
}

// Loop drives one reasoning stage: decide, route, act, finalize.
type Loop struct {
	name     string
	client   llm.Client
	registry *capability.Registry
	config   LoopConfig
}

// NewLoop creates a loop for the named stage.
func NewLoop(name string, client llm.Client, registry *capability.Registry, config LoopConfig) *Loop {
	if registry == nil {
		registry = capability.NewRegistry()
	}
	return &Loop{
		name:     name,
		client:   client,
		registry: registry,
		config:   config,
	}
}

// actionPattern matches the structured tool-call shape in a decision.
var actionPattern = regexp.MustCompile(`(?s)Action:\s*(\w+)\s*\nAction Input:\s*(.*?)(?:\n|$)`)

// Run executes the loop to completion. No panic or error escapes: every
// failure is converted into an error Result.
func (l *Loop) Run(ctx context.Context, state *RunState) (result Result) {
	runID := uuid.NewString()
	logging.Agent("[%s] run %s starting", l.name, runID)

	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryAgent).Error("[%s] run %s panicked: %v", l.name, runID, r)
			result = ErrorResult(l.name, "run failed: %v", r)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return ErrorResult(l.name, "run cancelled: %v", err)
		}

		l.decide(ctx, state)

		switch route(state) {
		case routeError:
			if state.Err == nil {
				state.Err = fmt.Errorf("decide produced neither action nor final answer")
			}
			logging.Get(logging.CategoryAgent).Error("[%s] run %s failed: %v", l.name, runID, state.Err)
			return ErrorResult(l.name, "%v", state.Err)

		case routeFinal:
			return l.finalize(state, runID)

		case routeAct:
			if l.config.MaxSteps > 0 && len(state.ActionResults) >= l.config.MaxSteps {
				return ErrorResult(l.name, "step limit exceeded after %d steps", len(state.ActionResults))
			}
			l.act(ctx, state)
			if state.Err != nil {
				logging.Get(logging.CategoryAgent).Error("[%s] run %s act failed: %v", l.name, runID, state.Err)
				return ErrorResult(l.name, "%v", state.Err)
			}
		}
	}
}

// decide asks the client for the next step and parses the answer into
// exactly one of: a pending action, a final answer, or an error.
func (l *Loop) decide(ctx context.Context, state *RunState) {
	prompt := l.formatInput(state)

	output, err := l.client.CompleteWithSystem(ctx, l.systemPrompt(), prompt)
	if err != nil {
		state.Err = fmt.Errorf("decide failed: %w", err)
		return
	}

	state.History = append(state.History, Turn{Role: "assistant", Content: output})

	call, finalAnswer := ParseDecision(output)
	if call != nil {
		state.PendingAction = call
		state.Actions = append(state.Actions, *call)
		logging.AgentDebug("[%s] decided on action %s", l.name, call.Name)
		return
	}
	state.FinalAnswer = finalAnswer
	logging.AgentDebug("[%s] decided on final answer (%d chars)", l.name, len(finalAnswer))
}

// ParseDecision leniently parses a decision. A structured action marker wins;
// anything else is the final answer with any "Final Answer:" prefix removed.
// Malformed output therefore never stalls a run.
func ParseDecision(output string) (*capability.Call, string) {
	output = strings.TrimSpace(output)

	if strings.Contains(output, "Action:") {
		if m := actionPattern.FindStringSubmatch(output); m != nil {
			return &capability.Call{
				Name:  strings.TrimSpace(m[1]),
				Input: strings.TrimSpace(m[2]),
			}, ""
		}
	}

	return nil, strings.TrimSpace(strings.ReplaceAll(output, "Final Answer:", ""))
}

// act executes the single pending call, appends the observation, and clears
// the pending call. Lookup misses and execution failures set Err; retries
// belong to the capability's own client, not this layer.
func (l *Loop) act(ctx context.Context, state *RunState) {
	call := state.PendingAction
	state.PendingAction = nil

	if call == nil {
		state.Err = fmt.Errorf("no action to execute")
		return
	}

	result, err := l.registry.Execute(ctx, call.Name, call.Input)
	if err != nil {
		state.Err = fmt.Errorf("action execution failed: %w", err)
		return
	}

	state.ActionResults = append(state.ActionResults, result)
	state.History = append(state.History, Turn{Role: "observation", Content: "Observation: " + result})
}

// finalize copies the answer into the visible result with run metadata.
func (l *Loop) finalize(state *RunState, runID string) Result {
	toolsUsed := make([]string, len(state.Actions))
	for i, a := range state.Actions {
		toolsUsed[i] = a.Name
	}

	logging.Agent("[%s] run %s done: %d steps", l.name, runID, len(state.ActionResults))

	return Result{
		Success: true,
		Data: map[string]any{
			"response": state.FinalAnswer,
		},
		Metadata: map[string]any{
			"agent":       l.name,
			"run_id":      runID,
			"steps_taken": len(state.ActionResults),
			"tools_used":  toolsUsed,
		},
	}
}

// systemPrompt renders the stage prompt with the capability catalog.
func (l *Loop) systemPrompt() string {
	if l.config.SystemPrompt != "" {
		return l.config.SystemPrompt
	}

	return fmt.Sprintf(`You are an AI assistant specialized in email processing.
You have access to these tools:

%s
Follow these steps:
1. Analyze the input and context
2. If you need more information, use an appropriate tool
3. Once you have enough information, provide a final answer

Use this format:
- To use a tool:
  Action: tool_name
  Action Input: <your input>

- To provide final answer:
  Final Answer: <your response>

Always think step-by-step and explain your reasoning.`, l.registry.Catalog())
}

// formatInput renders the current state for the decide prompt.
func (l *Loop) formatInput(state *RunState) string {
	var parts []string

	if state.Message.Content != "" {
		parts = append(parts, "Email Content: "+state.Message.Content)
	}
	if state.Message.Intent != "" {
		parts = append(parts, "Intent: "+state.Message.Intent)
	}
	if state.Context != "" {
		parts = append(parts, "Context: "+state.Context)
	}

	if len(state.Actions) > 0 && len(state.ActionResults) > 0 {
		var history []string
		n := len(state.ActionResults)
		for i := 0; i < n && i < len(state.Actions); i++ {
			history = append(history,
				fmt.Sprintf("Action: %s(%s)", state.Actions[i].Name, state.Actions[i].Input),
				"Result: "+state.ActionResults[i])
		}
		parts = append(parts, "Action History:\n"+strings.Join(history, "\n"))
	}

	return strings.Join(parts, "\n\n")
}
