package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manjuraavi/auto-responder/internal/capability"
	"github.com/manjuraavi/auto-responder/internal/llm"
)

func lookupRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	r := capability.NewRegistry()
	require.NoError(t, r.Register(capability.Capability{
		Name:        "lookup",
		Description: "looks things up",
		Run: func(ctx context.Context, input string) (string, error) {
			return "found: " + input, nil
		},
	}))
	return r
}

func TestParseDecisionAction(t *testing.T) {
	call, final := ParseDecision("I should search.\nAction: lookup\nAction Input: reset password\nmore text")
	require.NotNil(t, call)
	assert.Equal(t, "lookup", call.Name)
	assert.Equal(t, "reset password", call.Input)
	assert.Empty(t, final)
}

func TestParseDecisionFinalAnswer(t *testing.T) {
	call, final := ParseDecision("Final Answer: Thanks for reaching out!")
	assert.Nil(t, call)
	assert.Equal(t, "Thanks for reaching out!", final)
}

func TestParseDecisionPlainTextIsFinalAnswer(t *testing.T) {
	// No action marker, no final-answer marker: the whole text is the answer
	call, final := ParseDecision("  Here is what I would say to the customer.  ")
	assert.Nil(t, call)
	assert.Equal(t, "Here is what I would say to the customer.", final)
}

func TestParseDecisionMalformedActionFallsBack(t *testing.T) {
	// "Action:" present but the shape doesn't match; lenient parse treats
	// the output as a final answer instead of stalling
	call, final := ParseDecision("Action: but no input line follows")
	assert.Nil(t, call)
	assert.NotEmpty(t, final)
}

func TestRouteIsTotal(t *testing.T) {
	states := []*RunState{
		{Err: errors.New("x")},
		{FinalAnswer: "done"},
		{PendingAction: &capability.Call{Name: "lookup"}},
		{},
		{Err: errors.New("x"), FinalAnswer: "done"},
		{FinalAnswer: "done", PendingAction: &capability.Call{Name: "lookup"}},
	}
	wants := []routeDecision{routeError, routeFinal, routeAct, routeError, routeError, routeFinal}

	for i, s := range states {
		if got := route(s); got != wants[i] {
			t.Errorf("state %d: got %v, want %v", i, got, wants[i])
		}
	}
}

func TestRunDirectFinalAnswer(t *testing.T) {
	client := llm.NewScriptedClient("Final Answer: All set.")
	loop := NewLoop("classifier", client, lookupRegistry(t), DefaultLoopConfig())

	result := loop.Run(context.Background(), NewRunState(Message{Content: "hi"}))

	require.True(t, result.Success)
	assert.Equal(t, "All set.", result.Data["response"])
	assert.Equal(t, "classifier", result.Metadata["agent"])
	assert.Equal(t, 0, result.Metadata["steps_taken"])
	assert.Empty(t, result.Metadata["tools_used"])
}

func TestRunWithToolIteration(t *testing.T) {
	client := llm.NewScriptedClient(
		"Action: lookup\nAction Input: order 42",
		"Final Answer: Your order shipped.",
	)
	loop := NewLoop("responder", client, lookupRegistry(t), DefaultLoopConfig())

	state := NewRunState(Message{Content: "where is my order?"})
	result := loop.Run(context.Background(), state)

	require.True(t, result.Success)
	assert.Equal(t, "Your order shipped.", result.Data["response"])
	assert.Equal(t, 1, result.Metadata["steps_taken"])
	assert.Equal(t, []string{"lookup"}, result.Metadata["tools_used"])

	// Observation fed back into history, pending action cleared
	assert.Nil(t, state.PendingAction)
	require.Len(t, state.ActionResults, 1)
	assert.Equal(t, "found: order 42", state.ActionResults[0])

	// Second prompt carries the action history
	require.Equal(t, 2, client.Calls())
	assert.Contains(t, client.Prompts[1], "Action History:")
	assert.Contains(t, client.Prompts[1], "found: order 42")
}

func TestRunUnknownCapabilityFails(t *testing.T) {
	client := llm.NewScriptedClient("Action: teleport\nAction Input: anywhere")
	loop := NewLoop("responder", client, lookupRegistry(t), DefaultLoopConfig())

	result := loop.Run(context.Background(), NewRunState(Message{Content: "hi"}))

	require.False(t, result.Success)
	assert.Contains(t, result.Err, "capability not registered")
	assert.Nil(t, result.Data)
}

func TestRunCapabilityFailureIsTerminal(t *testing.T) {
	r := capability.NewRegistry()
	require.NoError(t, r.Register(capability.Capability{
		Name: "flaky",
		Run: func(ctx context.Context, input string) (string, error) {
			return "", errors.New("backend down")
		},
	}))

	client := llm.NewScriptedClient("Action: flaky\nAction Input: x")
	loop := NewLoop("responder", client, r, DefaultLoopConfig())

	result := loop.Run(context.Background(), NewRunState(Message{Content: "hi"}))

	require.False(t, result.Success)
	assert.Contains(t, result.Err, "backend down")
	// No retry at this layer
	assert.Equal(t, 1, client.Calls())
}

func TestRunDecideFailure(t *testing.T) {
	client := llm.NewScriptedClientWithError(errors.New("quota exceeded"))
	loop := NewLoop("responder", client, lookupRegistry(t), DefaultLoopConfig())

	result := loop.Run(context.Background(), NewRunState(Message{Content: "hi"}))

	require.False(t, result.Success)
	assert.Contains(t, result.Err, "quota exceeded")
}

func TestRunEmptyDecisionIsError(t *testing.T) {
	client := llm.NewScriptedClient("")
	loop := NewLoop("responder", client, lookupRegistry(t), DefaultLoopConfig())

	result := loop.Run(context.Background(), NewRunState(Message{Content: "hi"}))

	require.False(t, result.Success)
	assert.Contains(t, result.Err, "neither action nor final answer")
}

func TestRunStepLimit(t *testing.T) {
	// The client always asks for another tool call; the ceiling must stop it
	client := llm.NewScriptedClient(
		"Action: lookup\nAction Input: a",
		"Action: lookup\nAction Input: b",
		"Action: lookup\nAction Input: c",
	)
	loop := NewLoop("responder", client, lookupRegistry(t), LoopConfig{MaxSteps: 2})

	result := loop.Run(context.Background(), NewRunState(Message{Content: "hi"}))

	require.False(t, result.Success)
	assert.Contains(t, result.Err, "step limit exceeded")
}

func TestRunUnlimitedStepsTerminatesOnAnswer(t *testing.T) {
	responses := make([]string, 0, 16)
	for i := 0; i < 15; i++ {
		responses = append(responses, fmt.Sprintf("Action: lookup\nAction Input: item %d", i))
	}
	responses = append(responses, "Final Answer: exhaustive search complete")

	client := llm.NewScriptedClient(responses...)
	loop := NewLoop("responder", client, lookupRegistry(t), LoopConfig{MaxSteps: 0})

	result := loop.Run(context.Background(), NewRunState(Message{Content: "hi"}))

	require.True(t, result.Success)
	assert.Equal(t, 15, result.Metadata["steps_taken"])
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := llm.NewScriptedClient("Final Answer: never reached")
	loop := NewLoop("responder", client, lookupRegistry(t), DefaultLoopConfig())

	result := loop.Run(ctx, NewRunState(Message{Content: "hi"}))
	require.False(t, result.Success)
	assert.Contains(t, result.Err, "cancelled")
}

func TestMessageValidate(t *testing.T) {
	assert.Error(t, Message{Content: "  "}.Validate())
	assert.NoError(t, Message{Content: "hello"}.Validate())
}

func TestFormatInputSections(t *testing.T) {
	loop := NewLoop("responder", llm.NewScriptedClient(), capability.NewRegistry(), DefaultLoopConfig())
	state := NewRunState(Message{Content: "body", Intent: "question"})
	state.Context = "kb excerpt"

	input := loop.formatInput(state)
	for _, want := range []string{"Email Content: body", "Intent: question", "Context: kb excerpt"} {
		if !strings.Contains(input, want) {
			t.Errorf("formatInput missing %q in %q", want, input)
		}
	}
}
