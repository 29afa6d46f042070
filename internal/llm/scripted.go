package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ScriptedClient is a deterministic Client for tests. It returns queued
// responses in order, or responses keyed by a prompt substring, and records
// every prompt it sees.
type ScriptedClient struct {
	mu        sync.Mutex
	queue     []string
	byMatch   map[string]string
	err       error
	Prompts   []string
	callCount int
}

// NewScriptedClient returns a client that replays the given responses in order.
func NewScriptedClient(responses ...string) *ScriptedClient {
	return &ScriptedClient{queue: responses}
}

// NewScriptedClientWithError returns a client whose every call fails.
func NewScriptedClientWithError(err error) *ScriptedClient {
	return &ScriptedClient{err: err}
}

// Respond registers a response for any prompt containing the given substring.
// Substring matches take precedence over the queue.
func (s *ScriptedClient) Respond(promptContains, response string) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byMatch == nil {
		s.byMatch = make(map[string]string)
	}
	s.byMatch[promptContains] = response
	return s
}

// Complete returns the next scripted response.
func (s *ScriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return s.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem returns the next scripted response.
func (s *ScriptedClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Prompts = append(s.Prompts, userPrompt)
	if s.err != nil {
		return "", s.err
	}

	for substr, resp := range s.byMatch {
		if strings.Contains(userPrompt, substr) || strings.Contains(systemPrompt, substr) {
			return resp, nil
		}
	}

	if s.callCount >= len(s.queue) {
		return "", fmt.Errorf("scripted client exhausted after %d calls", s.callCount)
	}
	resp := s.queue[s.callCount]
	s.callCount++
	return resp, nil
}

// Calls returns how many completions were requested.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Prompts)
}
