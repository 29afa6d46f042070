package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAIClientComplete(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  hello there  "}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})

	got, err := client.CompleteWithSystem(context.Background(), "be terse", "hi")
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if got != "hello there" {
		t.Errorf("expected trimmed completion, got %q", got)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("expected system+user messages, got %+v", gotReq.Messages)
	}
}

func TestOpenAIClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "model overloaded", "type": "server_error"},
		})
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})

	_, err := client.Complete(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error from API error payload")
	}
}

func TestOpenAIClientRequiresAPIKey(t *testing.T) {
	client := NewOpenAIClient("")
	if _, err := client.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error with empty API key")
	}
}

func TestScriptedClientQueue(t *testing.T) {
	client := NewScriptedClient("first", "second")

	got, err := client.Complete(context.Background(), "a")
	if err != nil || got != "first" {
		t.Fatalf("expected first, got %q err=%v", got, err)
	}
	got, err = client.Complete(context.Background(), "b")
	if err != nil || got != "second" {
		t.Fatalf("expected second, got %q err=%v", got, err)
	}
	if _, err := client.Complete(context.Background(), "c"); err == nil {
		t.Error("expected exhaustion error on third call")
	}
	if client.Calls() != 3 {
		t.Errorf("expected 3 recorded calls, got %d", client.Calls())
	}
}

func TestScriptedClientMatch(t *testing.T) {
	client := NewScriptedClient("fallback").Respond("classify", `{"intent":"question"}`)

	got, err := client.Complete(context.Background(), "please classify this message")
	if err != nil || got != `{"intent":"question"}` {
		t.Fatalf("expected match response, got %q err=%v", got, err)
	}
}

func TestScriptedClientError(t *testing.T) {
	sentinel := errors.New("boom")
	client := NewScriptedClientWithError(sentinel)
	if _, err := client.Complete(context.Background(), "x"); !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
}
