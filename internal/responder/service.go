// Package responder wires classification, retrieval, signal analysis, and
// response generation into one message-processing service. Every stage
// dependency is injected; the package holds no globals.
package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/manjuraavi/auto-responder/internal/agent"
	"github.com/manjuraavi/auto-responder/internal/capability"
	"github.com/manjuraavi/auto-responder/internal/config"
	"github.com/manjuraavi/auto-responder/internal/llm"
	"github.com/manjuraavi/auto-responder/internal/logging"
	"github.com/manjuraavi/auto-responder/internal/retrieval"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service processes inbound messages end to end.
type Service struct {
	client   llm.Client
	searcher retrieval.Searcher
	pipeline *retrieval.Pipeline
	registry *capability.Registry
	config   *config.Config
}

// Outcome is the result of processing one message.
type Outcome struct {
	Response       string
	Classification Classification
	Contexts       []retrieval.ScoredPassage
	Stats          retrieval.Stats
	Tone           string
	TemplateKey    string
	Metadata       map[string]any
}

// NewService wires a responder service over the given completion client and
// search surface.
func NewService(client llm.Client, searcher retrieval.Searcher, cfg *config.Config) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("completion client is required")
	}
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Service{
		client:   client,
		searcher: searcher,
		config:   cfg,
		pipeline: retrieval.NewPipeline(client, searcher, retrieval.Config{
			MaxContexts:      cfg.Retrieval.MaxContexts,
			PerQueryLimit:    cfg.Retrieval.PerQueryLimit,
			Parallelism:      cfg.Retrieval.Parallelism,
			ScoreThreshold:   cfg.Retrieval.ScoreThreshold,
			PassageCharLimit: cfg.Retrieval.PassageCharLimit,
		}),
	}

	registry := capability.NewRegistry()
	if err := registry.Register(capability.Capability{
		Name:        "vector_search",
		Description: "Search the knowledge base for passages relevant to a query",
		Run:         s.vectorSearch,
	}); err != nil {
		return nil, err
	}
	s.registry = registry

	return s, nil
}

// Registry exposes the service's capability registry so callers can register
// additional capabilities before running the reasoning loop.
func (s *Service) Registry() *capability.Registry {
	return s.registry
}

// ProcessMessage runs the full chain: classify, retrieve, generate. The chain
// aborts on the first stage failure.
func (s *Service) ProcessMessage(ctx context.Context, msg agent.Message) (*Outcome, error) {
	timer := logging.StartTimer(logging.CategoryResponder, "process_message")
	defer timer.Stop()

	classification, err := s.Classify(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("intent classification failed: %w", err)
	}
	msg.Intent = classification.Intent

	bundle, err := s.Retrieve(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("context retrieval failed: %w", err)
	}

	response, meta, err := s.Generate(ctx, msg, bundle)
	if err != nil {
		return nil, fmt.Errorf("response generation failed: %w", err)
	}

	outcome := &Outcome{
		Response:       response,
		Classification: classification,
		Contexts:       bundle.Contexts,
		Stats:          bundle.Stats,
		Tone:           meta.PrimaryTone,
		TemplateKey:    meta.TemplateKey,
		Metadata: map[string]any{
			"processed_at":      time.Now().UTC().Format(time.RFC3339),
			"intent_confidence": classification.Confidence,
			"response_length":   len(response),
			"context_count":     bundle.Stats.FinalCount,
		},
	}

	logging.Responder("Processed message: intent=%s template=%s contexts=%d",
		classification.Intent, meta.TemplateKey, bundle.Stats.FinalCount)
	return outcome, nil
}

// Retrieve gathers relevant stored passages for the message.
func (s *Service) Retrieve(ctx context.Context, msg agent.Message) (*retrieval.Bundle, error) {
	return s.pipeline.Retrieve(ctx, msg)
}

// RunLoop processes the message through the iterative reasoning loop instead
// of the fixed chain, letting the model decide when to search.
func (s *Service) RunLoop(ctx context.Context, msg agent.Message) agent.Result {
	loop := agent.NewLoop("responder", s.client, s.registry, agent.LoopConfig{
		MaxSteps: s.config.Agent.MaxSteps,
	})
	state := agent.NewRunState(msg)
	return loop.Run(ctx, state)
}

// vectorSearch backs the vector_search capability.
func (s *Service) vectorSearch(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", fmt.Errorf("empty search query")
	}

	hits, err := s.searcher.Search(ctx, query, s.config.Retrieval.PerQueryLimit, nil)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(hits) == 0 {
		return "No relevant information found.", nil
	}

	var b strings.Builder
	for _, hit := range hits {
		fmt.Fprintf(&b, "- [%s] %s\n", hit.Source, hit.Text)
	}
	return b.String(), nil
}

// joinContexts flattens retrieved passages into one context block.
func joinContexts(contexts []retrieval.ScoredPassage) string {
	parts := make([]string, len(contexts))
	for i, c := range contexts {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n")
}
