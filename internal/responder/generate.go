package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/manjuraavi/auto-responder/internal/agent"
	"github.com/manjuraavi/auto-responder/internal/logging"
	"github.com/manjuraavi/auto-responder/internal/retrieval"
	"github.com/manjuraavi/auto-responder/internal/signals"
	"github.com/manjuraavi/auto-responder/internal/templates"
)

// =============================================================================
// RESPONSE GENERATION
// =============================================================================

const (
	generateEmailCharLimit   = 2000
	generateContextCharLimit = 1000
)

// GenerateMeta describes how a response was produced.
type GenerateMeta struct {
	PrimaryTone    string
	SecondaryTones []string
	TemplateKey    string
	Urgent         bool
	GeneratedAt    time.Time
}

// Generate produces the reply text for a classified message with retrieved
// context. Tone analysis and template selection are deterministic; the
// completion smooths the skeleton into natural prose.
func (s *Service) Generate(ctx context.Context, msg agent.Message, bundle *retrieval.Bundle) (string, GenerateMeta, error) {
	if err := msg.Validate(); err != nil {
		return "", GenerateMeta{}, err
	}
	if msg.Intent == "" {
		return "", GenerateMeta{}, fmt.Errorf("message intent is required for generation")
	}

	contextText := ""
	if bundle != nil {
		contextText = joinContexts(bundle.Contexts)
	}

	tone := signals.AnalyzeTone(msg.Content, msg.Intent, nil)
	selection := templates.Prepare(msg.Intent, msg.Content, contextText)
	skeleton := templates.Render(selection.Body, selection.Variables)

	prompt := fmt.Sprintf(`You are an expert email response generator. Generate a contextually appropriate response using the provided information.

Original Email:
%s

Analysis:
- Intent: %s
- Context: %s
- Tone: %s (secondary: %s)

Template:
%s

Generate a response that:
1. Addresses the main points/concerns
2. Maintains appropriate tone
3. Includes relevant context
4. Is professional and helpful
5. Follows the selected template structure

Your response should be natural and not sound templated, while maintaining professionalism.`,
		firstN(msg.Content, generateEmailCharLimit),
		msg.Intent,
		firstN(contextText, generateContextCharLimit),
		tone.PrimaryTone,
		strings.Join(tone.SecondaryTones, ", "),
		skeleton)

	response, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return "", GenerateMeta{}, fmt.Errorf("completion failed: %w", err)
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return "", GenerateMeta{}, fmt.Errorf("empty response generated")
	}

	meta := GenerateMeta{
		PrimaryTone:    tone.PrimaryTone,
		SecondaryTones: tone.SecondaryTones,
		TemplateKey:    selection.Key,
		Urgent:         tone.UrgencyDetected,
		GeneratedAt:    time.Now().UTC(),
	}

	logging.ResponderDebug("Generated %d chars with template %s, tone %s",
		len(response), meta.TemplateKey, meta.PrimaryTone)
	return response, meta, nil
}
