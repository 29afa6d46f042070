package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/manjuraavi/auto-responder/internal/agent"
	"github.com/manjuraavi/auto-responder/internal/logging"
	"github.com/manjuraavi/auto-responder/internal/signals"
)

// =============================================================================
// INTENT CLASSIFICATION
// =============================================================================

// supportedIntents in deterministic priority order for keyword voting.
var supportedIntents = []string{"question", "complaint", "escalation", "request"}

const classifyCharLimit = 1000

// Classification is the result of intent analysis.
type Classification struct {
	Intent      string   `json:"intent"`
	Confidence  float64  `json:"confidence"`
	SubIntents  []string `json:"sub_intents,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	// Method records which path produced the result: llm or keywords.
	Method string `json:"method"`
}

// SupportedIntents returns the intent categories the classifier can emit.
func SupportedIntents() []string {
	out := make([]string, len(supportedIntents))
	copy(out, supportedIntents)
	return out
}

// Classify determines the message intent. The completion path asks for a JSON
// verdict; on call failure, unparseable output, or an unsupported intent the
// classifier falls back to deterministic keyword voting.
func (s *Service) Classify(ctx context.Context, msg agent.Message) (Classification, error) {
	if err := msg.Validate(); err != nil {
		return Classification{}, err
	}

	subject := msg.Subject
	if subject == "" {
		subject = "No subject"
	}

	var intents strings.Builder
	for _, intent := range supportedIntents {
		fmt.Fprintf(&intents, "- %s\n", intent)
	}

	prompt := fmt.Sprintf(`Analyze the following email and classify its primary intent.

Email Subject: %s
Email Content: %s

Available Intents:
%s
Classify the email's intent and respond with JSON only:
{
    "intent": "primary_intent",
    "confidence": 0.0 to 1.0,
    "sub_intents": ["secondary_intent"],
    "explanation": "Brief explanation of classification"
}

Ensure the intent matches one of the available intents exactly.`,
		subject, firstN(msg.Content, classifyCharLimit), intents.String())

	output, err := s.client.Complete(ctx, prompt)
	if err != nil {
		logging.Get(logging.CategoryResponder).Warn("Intent classification call failed: %v", err)
		return s.classifyByKeywords(msg), nil
	}

	classification, ok := parseClassification(output)
	if !ok {
		logging.ResponderDebug("Unparseable classification output, using keyword vote")
		return s.classifyByKeywords(msg), nil
	}

	logging.ResponderDebug("Classified intent=%s confidence=%.2f", classification.Intent, classification.Confidence)
	return classification, nil
}

// parseClassification extracts and validates a JSON verdict. Code fences are
// tolerated.
func parseClassification(output string) (Classification, bool) {
	text := strings.TrimSpace(output)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Classification{}, false
	}

	var c Classification
	if err := json.Unmarshal([]byte(text[start:end+1]), &c); err != nil {
		return Classification{}, false
	}

	c.Intent = strings.ToLower(strings.TrimSpace(c.Intent))
	if !isSupportedIntent(c.Intent) {
		return Classification{}, false
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	c.Method = "llm"
	return c, true
}

// classifyByKeywords votes with the keyword signal scores. Ties resolve in
// supportedIntents order; an all-zero vote defaults to question.
func (s *Service) classifyByKeywords(msg agent.Message) Classification {
	kw := signals.AnalyzeKeywords(msg.Content)

	best := "question"
	bestScore := 0
	for _, intent := range supportedIntents {
		if kw.IntentScores[intent] > bestScore {
			best = intent
			bestScore = kw.IntentScores[intent]
		}
	}

	return Classification{
		Intent:      best,
		Confidence:  0.5,
		Explanation: "keyword vote",
		Method:      "keywords",
	}
}

func isSupportedIntent(intent string) bool {
	for _, s := range supportedIntents {
		if s == intent {
			return true
		}
	}
	return false
}

// firstN returns the first n runes of s.
func firstN(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
