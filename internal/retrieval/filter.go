package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/manjuraavi/auto-responder/internal/agent"
	"github.com/manjuraavi/auto-responder/internal/llm"
	"github.com/manjuraavi/auto-responder/internal/logging"
)

// =============================================================================
// RELEVANCE FILTER
// =============================================================================

// emailCharLimit caps the email excerpt in the scoring prompt.
const emailCharLimit = 500

// defaultRelevance is assumed when a score cannot be obtained.
const defaultRelevance = 5.0

// Filter scores passages for relevance against the message and keeps the ones
// above the threshold.
type Filter struct {
	client    llm.Client
	threshold float64
	charLimit int
}

// NewFilter creates a relevance filter. charLimit caps how much of each
// passage is shown to the scorer.
func NewFilter(client llm.Client, threshold float64, charLimit int) *Filter {
	if charLimit <= 0 {
		charLimit = 1000
	}
	return &Filter{client: client, threshold: threshold, charLimit: charLimit}
}

// Apply scores every passage on a 1-10 scale, sorts by score descending
// (stable, so ties keep their incoming order), and retains passages at or
// above the threshold. A scoring failure never drops a passage; it scores
// defaultRelevance instead.
func (f *Filter) Apply(ctx context.Context, msg agent.Message, passages []ScoredPassage) []ScoredPassage {
	scored := make([]ScoredPassage, len(passages))
	for i, p := range passages {
		p.Score = f.score(ctx, msg, p.Text)
		p.OriginalIndex = i
		scored[i] = p
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	kept := make([]ScoredPassage, 0, len(scored))
	for _, p := range scored {
		if p.Score >= f.threshold {
			kept = append(kept, p)
		}
	}

	logging.RetrievalDebug("Relevance filter kept %d of %d passages (threshold %.1f)",
		len(kept), len(passages), f.threshold)
	return kept
}

// score asks the client for a 1-10 relevance rating, clamped into range.
func (f *Filter) score(ctx context.Context, msg agent.Message, passage string) float64 {
	intent := msg.Intent
	if intent == "" {
		intent = "general"
	}

	prompt := fmt.Sprintf(`Rate the relevance of this context to the email on a scale of 1-10.

Email Content: %s
Email Intent: %s

Context: %s

Consider:
- Does the context help answer the email's question?
- Is the context related to the email's topic?
- Would this context be useful for generating a response?

Provide only the numeric score (1-10):`,
		truncate(msg.Content, emailCharLimit), intent, truncate(passage, f.charLimit))

	output, err := f.client.Complete(ctx, prompt)
	if err != nil {
		logging.Get(logging.CategoryRetrieval).Warn("Relevance scoring failed: %v", err)
		return defaultRelevance
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(output), 64)
	if err != nil {
		return defaultRelevance
	}
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}
