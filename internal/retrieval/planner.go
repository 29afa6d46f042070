// Package retrieval implements the multi-query context retrieval pipeline:
// query planning and expansion, parallel search fan-out, prefix-keyed
// deduplication, LLM relevance filtering, and top-K selection.
package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/manjuraavi/auto-responder/internal/agent"
	"github.com/manjuraavi/auto-responder/internal/llm"
	"github.com/manjuraavi/auto-responder/internal/logging"
)

// =============================================================================
// QUERY PLANNER
// =============================================================================

// stopWords dropped during deterministic keyword extraction.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true,
	"would": true, "could": true, "should": true, "may": true, "might": true,
	"can": true, "i": true, "you": true, "he": true, "she": true, "it": true,
	"we": true, "they": true, "my": true, "your": true, "his": true,
	"her": true, "its": true, "our": true, "their": true,
}

var enumerationMarker = regexp.MustCompile(`^\d+\.\s*`)

// Planner derives search queries from a message.
type Planner struct {
	client llm.Client
}

// NewPlanner creates a query planner.
func NewPlanner(client llm.Client) *Planner {
	return &Planner{client: client}
}

// PrimaryQuery compresses the message into a short search query. Fallback
// chain when the completion is empty, too short, or fails: deterministic
// keyword extraction, then the subject, then the first 50 characters of the
// body.
func (p *Planner) PrimaryQuery(ctx context.Context, msg agent.Message) string {
	intent := msg.Intent
	if intent == "" {
		intent = "general inquiry"
	}

	prompt := fmt.Sprintf(`Extract the main topics and key information from this email to create a search query.
Focus on the core question or issue that needs to be addressed.

Email Content: %s
Intent: %s

Generate a concise search query (3-8 words) that would help find relevant information:`,
		truncate(msg.Content, 1000), intent)

	query, err := p.client.Complete(ctx, prompt)
	if err != nil {
		logging.Get(logging.CategoryRetrieval).Warn("Query generation failed: %v", err)
		query = ""
	}
	query = strings.TrimSpace(query)

	if len(query) < 3 {
		query = keywordQuery(msg.Content)
	}
	if query == "" {
		query = msg.Subject
	}
	if query == "" {
		query = truncate(msg.Content, 50)
	}

	logging.RetrievalDebug("Primary query: %q", query)
	return query
}

// keywordQuery lower-cases the body, drops stop words and short tokens, and
// joins the first five survivors in original order.
func keywordQuery(content string) string {
	words := strings.Fields(strings.ToLower(content))
	var keywords []string
	for _, word := range words {
		if !stopWords[word] && len(word) > 3 {
			keywords = append(keywords, word)
			if len(keywords) == 5 {
				break
			}
		}
	}
	return strings.Join(keywords, " ")
}

// Expand asks the client for 3-5 alternative phrasings. The result always
// starts with the primary query and contains no duplicates (case-sensitive,
// first occurrence wins). Expansion failure is never fatal: any error returns
// [primary] only.
func (p *Planner) Expand(ctx context.Context, primary string, msg agent.Message) []string {
	intent := msg.Intent
	if intent == "" {
		intent = "general"
	}
	extra := msg.Subject
	if extra == "" {
		extra = "no additional context"
	}

	prompt := fmt.Sprintf(`Expand the following search query to improve information retrieval.
Add relevant synonyms, related terms, and alternative phrasings.

Original Query: %s
Email Intent: %s
Additional Context: %s

Generate 3-5 alternative query formulations that would help find relevant information.
Only provide the expanded queries, one per line, without numbering.`,
		primary, intent, extra)

	output, err := p.client.Complete(ctx, prompt)
	if err != nil {
		logging.Get(logging.CategoryRetrieval).Warn("Query expansion failed: %v", err)
		return []string{primary}
	}

	var alternatives []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(enumerationMarker.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		alternatives = append(alternatives, line)
		if len(alternatives) == 5 {
			break
		}
	}

	queries := dedupStrings(append([]string{primary}, alternatives...))
	logging.RetrievalDebug("Expanded %q into %d queries", primary, len(queries))
	return queries
}

// dedupStrings removes exact duplicates while preserving first-occurrence
// order.
func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
