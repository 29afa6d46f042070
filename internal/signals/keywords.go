// Package signals extracts deterministic keyword, sentiment, and tone signals
// from message text. Everything here is a pure function over fixed lexicons;
// no external calls. These signals gate and season the completion-based
// stages.
package signals

import (
	"regexp"
	"strings"

	"github.com/manjuraavi/auto-responder/internal/logging"
)

// =============================================================================
// KEYWORD SIGNALS
// =============================================================================

// intentKeywords maps each candidate intent to its keyword list.
var intentKeywords = map[string][]string{
	"question": {
		"how", "what", "when", "where", "why", "which", "who",
		"can you", "could you", "would you", "do you know",
		"help me understand", "clarify", "explain", "?",
		"wondering", "curious", "confused", "unclear",
	},
	"complaint": {
		"disappointed", "frustrated", "angry", "upset", "dissatisfied",
		"problem", "issue", "bug", "error", "broken", "not working",
		"terrible", "awful", "horrible", "worst", "bad experience",
		"complain", "complaint", "unacceptable", "poor service",
	},
	"escalation": {
		"urgent", "emergency", "asap", "immediately", "critical",
		"manager", "supervisor", "escalate", "higher up",
		"legal action", "lawsuit", "attorney", "lawyer",
		"unresolved", "no response", "ignored", "deadline",
	},
	"request": {
		"please", "can you", "could you", "would you", "need",
		"want", "require", "request", "asking for", "looking for",
		"help with", "assistance", "support", "provide", "send",
	},
}

// strongKeywords weigh 2 points instead of 1.
var strongKeywords = map[string]bool{
	"urgent":    true,
	"emergency": true,
	"asap":      true,
	"complaint": true,
}

// urgencyTiers in precedence order; a "high" match short-circuits.
var urgencyTiers = []struct {
	level    string
	keywords []string
}{
	{"high", []string{
		"urgent", "emergency", "asap", "immediately", "critical",
		"deadline", "time-sensitive", "rush", "priority",
	}},
	{"medium", []string{
		"soon", "quickly", "prompt", "timely", "important",
		"needs attention", "follow up",
	}},
	{"low", []string{
		"when convenient", "no rush", "whenever", "at your convenience",
		"low priority", "informational",
	}},
}

var sentenceSplitter = regexp.MustCompile(`[.!?]+`)

// Patterns records structural signals of a message.
type Patterns struct {
	HasQuestionMark bool
	HasExclamation  bool
	HasCaps         bool // any all-caps word longer than 2 chars
	WordCount       int
	SentenceCount   int
}

// KeywordSignals is the output of AnalyzeKeywords.
type KeywordSignals struct {
	IntentScores  map[string]int
	FoundKeywords map[string][]string
	Urgency       string // high, medium, low
	Patterns      Patterns
}

// AnalyzeKeywords scores each candidate intent by case-insensitive substring
// matches. Strong urgency/complaint markers count double.
func AnalyzeKeywords(text string) KeywordSignals {
	contentLower := strings.ToLower(text)

	intentScores := make(map[string]int, len(intentKeywords))
	foundKeywords := make(map[string][]string, len(intentKeywords))

	for intent, keywords := range intentKeywords {
		var matches []string
		score := 0
		for _, keyword := range keywords {
			if strings.Contains(contentLower, keyword) {
				matches = append(matches, keyword)
				if strongKeywords[keyword] {
					score += 2
				} else {
					score++
				}
			}
		}
		intentScores[intent] = score
		foundKeywords[intent] = matches
	}

	urgency := "low"
	for _, tier := range urgencyTiers {
		for _, keyword := range tier.keywords {
			if strings.Contains(contentLower, keyword) {
				urgency = tier.level
				break
			}
		}
		if urgency == tier.level && tier.level == "high" {
			break
		}
	}

	words := strings.Fields(text)
	hasCaps := false
	for _, word := range words {
		if len(word) > 2 && isAllCaps(word) {
			hasCaps = true
			break
		}
	}

	signals := KeywordSignals{
		IntentScores:  intentScores,
		FoundKeywords: foundKeywords,
		Urgency:       urgency,
		Patterns: Patterns{
			HasQuestionMark: strings.Contains(text, "?"),
			HasExclamation:  strings.Contains(text, "!"),
			HasCaps:         hasCaps,
			WordCount:       len(words),
			SentenceCount:   len(sentenceSplitter.Split(text, -1)),
		},
	}

	logging.SignalsDebug("Keyword signals: urgency=%s scores=%v", signals.Urgency, signals.IntentScores)
	return signals
}

// isAllCaps reports whether the word has at least one letter and every letter
// is uppercase.
func isAllCaps(word string) bool {
	hasLetter := false
	for _, r := range word {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		}
	}
	return hasLetter
}
