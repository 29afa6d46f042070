package signals

import (
	"strings"

	"github.com/manjuraavi/auto-responder/internal/logging"
)

// =============================================================================
// TONE SIGNAL
// =============================================================================

// toneMapping maps intent to its base response-tone list.
var toneMapping = map[string][]string{
	"question":   {"helpful", "informative", "professional"},
	"complaint":  {"apologetic", "understanding", "solution-focused"},
	"escalation": {"urgent", "professional", "reassuring"},
	"request":    {"accommodating", "professional", "helpful"},
}

var negativeIndicators = []string{
	"frustrated", "disappointed", "angry", "upset", "terrible",
	"awful", "horrible", "unacceptable", "disgusted", "furious",
}

var positiveIndicators = []string{
	"thank", "appreciate", "great", "excellent", "wonderful",
	"pleased", "satisfied", "happy", "love", "impressed",
}

var urgencyIndicators = []string{
	"urgent", "asap", "immediately", "emergency", "critical",
}

// SenderHistory carries what is known about a sender across messages.
type SenderHistory struct {
	VIPStatus bool
}

// ToneSignal is the output of AnalyzeTone.
type ToneSignal struct {
	PrimaryTone     string
	SecondaryTones  []string
	Sentiment       string // negative, positive, neutral
	UrgencyDetected bool
	VIPCustomer     bool
	Confidence      float64
}

// AnalyzeTone derives the response tone from intent and emotional indicators.
// Negative sentiment prepends "apologetic" and appends "understanding";
// positive sentiment appends "friendly".
func AnalyzeTone(text, intent string, history *SenderHistory) ToneSignal {
	contentLower := strings.ToLower(text)

	negativeCount := 0
	for _, word := range negativeIndicators {
		if strings.Contains(contentLower, word) {
			negativeCount++
		}
	}
	positiveCount := 0
	for _, word := range positiveIndicators {
		if strings.Contains(contentLower, word) {
			positiveCount++
		}
	}

	base, ok := toneMapping[intent]
	if !ok {
		base = []string{"professional"}
	}
	tones := make([]string, len(base))
	copy(tones, base)

	if negativeCount > positiveCount && negativeCount > 0 {
		if !containsTone(tones, "apologetic") {
			tones = append([]string{"apologetic"}, tones...)
		}
		if !containsTone(tones, "understanding") {
			tones = append(tones, "understanding")
		}
	} else if positiveCount > negativeCount && positiveCount > 0 {
		if !containsTone(tones, "friendly") {
			tones = append(tones, "friendly")
		}
	}

	isUrgent := false
	for _, indicator := range urgencyIndicators {
		if strings.Contains(contentLower, indicator) {
			isUrgent = true
			break
		}
	}

	sentiment := "neutral"
	switch {
	case negativeCount > positiveCount:
		sentiment = "negative"
	case positiveCount > 0:
		sentiment = "positive"
	}

	isVIP := history != nil && history.VIPStatus

	confidence := 0.2 * float64(len(tones)+negativeCount+positiveCount)
	if confidence > 1.0 {
		confidence = 1.0
	}

	signal := ToneSignal{
		PrimaryTone:     tones[0],
		SecondaryTones:  tones[1:],
		Sentiment:       sentiment,
		UrgencyDetected: isUrgent,
		VIPCustomer:     isVIP,
		Confidence:      confidence,
	}

	logging.SignalsDebug("Tone signal: primary=%s sentiment=%s urgent=%v confidence=%.2f",
		signal.PrimaryTone, signal.Sentiment, signal.UrgencyDetected, signal.Confidence)
	return signal
}

func containsTone(tones []string, tone string) bool {
	for _, t := range tones {
		if t == tone {
			return true
		}
	}
	return false
}
