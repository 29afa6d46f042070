package signals

import (
	"math"
	"strings"
)

// =============================================================================
// SENTIMENT SIGNAL
// =============================================================================

var positiveWords = []string{
	"good", "great", "excellent", "wonderful", "amazing", "fantastic",
	"happy", "pleased", "satisfied", "thank", "appreciate", "love",
}

var negativeWords = []string{
	"bad", "terrible", "awful", "horrible", "disappointed", "frustrated",
	"angry", "upset", "hate", "annoyed", "irritated", "dissatisfied",
}

// SentimentSignal is the output of AnalyzeSentiment.
type SentimentSignal struct {
	Sentiment     string // positive, negative, neutral
	Score         float64
	PositiveCount int
	NegativeCount int
	Intensity     float64
}

// AnalyzeSentiment scores text as (positive - negative) / word count and
// classifies with a +/-0.02 neutral band.
func AnalyzeSentiment(text string) SentimentSignal {
	contentLower := strings.ToLower(text)

	positiveCount := 0
	for _, word := range positiveWords {
		if strings.Contains(contentLower, word) {
			positiveCount++
		}
	}

	negativeCount := 0
	for _, word := range negativeWords {
		if strings.Contains(contentLower, word) {
			negativeCount++
		}
	}

	totalWords := len(strings.Fields(contentLower))
	var score float64
	if totalWords > 0 {
		score = float64(positiveCount-negativeCount) / float64(totalWords)
	}

	sentiment := "neutral"
	switch {
	case score > 0.02:
		sentiment = "positive"
	case score < -0.02:
		sentiment = "negative"
	}

	return SentimentSignal{
		Sentiment:     sentiment,
		Score:         score,
		PositiveCount: positiveCount,
		NegativeCount: negativeCount,
		Intensity:     math.Abs(score),
	}
}
