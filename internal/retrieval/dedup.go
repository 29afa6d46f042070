package retrieval

import "strings"

// =============================================================================
// DEDUPLICATION
// =============================================================================

// dedupKeyLen is how many leading characters identify a passage.
const dedupKeyLen = 100

// ScoredPassage is one retrieved passage moving through the pipeline.
type ScoredPassage struct {
	Text          string
	SourceID      string
	Score         float64
	OriginalIndex int
}

// Dedup collapses passages that share the same 100-character prefix after
// trimming. The first occurrence holds its position; a later duplicate with a
// strictly higher score replaces the kept entry's text, source, and score in
// place. Output order is insertion order of first occurrences.
func Dedup(passages []ScoredPassage) []ScoredPassage {
	kept := make([]ScoredPassage, 0, len(passages))
	index := make(map[string]int, len(passages))

	for _, p := range passages {
		key := dedupKey(p.Text)
		if at, ok := index[key]; ok {
			if p.Score > kept[at].Score {
				kept[at].Text = p.Text
				kept[at].SourceID = p.SourceID
				kept[at].Score = p.Score
			}
			continue
		}
		index[key] = len(kept)
		kept = append(kept, p)
	}
	return kept
}

func dedupKey(text string) string {
	return strings.TrimSpace(truncate(text, dedupKeyLen))
}
