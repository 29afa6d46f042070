package retrieval

import (
	"context"
	"sync"

	"github.com/manjuraavi/auto-responder/internal/agent"
	"github.com/manjuraavi/auto-responder/internal/llm"
	"github.com/manjuraavi/auto-responder/internal/logging"
)

// =============================================================================
// RETRIEVAL PIPELINE
// =============================================================================

// SearchHit is one raw result from a Searcher.
type SearchHit struct {
	Text   string
	Source string
	Score  float64
}

// Searcher is the backing search surface the pipeline fans out over.
type Searcher interface {
	Search(ctx context.Context, query string, k int, filter map[string]string) ([]SearchHit, error)
}

// Config tunes the pipeline.
type Config struct {
	MaxContexts      int     // Final context cap
	PerQueryLimit    int     // Results requested per expanded query
	Parallelism      int     // Concurrent searches
	ScoreThreshold   float64 // Relevance cutoff on the 1-10 scale
	PassageCharLimit int     // Passage truncation before relevance scoring
}

// DefaultConfig returns default pipeline tuning.
func DefaultConfig() Config {
	return Config{
		MaxContexts:      10,
		PerQueryLimit:    5,
		Parallelism:      4,
		ScoreThreshold:   6.0,
		PassageCharLimit: 1000,
	}
}

// Stats counts passages at each pipeline stage.
type Stats struct {
	TotalRetrieved     int     `json:"total_retrieved"`
	AfterDeduplication int     `json:"after_deduplication"`
	AfterFiltering     int     `json:"after_filtering"`
	FinalCount         int     `json:"final_count"`
	AverageScore       float64 `json:"average_score"`
}

// Bundle is the pipeline output for one message.
type Bundle struct {
	Contexts        []ScoredPassage
	PrimaryQuery    string
	ExpandedQueries []string
	Stats           Stats
}

// Pipeline runs plan -> expand -> fan-out -> dedup -> filter -> cap.
type Pipeline struct {
	planner  *Planner
	filter   *Filter
	searcher Searcher
	config   Config
}

// NewPipeline wires a retrieval pipeline over the given searcher.
func NewPipeline(client llm.Client, searcher Searcher, config Config) *Pipeline {
	if config.MaxContexts <= 0 {
		config.MaxContexts = DefaultConfig().MaxContexts
	}
	if config.PerQueryLimit <= 0 {
		config.PerQueryLimit = DefaultConfig().PerQueryLimit
	}
	if config.Parallelism <= 0 {
		config.Parallelism = DefaultConfig().Parallelism
	}
	if config.ScoreThreshold <= 0 {
		config.ScoreThreshold = DefaultConfig().ScoreThreshold
	}
	return &Pipeline{
		planner:  NewPlanner(client),
		filter:   NewFilter(client, config.ScoreThreshold, config.PassageCharLimit),
		searcher: searcher,
		config:   config,
	}
}

// Retrieve gathers the most relevant stored passages for a message. Individual
// query failures degrade to empty result sets; the pipeline itself only fails
// on a nil searcher or cancelled context.
func (p *Pipeline) Retrieve(ctx context.Context, msg agent.Message) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timer := logging.StartTimer(logging.CategoryRetrieval, "retrieve")
	defer timer.Stop()

	primary := p.planner.PrimaryQuery(ctx, msg)
	queries := p.planner.Expand(ctx, primary, msg)

	raw := p.fanOut(ctx, msg, queries)
	deduped := Dedup(raw)
	filtered := p.filter.Apply(ctx, msg, deduped)

	final := filtered
	if len(final) > p.config.MaxContexts {
		final = final[:p.config.MaxContexts]
	}

	var sum float64
	for _, c := range final {
		sum += c.Score
	}
	avg := 0.0
	if len(final) > 0 {
		avg = sum / float64(len(final))
	}

	bundle := &Bundle{
		Contexts:        final,
		PrimaryQuery:    primary,
		ExpandedQueries: queries,
		Stats: Stats{
			TotalRetrieved:     len(raw),
			AfterDeduplication: len(deduped),
			AfterFiltering:     len(filtered),
			FinalCount:         len(final),
			AverageScore:       avg,
		},
	}

	logging.Retrieval("Retrieved %d contexts (%d raw, %d deduped, %d filtered, avg %.1f)",
		bundle.Stats.FinalCount, bundle.Stats.TotalRetrieved,
		bundle.Stats.AfterDeduplication, bundle.Stats.AfterFiltering, avg)
	return bundle, nil
}

// fanOut searches every query concurrently, bounded by Parallelism, and
// concatenates results in query order.
func (p *Pipeline) fanOut(ctx context.Context, msg agent.Message, queries []string) []ScoredPassage {
	var filter map[string]string
	if msg.Intent != "" {
		filter = map[string]string{"intent": msg.Intent}
	}

	perQuery := make([][]ScoredPassage, len(queries))
	sem := make(chan struct{}, p.config.Parallelism)
	var wg sync.WaitGroup

	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			hits, err := p.searcher.Search(ctx, query, p.config.PerQueryLimit, filter)
			if err != nil {
				logging.Get(logging.CategoryRetrieval).Warn("Search failed for %q: %v", query, err)
				return
			}
			passages := make([]ScoredPassage, len(hits))
			for j, hit := range hits {
				passages[j] = ScoredPassage{
					Text:     hit.Text,
					SourceID: hit.Source,
					Score:    hit.Score,
				}
			}
			perQuery[i] = passages
		}(i, query)
	}
	wg.Wait()

	var all []ScoredPassage
	for _, passages := range perQuery {
		for _, passage := range passages {
			passage.OriginalIndex = len(all)
			all = append(all, passage)
		}
	}
	return all
}
