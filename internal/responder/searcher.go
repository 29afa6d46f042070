package responder

import (
	"context"

	"github.com/manjuraavi/auto-responder/internal/retrieval"
	"github.com/manjuraavi/auto-responder/internal/store"
)

// StoreSearcher adapts the vector store to the retrieval search surface.
type StoreSearcher struct {
	Store *store.Store
}

// Search runs a store query and converts the results.
func (s *StoreSearcher) Search(ctx context.Context, query string, k int, filter map[string]string) ([]retrieval.SearchHit, error) {
	results, err := s.Store.Search(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}

	hits := make([]retrieval.SearchHit, len(results))
	for i, r := range results {
		hits[i] = retrieval.SearchHit{
			Text:   r.Text,
			Source: r.Source,
			Score:  r.Score,
		}
	}
	return hits, nil
}
