package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine returns canned vectors so similarity ordering is deterministic.
// It counts batch calls so tests can assert bulk ingestion embeds once.
type fakeEngine struct {
	vectors    map[string][]float32
	batchCalls int
}

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEngine) Name() string { return "fake" }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndCount(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Add(ctx, "p1", "password reset instructions", map[string]string{"intent": "question"}))
	require.NoError(t, s.Add(ctx, "p2", "refund policy details", map[string]string{"intent": "request"}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same id overwrites
	require.NoError(t, s.Add(ctx, "p1", "updated reset instructions", nil))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	assert.Error(t, s.Add(ctx, "", "content", nil))
	assert.Error(t, s.Add(ctx, "id", "   ", nil))
}

func TestAddBatchEmbedsOnce(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	engine := &fakeEngine{vectors: map[string][]float32{
		"login help":      {1, 0, 0},
		"how do I log in": {0.9, 0.1, 0},
		"billing cycles":  {0, 1, 0},
	}}
	s.SetEmbeddingEngine(engine)

	err := s.AddBatch(ctx, []Passage{
		{ID: "p1", Content: "how do I log in", Metadata: map[string]string{"intent": "question"}},
		{ID: "p2", Content: "billing cycles", Metadata: map[string]string{"intent": "question"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.batchCalls)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Batch-stored passages are searchable semantically.
	results, err := s.Search(ctx, "login help", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].ID)
}

func TestAddBatchValidation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	assert.NoError(t, s.AddBatch(ctx, nil))
	assert.Error(t, s.AddBatch(ctx, []Passage{{ID: "", Content: "x"}}))
	assert.Error(t, s.AddBatch(ctx, []Passage{{ID: "p1", Content: "  "}}))

	// A failed batch stores nothing.
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestKeywordSearchFallback(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Add(ctx, "p1", "How to reset your password", map[string]string{"source": "kb/auth.md"}))
	require.NoError(t, s.Add(ctx, "p2", "Billing cycles explained", nil))

	results, err := s.Search(ctx, "password reset", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kb/auth.md", results[0].Source)
	assert.Equal(t, 1.0, results[0].Score)
}

func TestKeywordSearchEmptyQuery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Add(ctx, "p1", "anything", nil))

	results, err := s.Search(ctx, "   ", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemanticSearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	s.SetEmbeddingEngine(&fakeEngine{vectors: map[string][]float32{
		"login help":             {1, 0, 0},
		"how do I log in":        {0.9, 0.1, 0},
		"shipping rates to oslo": {0, 1, 0},
	}})

	require.NoError(t, s.Add(ctx, "p1", "how do I log in", nil))
	require.NoError(t, s.Add(ctx, "p2", "shipping rates to oslo", nil))

	results, err := s.Search(ctx, "login help", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchIntentFilter(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Add(ctx, "p1", "refund policy for complaints", map[string]string{"intent": "complaint"}))
	require.NoError(t, s.Add(ctx, "p2", "refund policy general", map[string]string{"intent": "question"}))

	results, err := s.Search(ctx, "refund policy", 10, map[string]string{"intent": "complaint"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ID)
}

func TestSearchLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Add(ctx, "p1", "widget manual part one", nil))
	require.NoError(t, s.Add(ctx, "p2", "widget manual part two", nil))
	require.NoError(t, s.Add(ctx, "p3", "widget manual part three", nil))

	results, err := s.Search(ctx, "widget manual", 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Add(ctx, "p1", "stale entry", map[string]string{"batch": "old"}))
	require.NoError(t, s.Add(ctx, "p2", "fresh entry", map[string]string{"batch": "new"}))

	// Empty filter is a no-op, not a truncate
	n, err := s.Delete(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.Delete(ctx, map[string]string{"batch": "old"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	total, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	require.NoError(t, s.DeleteByID(ctx, "p2"))
	total, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
