// Package store provides the SQLite-backed passage store that serves as the
// retrieval corpus. Passages carry JSON-encoded embeddings; search ranks by
// cosine similarity against the query embedding, falling back to keyword
// matching when no embedding engine is configured.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/manjuraavi/auto-responder/internal/embedding"
	"github.com/manjuraavi/auto-responder/internal/logging"
)

// Store is a SQLite-backed passage store.
type Store struct {
	db     *sql.DB
	engine embedding.Engine
}

// SearchResult is a single passage hit.
type SearchResult struct {
	ID     string
	Text   string
	Source string
	Score  float64
}

// Passage is one unit of knowledge handed to AddBatch.
type Passage struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Open opens (or creates) the store at the given path.
// Pass ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite handles are not safe for concurrent writes
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS passages (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		embedding TEXT,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_passages_created ON passages(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Store("Passage store opened: %s", path)
	return &Store{db: db}, nil
}

// SetEmbeddingEngine configures semantic search. Without an engine the store
// degrades to keyword matching.
func (s *Store) SetEmbeddingEngine(engine embedding.Engine) {
	s.engine = engine
	if engine != nil {
		logging.Store("Embedding engine set: %s", engine.Name())
	}
}

// Add stores a passage. When an engine is configured the content is embedded
// at write time.
func (s *Store) Add(ctx context.Context, id, content string, metadata map[string]string) error {
	timer := logging.StartTimer(logging.CategoryStore, "Add")
	defer timer.Stop()

	if id == "" {
		return fmt.Errorf("passage id required")
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("passage content required")
	}

	var embeddingJSON sql.NullString
	if s.engine != nil {
		vec, err := s.engine.Embed(ctx, content)
		if err != nil {
			return fmt.Errorf("failed to generate embedding: %w", err)
		}
		data, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("failed to serialize embedding: %w", err)
		}
		embeddingJSON = sql.NullString{String: string(data), Valid: true}
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO passages (id, content, embedding, metadata, created_at) VALUES (?, ?, ?, ?, ?)",
		id, content, embeddingJSON, string(metaJSON), time.Now().UTC(),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store passage %s: %v", id, err)
		return fmt.Errorf("failed to store passage: %w", err)
	}

	logging.StoreDebug("Stored passage %s (length=%d, embedded=%v)", id, len(content), embeddingJSON.Valid)
	return nil
}

// AddBatch stores several passages in one transaction. When an engine is
// configured the contents are embedded in a single batch call, letting
// backends with a native batch API amortize the round trip.
func (s *Store) AddBatch(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	timer := logging.StartTimer(logging.CategoryStore, "AddBatch")
	defer timer.Stop()

	for i, p := range passages {
		if p.ID == "" {
			return fmt.Errorf("passage %d: id required", i)
		}
		if strings.TrimSpace(p.Content) == "" {
			return fmt.Errorf("passage %d (%s): content required", i, p.ID)
		}
	}

	embeddings := make([]sql.NullString, len(passages))
	if s.engine != nil {
		texts := make([]string, len(passages))
		for i, p := range passages {
			texts[i] = p.Content
		}
		vectors, err := s.engine.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(vectors) != len(passages) {
			return fmt.Errorf("engine returned %d embeddings for %d passages", len(vectors), len(passages))
		}
		for i, vec := range vectors {
			data, err := json.Marshal(vec)
			if err != nil {
				return fmt.Errorf("failed to serialize embedding: %w", err)
			}
			embeddings[i] = sql.NullString{String: string(data), Valid: true}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i, p := range passages {
		metaJSON, err := json.Marshal(p.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO passages (id, content, embedding, metadata, created_at) VALUES (?, ?, ?, ?, ?)",
			p.ID, p.Content, embeddings[i], string(metaJSON), now,
		); err != nil {
			return fmt.Errorf("failed to store passage %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	logging.Store("Stored %d passages in one batch (embedded=%v)", len(passages), s.engine != nil)
	return nil
}

// Search returns up to k passages ranked by relevance to the query.
// A filter restricts results to passages whose metadata contains every
// key/value pair. An empty result set is valid.
func (s *Store) Search(ctx context.Context, query string, k int, filter map[string]string) ([]SearchResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Search")
	defer timer.Stop()

	if k <= 0 {
		k = 10
	}

	if s.engine == nil {
		return s.searchKeyword(ctx, query, k, filter)
	}
	return s.searchSemantic(ctx, query, k, filter)
}

// searchSemantic ranks all embedded passages by cosine similarity.
func (s *Store) searchSemantic(ctx context.Context, query string, k int, filter map[string]string) ([]SearchResult, error) {
	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content, embedding, metadata FROM passages WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var candidates []SearchResult
	for rows.Next() {
		var id, content, embeddingJSON string
		var metaJSON sql.NullString
		if err := rows.Scan(&id, &content, &embeddingJSON, &metaJSON); err != nil {
			continue
		}

		meta := decodeMetadata(metaJSON.String)
		if !matchesFilter(meta, filter) {
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &vec); err != nil {
			logging.StoreDebug("Skipping passage %s: bad embedding: %v", id, err)
			continue
		}

		similarity, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}

		candidates = append(candidates, SearchResult{
			ID:     id,
			Text:   content,
			Source: sourceOf(meta, id),
			Score:  similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search scan failed: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	logging.StoreDebug("Semantic search %q returned %d results", query, len(candidates))
	return candidates, nil
}

// searchKeyword matches passages containing any query term. Scores reflect
// the fraction of terms matched so results still rank sensibly.
func (s *Store) searchKeyword(ctx context.Context, query string, k int, filter map[string]string) ([]SearchResult, error) {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, content, metadata FROM passages")
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var candidates []SearchResult
	for rows.Next() {
		var id, content string
		var metaJSON sql.NullString
		if err := rows.Scan(&id, &content, &metaJSON); err != nil {
			continue
		}

		meta := decodeMetadata(metaJSON.String)
		if !matchesFilter(meta, filter) {
			continue
		}

		lower := strings.ToLower(content)
		matched := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}

		candidates = append(candidates, SearchResult{
			ID:     id,
			Text:   content,
			Source: sourceOf(meta, id),
			Score:  float64(matched) / float64(len(keywords)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search scan failed: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	logging.StoreDebug("Keyword search %q returned %d results", query, len(candidates))
	return candidates, nil
}

// Delete removes passages whose metadata matches the filter. An empty filter
// deletes nothing. Returns the number of passages removed.
func (s *Store) Delete(ctx context.Context, filter map[string]string) (int, error) {
	if len(filter) == 0 {
		return 0, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, metadata FROM passages")
	if err != nil {
		return 0, fmt.Errorf("delete scan failed: %w", err)
	}

	var doomed []string
	for rows.Next() {
		var id string
		var metaJSON sql.NullString
		if err := rows.Scan(&id, &metaJSON); err != nil {
			continue
		}
		if matchesFilter(decodeMetadata(metaJSON.String), filter) {
			doomed = append(doomed, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("delete scan failed: %w", err)
	}

	for _, id := range doomed {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM passages WHERE id = ?", id); err != nil {
			return 0, fmt.Errorf("failed to delete passage %s: %w", id, err)
		}
	}

	logging.Store("Deleted %d passages", len(doomed))
	return len(doomed), nil
}

// DeleteByID removes a single passage.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM passages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete passage %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored passages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM passages").Scan(&n); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func decodeMetadata(metaJSON string) map[string]string {
	if metaJSON == "" {
		return nil
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil
	}
	return meta
}

func matchesFilter(meta, filter map[string]string) bool {
	for key, want := range filter {
		if meta[key] != want {
			return false
		}
	}
	return true
}

func sourceOf(meta map[string]string, id string) string {
	if meta != nil && meta["source"] != "" {
		return meta["source"]
	}
	return id
}
