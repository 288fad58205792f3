package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/mbright/glimpse/pkg/llm"
	"github.com/mbright/glimpse/pkg/models"
)

// ErrEmptyEmbedding indicates the embedding provider returned no vector, or
// a vector of length zero, for a document. The entry is not inserted.
var ErrEmptyEmbedding = errors.New("embedding provider returned an empty vector")

// Entry is one indexed activity record. Entries are never mutated after
// insertion, only appended.
type Entry struct {
	ID        string
	Embedding []float32
	Document  string
	Record    models.ActivityRecord
}

// SearchResult is a scored entry returned from a query.
type SearchResult struct {
	Document string
	Record   models.ActivityRecord
	Score    float32
}

// Predicate filters candidate entries by their record attributes.
type Predicate func(models.ActivityRecord) bool

// Store is an append-only, in-memory similarity index over activity
// records. Lookup is a brute-force cosine scan over every entry; at
// personal scale that is the whole point, not a shortcut to fix later.
type Store struct {
	embedder llm.Embedder

	mu      sync.RWMutex
	entries []Entry
}

// NewStore creates an empty index backed by the given embedding provider.
func NewStore(embedder llm.Embedder) *Store {
	return &Store{embedder: embedder}
}

// Insert embeds the document and appends an entry for it. On embedding
// failure nothing is inserted; callers decide whether to surface or swallow
// the error (ingestion logs and moves on).
func (s *Store) Insert(ctx context.Context, id, document string, record models.ActivityRecord) error {
	vectors, err := s.embedder.Embed(ctx, []string{document})
	if err != nil {
		return fmt.Errorf("embed document %s: %w", id, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return fmt.Errorf("document %s: %w", id, ErrEmptyEmbedding)
	}

	s.mu.Lock()
	s.entries = append(s.entries, Entry{
		ID:        id,
		Embedding: vectors[0],
		Document:  document,
		Record:    record,
	})
	s.mu.Unlock()

	return nil
}

// Query embeds the query text, scores every stored entry by cosine
// similarity, and returns up to limit results in descending score order.
// A non-nil predicate excludes entries whose record it rejects. Entries
// whose vector cannot be compared against the query (zero norm, mismatched
// length) are excluded from ranking entirely.
func (s *Store) Query(ctx context.Context, queryText string, limit int, predicate Predicate) ([]SearchResult, error) {
	vectors, err := s.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	queryVec := vectors[0]

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0, len(s.entries))
	for _, entry := range s.entries {
		if predicate != nil && !predicate(entry.Record) {
			continue
		}
		score, ok := cosineSimilarity(queryVec, entry.Embedding)
		if !ok {
			continue
		}
		results = append(results, SearchResult{
			Document: entry.Document,
			Record:   entry.Record,
			Score:    score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}

	return results, nil
}

// Count returns the number of indexed entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// cosineSimilarity returns the cosine of the angle between a and b. The
// second return is false when the similarity is undefined (mismatched or
// zero length, zero norm); such pairs must not be ranked.
func cosineSimilarity(a, b []float32) (float32, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, false
	}

	return float32(dot / denom), true
}
