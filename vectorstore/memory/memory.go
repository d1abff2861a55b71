// Package memory implements an in-process vector index using brute-force
// cosine similarity. It suits demos, tests and catalogs of a few hundred
// thousand items.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/vectorstore"
)

type entry struct {
	doc    core.Document
	vector []float32
}

// Index is a concurrency-safe in-memory vector index.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   []entry
	byID      map[string]int
}

// New creates an empty index.
func New() *Index { return &Index{byID: map[string]int{}} }

// Init sets the vector dimension and clears the index.
func (s *Index) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.entries = nil
	s.byID = map[string]int{}
	return nil
}

// Upsert adds or replaces documents by ID. Vectors are stored normalized.
func (s *Index) Upsert(_ context.Context, docs []core.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 && len(vectors) > 0 {
		s.dimension = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for i, d := range docs {
		e := entry{doc: d, vector: vectorstore.Normalize(vectors[i])}
		if j, ok := s.byID[d.ID]; ok {
			s.entries[j] = e
			continue
		}
		s.byID[d.ID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return nil
}

// Search implements core.VectorIndex.
func (s *Index) Search(ctx context.Context, vector []float32, k int) ([]core.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 {
		k = 5
	}
	q := vectorstore.Normalize(vector)
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(s.entries))
	for i, e := range s.entries {
		scores[i] = scored{i, vectorstore.Dot(e.vector, q)}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })
	if k > len(scores) {
		k = len(scores)
	}
	out := make([]core.Candidate, 0, k)
	for _, sc := range scores[:k] {
		e := s.entries[sc.idx]
		vec := append([]float32(nil), e.vector...)
		out = append(out, catalog.CandidateFromMetadata(e.doc.ID, sc.score, e.doc.Metadata, vec))
	}
	return out, nil
}

// Len returns the number of indexed documents.
func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Count returns the number of indexed documents.
func (s *Index) Count(_ context.Context) (int, error) { return s.Len(), nil }

// Has reports whether a document ID is indexed.
func (s *Index) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}
