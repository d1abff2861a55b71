package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/shopmesh/core"
)

// StaticIndex is a core.VectorIndex returning fixed candidates.
type StaticIndex struct {
	mu         sync.Mutex
	Candidates []core.Candidate
	Err        error
	Delay      time.Duration
	Calls      int
	LastK      int
}

// Search implements core.VectorIndex.
func (s *StaticIndex) Search(ctx context.Context, _ []float32, k int) ([]core.Candidate, error) {
	s.mu.Lock()
	s.Calls++
	s.LastK = k
	cands, err, delay := s.Candidates, s.Err, s.Delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	if k < len(cands) {
		cands = cands[:k]
	}
	return append([]core.Candidate(nil), cands...), nil
}

// CallCount returns the number of Search calls.
func (s *StaticIndex) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}

// ConstEmbedder returns the same vector for every text.
type ConstEmbedder struct {
	Vector []float32
	Err    error
}

// Embed implements core.Embedder.
func (e ConstEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), e.Vector...)
	}
	return out, nil
}

// Dimension implements core.Embedder.
func (e ConstEmbedder) Dimension() int { return len(e.Vector) }

// FailingSessionStore is a core.SessionStore whose operations fail on demand.
type FailingSessionStore struct {
	core.SessionStore
	GetErr error
	PutErr error
}

// Get implements core.SessionStore.
func (f *FailingSessionStore) Get(ctx context.Context, id string) (*core.Session, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	return f.SessionStore.Get(ctx, id)
}

// Put implements core.SessionStore.
func (f *FailingSessionStore) Put(ctx context.Context, s *core.Session) error {
	if f.PutErr != nil {
		return f.PutErr
	}
	return f.SessionStore.Put(ctx, s)
}
