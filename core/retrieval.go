package core

import "context"

// Embedder turns texts into dense vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorIndex answers nearest-neighbour queries. Implementations return at
// most k candidates ordered by descending Score, with Vector populated so
// callers can run diversity selection.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, k int) ([]Candidate, error)
}

// VectorWriter is implemented by indexes that accept new documents.
type VectorWriter interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, docs []Document, vectors [][]float32) error
}
