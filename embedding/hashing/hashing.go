// Package hashing implements a deterministic, dependency-free embedder using
// the hashing trick over unigrams and bigrams.
package hashing

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/hupe1980/shopmesh/internal/util"
)

// Options configure the hashing embedder.
type Options struct {
	Dimension int
	Bigrams   bool
}

// Embedder maps texts onto L2-normalized sparse-ish vectors.
type Embedder struct {
	opts Options
}

// New creates a hashing embedder (default 384 dimensions with bigrams).
func New(optFns ...func(o *Options)) *Embedder {
	opts := Options{Dimension: 384, Bigrams: true}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Dimension <= 0 {
		opts.Dimension = 384
	}
	return &Embedder{opts: opts}
}

// Dimension returns the vector size.
func (e *Embedder) Dimension() int { return e.opts.Dimension }

// Embed implements core.Embedder.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(t)
	}
	return out, nil
}

func (e *Embedder) embedOne(text string) []float32 {
	vec := make([]float32, e.opts.Dimension)
	toks := util.Tokenize(text)
	for i, tok := range toks {
		e.add(vec, tok, 1)
		if e.opts.Bigrams && i > 0 {
			e.add(vec, toks[i-1]+" "+tok, 0.5)
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// add hashes feature into a bucket; a second hash bit picks the sign so
// collisions cancel out on average.
func (e *Embedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(len(vec)))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
