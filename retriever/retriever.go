package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/logging"
)

// Options configure a Retriever.
type Options struct {
	// K is used when Search is called with k <= 0.
	K int
	// MaxK caps k.
	MaxK int
	// FetchMultiplier sets the over-fetch pool size (k * FetchMultiplier)
	// handed to MMR.
	FetchMultiplier int
	// Lambda trades relevance (1.0) against diversity (0.0) in MMR.
	Lambda float64
	// KeywordWeight and PriceWeight scale the rerank boosts.
	KeywordWeight float64
	PriceWeight   float64
	Timeout       time.Duration
	Logger        logging.Logger
	// OnSearch is called after every backend round trip.
	OnSearch func(duration time.Duration, err error)
}

// DefaultOptions returns the baseline configuration.
func DefaultOptions() Options {
	return Options{
		K:               3,
		MaxK:            20,
		FetchMultiplier: 4,
		Lambda:          0.5,
		KeywordWeight:   0.15,
		PriceWeight:     0.1,
		Timeout:         10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
}

// Retriever is safe for concurrent use.
type Retriever struct {
	embedder core.Embedder
	index    core.VectorIndex
	opts     Options
}

// New creates a Retriever.
func New(embedder core.Embedder, index core.VectorIndex, optFns ...func(o *Options)) *Retriever {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.K <= 0 {
		opts.K = 3
	}
	if opts.MaxK < opts.K {
		opts.MaxK = opts.K
	}
	if opts.FetchMultiplier < 1 {
		opts.FetchMultiplier = 1
	}
	if opts.Lambda < 0 || opts.Lambda > 1 {
		opts.Lambda = 0.5
	}
	opts.Logger = logging.ForComponent(opts.Logger, "retriever")
	return &Retriever{embedder: embedder, index: index, opts: opts}
}

// Options returns the effective configuration.
func (r *Retriever) Options() Options { return r.opts }

// Search returns up to k diverse, reranked candidates for query. The result
// is always a subset of what the index returned for the over-fetch pool.
func (r *Retriever) Search(ctx context.Context, query string, k int) (_ []core.Candidate, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []core.Candidate{}, nil
	}
	if k <= 0 {
		k = r.opts.K
	}
	k = min(k, r.opts.MaxK)
	fetchK := k * r.opts.FetchMultiplier

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	if r.opts.OnSearch != nil {
		defer func() { r.opts.OnSearch(time.Since(start), err) }()
	}
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, &core.RetrievalError{Op: "embed", Err: err}
	}
	if len(vecs) != 1 {
		return nil, &core.RetrievalError{Op: "embed", Err: fmt.Errorf("embedder returned %d vectors for 1 text", len(vecs))}
	}
	qvec := vecs[0]

	pool, err := r.index.Search(ctx, qvec, fetchK)
	if err != nil {
		return nil, &core.RetrievalError{Op: "search", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &core.RetrievalError{Op: "search", Err: err}
	}

	selected := MMR(qvec, pool, k, r.opts.Lambda)
	ranked := Rerank(query, selected, r.opts.KeywordWeight, r.opts.PriceWeight)

	r.opts.Logger.Debug("retriever.search.success",
		"query", query, "fetched", len(pool), "selected", len(ranked), "duration", time.Since(start))

	return ranked, nil
}
