package retriever

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/embedding/hashing"
	"github.com/hupe1980/shopmesh/internal/testutil"
	vsmemory "github.com/hupe1980/shopmesh/vectorstore/memory"
)

func ids(cands []core.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ID
	}
	return out
}

func TestMMR_PrefersDiverseCandidates(t *testing.T) {
	query := []float32{1, 0.3}
	pool := []core.Candidate{
		testutil.NewCandidate("a").WithVector(1, 0).Build(),
		testutil.NewCandidate("a-dup").WithVector(0.99, 0.01).Build(),
		testutil.NewCandidate("b").WithVector(0.6, 0.8).Build(),
	}

	got := MMR(query, pool, 2, 0.5)

	require.Len(t, got, 2)
	assert.Contains(t, []string{"a", "a-dup"}, got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestMMR_LambdaOneIsPureRelevance(t *testing.T) {
	query := []float32{1, 0}
	pool := []core.Candidate{
		testutil.NewCandidate("b").WithVector(0.6, 0.8).Build(),
		testutil.NewCandidate("a").WithVector(1, 0).Build(),
		testutil.NewCandidate("a-dup").WithVector(0.99, 0.01).Build(),
	}

	got := MMR(query, pool, 2, 1)

	assert.Equal(t, []string{"a", "a-dup"}, ids(got))
}

func TestMMR_Bounds(t *testing.T) {
	pool := []core.Candidate{testutil.NewCandidate("a").Build()}
	assert.Empty(t, MMR(nil, pool, 0, 0.5))
	assert.Empty(t, MMR(nil, nil, 3, 0.5))
	assert.Len(t, MMR(nil, pool, 3, 0.5), 1)
}

func TestRerank_KeywordAndPriceBoostOnlyReorder(t *testing.T) {
	cands := []core.Candidate{
		testutil.NewCandidate("mug").WithTitle("Coffee Mug").WithScore(0.80).WithPrices(300, 400).Build(),
		testutil.NewCandidate("shoe-pricey").WithTitle("Running Shoes").WithScore(0.79).WithPrices(2500, 4000).Build(),
		testutil.NewCandidate("shoe-cheap").WithTitle("Running Shoes").WithScore(0.78).WithPrices(900, 1500).Build(),
	}

	got := Rerank("running shoes under 1000", cands, 0.15, 0.1)

	assert.Equal(t, []string{"shoe-cheap", "shoe-pricey", "mug"}, ids(got))
	assert.ElementsMatch(t, ids(cands), ids(got))
	assert.Equal(t, "mug", cands[0].ID, "input must not be mutated")
}

func TestRerank_NoSignalsKeepsOrder(t *testing.T) {
	cands := []core.Candidate{
		testutil.NewCandidate("a").WithScore(0.5).Build(),
		testutil.NewCandidate("b").WithScore(0.5).Build(),
	}
	assert.Equal(t, []string{"a", "b"}, ids(Rerank("zzz", cands, 0.15, 0.1)))
}

func TestRetriever_SearchEndToEnd(t *testing.T) {
	ctx := context.Background()
	emb := hashing.New()
	idx := vsmemory.New()

	titles := map[string]string{
		"t1": "men cotton t shirt",
		"t2": "men slim fit t shirt",
		"s1": "men running shoes",
		"b1": "steel water bottle",
	}
	var docs []core.Document
	var texts []string
	for id, title := range titles {
		docs = append(docs, core.Document{ID: id, Text: title, Metadata: map[string]any{"title": title, "discounted_price": 400.0}})
		texts = append(texts, title)
	}
	vecs, err := emb.Embed(ctx, texts)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, docs, vecs))

	r := New(emb, idx)
	got, err := r.Search(ctx, "men t shirt", 2)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Contains(t, []string{"t1", "t2"}, got[0].ID)
}

func TestRetriever_ClampsKAndDefaults(t *testing.T) {
	idx := &testutil.StaticIndex{}
	r := New(testutil.ConstEmbedder{Vector: []float32{1}}, idx, func(o *Options) { o.MaxK = 5; o.FetchMultiplier = 2 })

	_, err := r.Search(context.Background(), "x", 100)
	require.NoError(t, err)
	assert.Equal(t, 10, idx.LastK)

	_, err = r.Search(context.Background(), "x", 0)
	require.NoError(t, err)
	assert.Equal(t, 6, idx.LastK)

	got, err := r.Search(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, idx.CallCount())
}

func TestRetriever_Failures(t *testing.T) {
	t.Run("index error", func(t *testing.T) {
		r := New(testutil.ConstEmbedder{Vector: []float32{1}}, &testutil.StaticIndex{Err: errors.New("connection refused")})
		_, err := r.Search(context.Background(), "shoes", 3)
		assert.ErrorIs(t, err, core.ErrRetrievalUnavailable)
	})

	t.Run("embedder error", func(t *testing.T) {
		r := New(testutil.ConstEmbedder{Err: errors.New("quota")}, &testutil.StaticIndex{})
		_, err := r.Search(context.Background(), "shoes", 3)
		assert.ErrorIs(t, err, core.ErrRetrievalUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		idx := &testutil.StaticIndex{Delay: time.Second}
		r := New(testutil.ConstEmbedder{Vector: []float32{1}}, idx, func(o *Options) { o.Timeout = 10 * time.Millisecond })
		_, err := r.Search(context.Background(), "shoes", 3)
		assert.ErrorIs(t, err, core.ErrRetrievalUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("caller cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := New(testutil.ConstEmbedder{Vector: []float32{1}}, &testutil.StaticIndex{})
		_, err := r.Search(ctx, "shoes", 3)
		assert.ErrorIs(t, err, core.ErrRetrievalUnavailable)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetriever_OnSearchHook(t *testing.T) {
	var errs []error
	idx := &testutil.StaticIndex{Candidates: []core.Candidate{testutil.NewCandidate("a").Build()}}
	r := New(testutil.ConstEmbedder{Vector: []float32{1}}, idx, func(o *Options) {
		o.OnSearch = func(_ time.Duration, err error) { errs = append(errs, err) }
	})

	_, err := r.Search(context.Background(), "shoes", 1)
	require.NoError(t, err)

	idx.Err = errors.New("down")
	_, err = r.Search(context.Background(), "shoes", 1)
	require.Error(t, err)

	_, _ = r.Search(context.Background(), "  ", 1)

	require.Len(t, errs, 2)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], core.ErrRetrievalUnavailable)
}
