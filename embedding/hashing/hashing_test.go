package hashing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/vectorstore"
)

var _ core.Embedder = (*Embedder)(nil)

func TestEmbed_DeterministicAndNormalized(t *testing.T) {
	e := New(func(o *Options) { o.Dimension = 64 })

	vecs, err := e.Embed(context.Background(), []string{"running shoes", "running shoes", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.Equal(t, vecs[0], vecs[1])
	assert.Len(t, vecs[0], 64)
	assert.InDelta(t, 1.0, vectorstore.Cosine(vecs[0], vecs[0]), 1e-5)
	assert.Equal(t, make([]float32, 64), vecs[2])
}

func TestEmbed_SimilarTextsScoreHigher(t *testing.T) {
	e := New()

	vecs, err := e.Embed(context.Background(), []string{"men running shoes", "running shoes for men", "steel water bottle"})
	require.NoError(t, err)

	assert.Greater(t, vectorstore.Cosine(vecs[0], vecs[1]), vectorstore.Cosine(vecs[0], vecs[2]))
}

func TestEmbed_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
