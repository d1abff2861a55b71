package pgvector

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
)

var (
	_ core.VectorIndex  = (*Index)(nil)
	_ core.VectorWriter = (*Index)(nil)
)

func TestVectorLiteralRoundTrip(t *testing.T) {
	v := []float32{0.5, -1, 0.25}

	lit := VectorLiteral(v)
	assert.Equal(t, "[0.5,-1,0.25]", lit)

	back, err := ParseVector(lit)
	require.NoError(t, err)
	assert.Equal(t, v, back)

	empty, err := ParseVector("[]")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseVector("0.1,0.2")
	assert.Error(t, err)
	_, err = ParseVector("[a]")
	assert.Error(t, err)
}

func TestNewFromPool_RejectsBadTable(t *testing.T) {
	_, err := NewFromPool(nil, func(o *Options) { o.Table = "products; drop" })
	assert.Error(t, err)
}

func TestIndex_Postgres(t *testing.T) {
	url := os.Getenv("SHOPMESH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SHOPMESH_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	idx, err := New(ctx, url, func(o *Options) { o.Table = "shopmesh_test_products" })
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Init(ctx, 2))
	docs := []core.Document{
		{ID: "a", Text: "tee", Metadata: map[string]any{catalog.KeyTitle: "Tee"}},
		{ID: "b", Text: "mug", Metadata: map[string]any{catalog.KeyTitle: "Mug"}},
	}
	require.NoError(t, idx.Upsert(ctx, docs, [][]float32{{1, 0}, {0, 1}}))

	res, err := idx.Search(ctx, []float32{1, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a", res[0].ID)
	assert.Equal(t, "Tee", res[0].Title)
	assert.Len(t, res[0].Vector, 2)
}
