package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/embedding/hashing"
	"github.com/hupe1980/shopmesh/vectorstore/memory"
)

const sample = `{"id":"p1","product_name":"Blue Running Shoe","brand":"Stride","category_path":"Footwear >> Shoes","discounted_price":2499,"retail_price":NaN,"product_rating":"No rating available"}

{"id":"p2","product_name":"Cotton T-Shirt","brand":"Basics","discounted_price":"399","retail_price":599}
not json at all
{"id":"p3","product_name":"","brand":"Ghost"}
{"product_name":"Office Chair","product_url":"http://shop.example/chair","discounted_price":[NaN,NaN]}
`

func TestSanitizeLine(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":NaN}`, `{"a":null}`},
		{`{"a":NaN,"b":-Infinity}`, `{"a":null,"b":null}`},
		{`[NaN,NaN,NaN]`, `[null,null,null]`},
		{`{"title":"NaN bread"}`, `{"title":"NaN bread"}`},
		{`{"a":1}`, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, string(SanitizeLine([]byte(tt.in))))
		})
	}
}

func TestReader_SkipsBlankLinesAndReportsBadOnes(t *testing.T) {
	rd := NewReader(strings.NewReader(sample))

	rec, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.ID)
	assert.Nil(t, rec.RetailPrice)

	rec, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "p2", rec.ID)

	_, err = rd.Next()
	var lineErr *LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 4, lineErr.Line)

	rec, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "p3", rec.ID)
}

func TestIngestor_IndexesValidRecords(t *testing.T) {
	ctx := context.Background()
	idx := memory.New()
	var progress []int
	in := New(hashing.New(), idx, func(o *Options) {
		o.BatchSize = 2
		o.OnBatch = func(n int) { progress = append(progress, n) }
	})

	stats, err := in.Ingest(ctx, strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Read)
	assert.Equal(t, 3, stats.Indexed)
	assert.Equal(t, 2, stats.Invalid)
	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, []int{2, 3}, progress)
	assert.Equal(t, 3, idx.Len())
	assert.True(t, idx.Has("p1"))
	assert.True(t, idx.Has("p2"))
}

func TestIngestor_DerivesStableIDs(t *testing.T) {
	doc1, ok := prepare(catalog.Record{ProductName: "Office Chair", ProductURL: "http://shop.example/chair"})
	require.True(t, ok)
	doc2, _ := prepare(catalog.Record{ProductName: "Office Chair v2", ProductURL: "http://shop.example/chair"})
	assert.NotEmpty(t, doc1.ID)
	assert.Equal(t, doc1.ID, doc2.ID)

	_, ok = prepare(catalog.Record{Brand: "no title"})
	assert.False(t, ok)
}

func TestIngestor_SkipExisting(t *testing.T) {
	ctx := context.Background()
	idx := memory.New()
	emb := hashing.New()
	require.NoError(t, idx.Init(ctx, emb.Dimension()))
	vecs, err := emb.Embed(ctx, []string{"existing"})
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []core.Document{{ID: "x", Text: "existing", Metadata: map[string]any{}}}, vecs))

	stats, err := New(emb, idx, func(o *Options) { o.SkipExisting = true }).Ingest(ctx, strings.NewReader(sample))
	require.NoError(t, err)
	assert.True(t, stats.Skipped)
	assert.Equal(t, 1, stats.Existing)
	assert.Equal(t, 1, idx.Len())
}

type failingEmbedder struct{ dim int }

func (f failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func (f failingEmbedder) Dimension() int { return f.dim }

func TestIngestor_EmbedFailureStops(t *testing.T) {
	_, err := New(failingEmbedder{dim: 8}, memory.New()).Ingest(context.Background(), strings.NewReader(sample))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed batch")
}

func TestIngestor_LargeInputBatches(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 130; i++ {
		fmt.Fprintf(&b, `{"id":"p%d","product_name":"Item %d"}`+"\n", i, i)
	}
	idx := memory.New()
	stats, err := New(hashing.New(), idx).Ingest(context.Background(), strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 130, stats.Indexed)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 130, idx.Len())
}
