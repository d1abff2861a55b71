package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/config"
	"github.com/hupe1980/shopmesh/core"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name string
		p    core.ProductResult
		want string
	}{
		{"discounted", core.ProductResult{DiscountedPrice: 2499.4, RetailPrice: 2999}, "₹2499  (MRP ₹2999)"},
		{"no discount", core.ProductResult{DiscountedPrice: 399, RetailPrice: 399}, "₹399"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatPrice(tt.p))
		})
	}
}

func TestRenderReply(t *testing.T) {
	rating := 4.3
	out := renderReply(core.Reply{
		Reply: "Here is 1 product",
		Products: []core.ProductResult{{
			Title: "Blue Running Shoe", Brand: "Stride", DiscountedPrice: 2499, RetailPrice: 2999,
			Rating: &rating, URL: "http://shop.example/p1",
		}},
	}, 60)

	assert.Contains(t, out, "Here is 1 product")
	assert.Contains(t, out, "Blue Running Shoe")
	assert.Contains(t, out, "Rating: 4.3")
	assert.Contains(t, out, "₹2499")
}

func TestMemoryOptions_RejectsModelSummarizerWithoutModel(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.Summarizer = "model"
	_, err := memoryOptions(cfg.Memory, nil, cfg.LLM)
	assert.Error(t, err)

	cfg.Memory.Summarizer = "extractive"
	_, err = memoryOptions(cfg.Memory, nil, cfg.LLM)
	assert.NoError(t, err)
}

func TestNewApp_DefaultsIngestAndChat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "products.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"id":"p1","product_name":"Men Blue Running Shoe","brand":"Stride","discounted_price":2499,"retail_price":2999}`+"\n"+
			`{"id":"p2","product_name":"Ergonomic Office Chair","brand":"Sitwell","discounted_price":8999,"retail_price":12999}`+"\n"), 0o600))

	cfg := config.Default()
	cfg.Logging.Level = "error"
	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.metrics)

	stats, err := a.ingestFile(ctx, path, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, 2, stats.Batches)

	reply := a.mesh.HandleMessage(ctx, "cli", "hello")
	assert.Equal(t, core.IntentConversational, reply.Intent)
}
