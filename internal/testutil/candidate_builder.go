package testutil

import (
	"fmt"

	"github.com/hupe1980/shopmesh/core"
)

// CandidateBuilder produces valid candidates by default; With* methods
// break or alter individual fields.
type CandidateBuilder struct {
	c core.Candidate
}

// NewCandidate starts a fully populated candidate with the given id.
func NewCandidate(id string) *CandidateBuilder {
	disc, retail := 499.0, 999.0
	return &CandidateBuilder{c: core.Candidate{
		ID:              id,
		Title:           fmt.Sprintf("Product %s", id),
		Brand:           "Acme",
		Category:        "Clothing >> Men",
		DiscountedPrice: &disc,
		RetailPrice:     &retail,
		Image:           fmt.Sprintf("https://img.example/%s.jpg", id),
		URL:             fmt.Sprintf("https://shop.example/%s", id),
		Score:           0.5,
	}}
}

// WithScore sets the similarity score.
func (b *CandidateBuilder) WithScore(s float64) *CandidateBuilder { b.c.Score = s; return b }

// WithTitle sets the title.
func (b *CandidateBuilder) WithTitle(s string) *CandidateBuilder { b.c.Title = s; return b }

// WithBrand sets the brand.
func (b *CandidateBuilder) WithBrand(s string) *CandidateBuilder { b.c.Brand = s; return b }

// WithCategory sets the category path.
func (b *CandidateBuilder) WithCategory(s string) *CandidateBuilder { b.c.Category = s; return b }

// WithURL sets the product URL.
func (b *CandidateBuilder) WithURL(s string) *CandidateBuilder { b.c.URL = s; return b }

// WithImage sets the raw image field.
func (b *CandidateBuilder) WithImage(s string) *CandidateBuilder { b.c.Image = s; return b }

// WithPrices sets discounted and retail prices.
func (b *CandidateBuilder) WithPrices(disc, retail float64) *CandidateBuilder {
	b.c.DiscountedPrice, b.c.RetailPrice = &disc, &retail
	return b
}

// WithoutPrices clears both prices.
func (b *CandidateBuilder) WithoutPrices() *CandidateBuilder {
	b.c.DiscountedPrice, b.c.RetailPrice = nil, nil
	return b
}

// WithVector sets the embedding.
func (b *CandidateBuilder) WithVector(v ...float32) *CandidateBuilder { b.c.Vector = v; return b }

// Build returns the candidate.
func (b *CandidateBuilder) Build() core.Candidate { return b.c }
