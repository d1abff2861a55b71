package catalog

import (
	"errors"
	"math"

	"github.com/hupe1980/shopmesh/core"
)

// DefaultMaxResults bounds the products returned per turn.
const DefaultMaxResults = 5

// Stats reports what Normalize discarded.
type Stats struct {
	Input      int
	Dropped    int
	Duplicates int
	Truncated  int
	Errors     []error
}

// Normalizer validates, deduplicates and truncates candidates. It is pure
// and safe for concurrent use.
type Normalizer struct {
	maxResults int
}

// NewNormalizer creates a normalizer; maxResults <= 0 selects DefaultMaxResults.
func NewNormalizer(maxResults int) *Normalizer {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Normalizer{maxResults: maxResults}
}

// MaxResults returns the configured bound.
func (n *Normalizer) MaxResults() int { return n.maxResults }

// Normalize returns at most MaxResults products with unique IDs. Malformed
// candidates are dropped; on duplicate IDs the highest score wins (earliest
// on ties) and keeps its input position.
func (n *Normalizer) Normalize(cands []core.Candidate) []core.ProductResult {
	res, _ := n.NormalizeWithStats(cands)
	return res
}

// NormalizeWithStats is Normalize plus drop/duplicate accounting.
func (n *Normalizer) NormalizeWithStats(cands []core.Candidate) ([]core.ProductResult, Stats) {
	stats := Stats{Input: len(cands)}

	type kept struct {
		pos   int
		score float64
		res   core.ProductResult
	}
	byID := make(map[string]int, len(cands))
	order := make([]kept, 0, len(cands))

	for i, c := range cands {
		pr, err := Validate(c)
		if err != nil {
			stats.Dropped++
			stats.Errors = append(stats.Errors, err)
			continue
		}
		if j, dup := byID[pr.ID]; dup {
			stats.Duplicates++
			if c.Score > order[j].score {
				order[j] = kept{pos: order[j].pos, score: c.Score, res: pr}
			}
			continue
		}
		byID[pr.ID] = len(order)
		order = append(order, kept{pos: i, score: c.Score, res: pr})
	}

	out := make([]core.ProductResult, 0, min(len(order), n.maxResults))
	for _, k := range order {
		if len(out) == n.maxResults {
			stats.Truncated++
			continue
		}
		out = append(out, k.res)
	}
	return out, stats
}

// Validate converts a candidate into a ProductResult or reports the first
// missing field as a *core.MalformedCandidateError.
func Validate(c core.Candidate) (core.ProductResult, error) {
	id := CleanString(c.ID)
	fail := func(field string) (core.ProductResult, error) {
		return core.ProductResult{}, &core.MalformedCandidateError{ID: id, Field: field}
	}
	if id == "" {
		return fail("id")
	}
	title := CleanString(c.Title)
	if title == "" {
		return fail("title")
	}
	brand := CleanString(c.Brand)
	if brand == "" {
		return fail("brand")
	}
	if !validPrice(c.DiscountedPrice) {
		return fail("discounted_price")
	}
	if !validPrice(c.RetailPrice) {
		return fail("retail_price")
	}
	image := ParseImage(c.Image)
	if image == "" {
		return fail("image")
	}
	url := CleanString(c.URL)
	if url == "" {
		return fail("url")
	}

	pr := core.ProductResult{
		ID:              id,
		Title:           title,
		Brand:           brand,
		DiscountedPrice: *c.DiscountedPrice,
		RetailPrice:     *c.RetailPrice,
		Image:           image,
		URL:             url,
	}
	if r := rating(c); r != nil {
		pr.Rating = r
	}
	return pr, nil
}

func validPrice(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) && *p >= 0
}

func rating(c core.Candidate) *float64 {
	for _, r := range []*float64{c.ProductRating, c.OverallRating} {
		if r != nil && !math.IsNaN(*r) && *r > 0 {
			v := math.Round(*r*10) / 10
			return &v
		}
	}
	return nil
}

// IsMalformed reports whether err marks a dropped candidate.
func IsMalformed(err error) bool { return errors.Is(err, core.ErrMalformedCandidate) }
