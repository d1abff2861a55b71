package retriever

import (
	"math"
	"sort"
	"strings"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/internal/util"
	"github.com/hupe1980/shopmesh/vectorstore"
)

// MMR picks k candidates maximising lambda*relevance - (1-lambda)*redundancy,
// where relevance is cosine(query, candidate) and redundancy is the highest
// cosine to anything already picked. Candidates without vectors fall back to
// their index score and count as dissimilar to everything.
func MMR(query []float32, pool []core.Candidate, k int, lambda float64) []core.Candidate {
	if k <= 0 || len(pool) == 0 {
		return []core.Candidate{}
	}

	relevance := make([]float64, len(pool))
	for i, c := range pool {
		if len(c.Vector) > 0 && len(query) > 0 {
			relevance[i] = vectorstore.Cosine(query, c.Vector)
		} else {
			relevance[i] = c.Score
		}
	}

	picked := make([]int, 0, min(k, len(pool)))
	used := make([]bool, len(pool))
	for len(picked) < k && len(picked) < len(pool) {
		best, bestScore := -1, math.Inf(-1)
		for i := range pool {
			if used[i] {
				continue
			}
			redundancy := 0.0
			for _, j := range picked {
				if len(pool[i].Vector) == 0 || len(pool[j].Vector) == 0 {
					continue
				}
				redundancy = math.Max(redundancy, vectorstore.Cosine(pool[i].Vector, pool[j].Vector))
			}
			score := lambda*relevance[i] - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		used[best] = true
		picked = append(picked, best)
	}

	out := make([]core.Candidate, len(picked))
	for i, idx := range picked {
		out[i] = pool[idx]
	}
	return out
}

// Rerank stably reorders candidates by score plus a keyword-overlap boost and
// a price-band boost when the query states a budget. It never adds or drops
// candidates.
func Rerank(query string, cands []core.Candidate, keywordWeight, priceWeight float64) []core.Candidate {
	out := append([]core.Candidate(nil), cands...)
	if len(out) < 2 {
		return out
	}
	keywords := util.Keywords(query)
	budget, hasBudget := catalog.ParseBudget(query)

	adjusted := make(map[int]float64, len(out))
	for i, c := range out {
		s := c.Score
		if len(keywords) > 0 && keywordWeight != 0 {
			s += keywordWeight * keywordOverlap(keywords, c)
		}
		if hasBudget && priceWeight != 0 && c.DiscountedPrice != nil && budget.Contains(*c.DiscountedPrice) {
			s += priceWeight
		}
		adjusted[i] = s
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return adjusted[idx[a]] > adjusted[idx[b]] })

	ranked := make([]core.Candidate, len(out))
	for i, j := range idx {
		ranked[i] = out[j]
	}
	return ranked
}

// keywordOverlap is the fraction of query keywords present in the
// candidate's title, brand or category.
func keywordOverlap(keywords []string, c core.Candidate) float64 {
	hay := map[string]struct{}{}
	for _, tok := range util.Tokenize(strings.Join([]string{c.Title, c.Brand, c.Category}, " ")) {
		hay[tok] = struct{}{}
	}
	hits := 0
	for _, kw := range keywords {
		if _, ok := hay[kw]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}
