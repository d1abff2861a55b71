package catalog

import (
	"strings"

	"github.com/hupe1980/shopmesh/core"
)

// Record is one row of the prepared catalog JSONL file. Numeric fields are
// kept as any because upstream exports mix numbers, strings and nulls.
type Record struct {
	ID              string `json:"id"`
	EmbeddingText   string `json:"embedding_text"`
	ProductName     string `json:"product_name"`
	Brand           string `json:"brand"`
	CategoryPath    string `json:"category_path"`
	ProductURL      string `json:"product_url"`
	Image           any    `json:"image"`
	RetailPrice     any    `json:"retail_price"`
	DiscountedPrice any    `json:"discounted_price"`
	ProductRating   any    `json:"product_rating"`
	OverallRating   any    `json:"overall_rating"`
	IsFKAdvantage   any    `json:"is_FK_Advantage_product"`
}

// Document converts the record into an indexable document. The embedded
// text falls back to title, brand and category when embedding_text is empty.
func (r Record) Document() core.Document {
	md := map[string]any{
		KeyTitle:     CleanString(r.ProductName),
		KeyBrand:     CleanString(r.Brand),
		KeyCategory:  CleanString(r.CategoryPath),
		KeyImage:     ParseImage(r.Image),
		KeyURL:       CleanString(r.ProductURL),
		KeyAdvantage: ParseBool(r.IsFKAdvantage),
	}
	putFloat(md, KeyRetailPrice, ParseFloat(r.RetailPrice))
	putFloat(md, KeyDiscountedPrice, ParseFloat(r.DiscountedPrice))
	putFloat(md, KeyProductRating, ParseFloat(r.ProductRating))
	putFloat(md, KeyOverallRating, ParseFloat(r.OverallRating))

	text := CleanString(r.EmbeddingText)
	if text == "" {
		parts := make([]string, 0, 3)
		for _, p := range []string{md[KeyTitle].(string), md[KeyBrand].(string), md[KeyCategory].(string)} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		text = strings.Join(parts, " | ")
	}
	md[KeyText] = text

	return core.Document{ID: CleanString(r.ID), Text: text, Metadata: md}
}

func putFloat(md map[string]any, key string, v *float64) {
	if v != nil {
		md[key] = *v
	}
}

// CandidateFromMetadata rebuilds a candidate from a stored metadata payload.
func CandidateFromMetadata(id string, score float64, md map[string]any, vector []float32) core.Candidate {
	return core.Candidate{
		ID:              id,
		Title:           CleanString(md[KeyTitle]),
		Brand:           CleanString(md[KeyBrand]),
		Category:        CleanString(md[KeyCategory]),
		DiscountedPrice: ParseFloat(md[KeyDiscountedPrice]),
		RetailPrice:     ParseFloat(md[KeyRetailPrice]),
		ProductRating:   ParseFloat(md[KeyProductRating]),
		OverallRating:   ParseFloat(md[KeyOverallRating]),
		Image:           ParseImage(md[KeyImage]),
		URL:             CleanString(md[KeyURL]),
		Text:            CleanString(md[KeyText]),
		Score:           score,
		Vector:          vector,
	}
}
