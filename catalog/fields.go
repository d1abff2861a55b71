package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Metadata keys shared by every vector store backend.
const (
	KeyTitle           = "title"
	KeyBrand           = "brand"
	KeyCategory        = "category"
	KeyDiscountedPrice = "discounted_price"
	KeyRetailPrice     = "retail_price"
	KeyProductRating   = "product_rating"
	KeyOverallRating   = "overall_rating"
	KeyImage           = "image"
	KeyURL             = "url"
	KeyText            = "text"
	KeyAdvantage       = "fk_advantage"
)

// CleanString trims v and treats placeholder values ("nan", "none", "null",
// "n/a") as missing.
func CleanString(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprintf("%v", t)
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "none", "null", "n/a", "<nil>":
		return ""
	}
	return s
}

// ParseFloat converts numbers and numeric strings. NaN, infinities and
// unparsable values yield nil. Currency symbols and thousands separators
// are stripped ("₹1,299" -> 1299).
func ParseFloat(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		p, err := t.Float64()
		if err != nil {
			return nil
		}
		f = p
	case string:
		s := CleanString(t)
		s = strings.NewReplacer("₹", "", "Rs.", "", "Rs", "", "INR", "", ",", "", " ", "").Replace(s)
		if s == "" {
			return nil
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = p
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseImage returns the first usable image URL. Catalog rows sometimes
// carry a JSON array encoded as a string; its first non-empty element wins.
func ParseImage(v any) string {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := CleanString(item); s != "" {
				return s
			}
		}
		return ""
	case []string:
		for _, item := range t {
			if s := CleanString(item); s != "" {
				return s
			}
		}
		return ""
	}
	s := CleanString(v)
	if strings.HasPrefix(s, "[") {
		var urls []string
		if err := json.Unmarshal([]byte(s), &urls); err == nil {
			return ParseImage(urls)
		}
		s = strings.Trim(s, "[]\"' ")
		if i := strings.Index(s, ","); i >= 0 {
			s = strings.Trim(s[:i], "\"' ")
		}
	}
	return s
}

// ParseBool accepts booleans and the usual string spellings.
func ParseBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	default:
		return false
	}
}
