package core

// Candidate is a raw record returned by a vector index. Fields may be
// missing or malformed; the catalog normalizer decides what survives.
type Candidate struct {
	ID              string
	Title           string
	Brand           string
	Category        string
	DiscountedPrice *float64
	RetailPrice     *float64
	ProductRating   *float64
	OverallRating   *float64
	Image           string
	URL             string
	Text            string
	Score           float64
	Vector          []float32
}

// ProductResult is the validated wire shape sent to clients.
type ProductResult struct {
	ID              string   `json:"id,omitempty"`
	Title           string   `json:"title"`
	Brand           string   `json:"brand"`
	DiscountedPrice float64  `json:"discounted_price"`
	RetailPrice     float64  `json:"retail_price"`
	Image           string   `json:"image"`
	URL             string   `json:"url"`
	Rating          *float64 `json:"rating,omitempty"`
}

// ToolResponse is the outcome of one product-search invocation. It lives for
// a single turn and is never persisted.
type ToolResponse struct {
	Reply      string          `json:"reply"`
	Products   []ProductResult `json:"products"`
	ProductIDs []string        `json:"product_ids"`
}

// Reply is the payload returned to the caller for every message.
type Reply struct {
	Reply     string          `json:"reply"`
	Products  []ProductResult `json:"products"`
	SessionID string          `json:"session_id"`
	Intent    IntentKind      `json:"intent,omitempty"`
	Degraded  bool            `json:"degraded,omitempty"`
}

// Document is a catalog record prepared for indexing.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}
