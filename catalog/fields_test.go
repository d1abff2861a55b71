package catalog

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   any
		want *float64
	}{
		{nil, nil},
		{"nan", nil},
		{math.NaN(), nil},
		{math.Inf(1), nil},
		{"abc", nil},
		{499.0, ptr(499)},
		{"₹1,299", ptr(1299)},
		{"Rs. 250", ptr(250)},
		{json.Number("12.5"), ptr(12.5)},
		{7, ptr(7)},
	}
	for _, tt := range tests {
		got := ParseFloat(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "%v", tt.in)
			continue
		}
		require.NotNil(t, got, "%v", tt.in)
		assert.Equal(t, *tt.want, *got)
	}
}

func TestParseImage(t *testing.T) {
	assert.Equal(t, "https://a", ParseImage(`["https://a", "https://b"]`))
	assert.Equal(t, "https://b", ParseImage([]any{"", "https://b"}))
	assert.Equal(t, "https://a", ParseImage("['https://a', 'https://b']"))
	assert.Equal(t, "https://plain", ParseImage(" https://plain "))
	assert.Equal(t, "", ParseImage("None"))
}

func TestRecordDocumentRoundTrip(t *testing.T) {
	rec := Record{
		ID:              "FK1",
		ProductName:     "Men Slim Fit T-Shirt",
		Brand:           "Roadster",
		CategoryPath:    "Clothing >> Men >> T-Shirts",
		ProductURL:      "https://shop/fk1",
		Image:           `["https://img/fk1.jpg"]`,
		RetailPrice:     "999",
		DiscountedPrice: 449.0,
		ProductRating:   "No rating available",
		IsFKAdvantage:   "true",
	}

	doc := rec.Document()
	assert.Equal(t, "FK1", doc.ID)
	assert.Equal(t, "Men Slim Fit T-Shirt | Roadster | Clothing >> Men >> T-Shirts", doc.Text)
	assert.Equal(t, true, doc.Metadata[KeyAdvantage])
	_, hasRating := doc.Metadata[KeyProductRating]
	assert.False(t, hasRating)

	c := CandidateFromMetadata(doc.ID, 0.7, doc.Metadata, nil)
	pr, err := Validate(c)
	require.NoError(t, err)
	assert.Equal(t, 449.0, pr.DiscountedPrice)
	assert.Equal(t, 999.0, pr.RetailPrice)
	assert.Equal(t, "https://img/fk1.jpg", pr.Image)
}

func ptr(f float64) *float64 { return &f }
