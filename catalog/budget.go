package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Budget is a price range parsed from free text. Nil bounds are open.
type Budget struct {
	Min *float64
	Max *float64
}

// Contains reports whether price lies within the budget.
func (b Budget) Contains(price float64) bool {
	if b.Min != nil && price < *b.Min {
		return false
	}
	if b.Max != nil && price > *b.Max {
		return false
	}
	return true
}

// IsZero reports whether no bound is set.
func (b Budget) IsZero() bool { return b.Min == nil && b.Max == nil }

// String renders the budget as query text ("under 500", "between 200 and 400").
func (b Budget) String() string {
	switch {
	case b.Min != nil && b.Max != nil:
		return fmt.Sprintf("between %s and %s", fmtAmount(*b.Min), fmtAmount(*b.Max))
	case b.Max != nil:
		return "under " + fmtAmount(*b.Max)
	case b.Min != nil:
		return "above " + fmtAmount(*b.Min)
	default:
		return ""
	}
}

const amount = `(?:₹|rs\.?|inr)?\s*(\d[\d,]*(?:\.\d+)?)\s*(?:(k)\b)?`

var (
	betweenRe = regexp.MustCompile(`(?i)(?:between|from)\s*` + amount + `\s*(?:and|to|-)\s*` + amount)
	rangeRe   = regexp.MustCompile(`(?i)` + amount + `\s*(?:-|to)\s*` + amount + `\s*(?:₹|rs|rupees|inr)`)
	maxRe     = regexp.MustCompile(`(?i)(?:under|below|less than|within|upto|up to|max(?:imum)?|budget(?: of| is)?|<=?)\s*` + amount)
	minRe     = regexp.MustCompile(`(?i)(?:above|over|more than|at least|min(?:imum)?|>=?)\s*` + amount)
)

// ParseBudget extracts a price range from text.
func ParseBudget(text string) (Budget, bool) {
	if m := betweenRe.FindStringSubmatch(text); m != nil {
		lo, hi := toAmount(m[1], m[2]), toAmount(m[3], m[4])
		if lo != nil && hi != nil {
			if *lo > *hi {
				lo, hi = hi, lo
			}
			return Budget{Min: lo, Max: hi}, true
		}
	}
	if m := rangeRe.FindStringSubmatch(text); m != nil {
		lo, hi := toAmount(m[1], m[2]), toAmount(m[3], m[4])
		if lo != nil && hi != nil && *lo <= *hi {
			return Budget{Min: lo, Max: hi}, true
		}
	}
	var b Budget
	if m := maxRe.FindStringSubmatch(text); m != nil {
		b.Max = toAmount(m[1], m[2])
	}
	if m := minRe.FindStringSubmatch(text); m != nil {
		b.Min = toAmount(m[1], m[2])
	}
	return b, !b.IsZero()
}

func toAmount(num, suffix string) *float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return nil
	}
	if strings.EqualFold(suffix, "k") {
		f *= 1000
	}
	return &f
}

func fmtAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
