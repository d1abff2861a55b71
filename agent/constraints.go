package agent

import (
	"regexp"
	"strings"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/internal/util"
)

var audiences = map[string]string{
	"men": "men", "man": "men", "mens": "men", "male": "men", "gents": "men",
	"women": "women", "woman": "women", "womens": "women", "female": "women", "ladies": "women",
	"kids": "kids", "kid": "kids", "children": "kids", "child": "kids",
	"boys": "boys", "boy": "boys", "girls": "girls", "girl": "girls",
	"baby": "baby", "infant": "baby", "unisex": "unisex",
}

// modifiers refine a product without naming one ("in blue", "cheaper").
var modifiers = setOf(
	"red", "blue", "green", "black", "white", "yellow", "pink", "purple", "orange", "grey", "gray",
	"brown", "navy", "maroon", "beige", "gold", "golden", "silver", "multicolor",
	"small", "medium", "large", "xl", "xxl", "xs", "size",
	"cotton", "leather", "silk", "wool", "woolen", "denim", "steel", "wooden", "plastic", "synthetic",
	"cheap", "cheaper", "cheapest", "expensive", "costlier", "premium",
	"more", "other", "others", "another", "similar", "different", "better", "bigger", "smaller",
	"lighter", "latest", "new", "ones", "one", "options", "option",
)

// chatter never names a product.
var chatter = setOf(
	"hi", "hello", "hey", "hii", "hiya", "namaste", "greetings", "morning", "afternoon", "evening", "good",
	"thanks", "thank", "thx", "ty", "bye", "goodbye", "cya", "later", "see",
	"help", "ok", "okay", "cool", "nice", "great", "awesome", "perfect", "fine", "well", "hmm",
	"yes", "yeah", "yep", "yup", "sure", "no", "nope", "not", "sounds",
	"how", "are", "doing", "who", "what", "which", "do", "does", "your", "name", "bot", "there",
	"that", "this", "those", "these", "them", "they", "be", "would", "could", "should", "will",
	"from", "by", "brand", "price", "prices", "cost", "range", "rupees", "rupee", "around", "about",
	"just", "also", "like", "really", "very", "too", "am", "was", "we", "us", "our", "something",
	"buy", "recommend", "suggest", "gift", "use", "using", "used", "up", "whats", "lol", "haha", "so", "much", "lot", "many",
)

var brandRe = regexp.MustCompile(`(?i)\b(?:brand|from|by)\s+([a-z][\w&-]*)`)

// terms is the analysis of one message.
type terms struct {
	subject   []string
	modifiers []string
	audience  string
	brand     string
	budget    catalog.Budget
	hasBudget bool
}

func (t terms) hasContent() bool {
	return len(t.subject) > 0 || len(t.modifiers) > 0 || t.audience != "" || t.brand != ""
}

func analyze(text string) terms {
	var out terms
	out.budget, out.hasBudget = catalog.ParseBudget(text)
	if m := brandRe.FindStringSubmatch(text); m != nil {
		if _, skip := chatter[strings.ToLower(m[1])]; !skip {
			out.brand = strings.ToLower(m[1])
		}
	}
	for _, tok := range util.Keywords(text) {
		switch {
		case len(tok) < 2 || startsWithDigit(tok):
		case tok == out.brand:
		case audiences[tok] != "":
			if out.audience == "" {
				out.audience = audiences[tok]
			}
		case has(modifiers, tok):
			out.modifiers = append(out.modifiers, tok)
		case has(chatter, tok):
		default:
			out.subject = append(out.subject, tok)
		}
	}
	return out
}

// Constraints are shopping preferences remembered from earlier turns.
type Constraints struct {
	Subject   []string
	Modifiers []string
	Audience  string
	Brand     string
	Budget    catalog.Budget
}

// HasSubject reports whether an earlier turn named a product.
func (c Constraints) HasSubject() bool { return len(c.Subject) > 0 }

// MineConstraints collects constraints from the session. The most recent
// user turn naming a product anchors the subject; refinements in later turns
// are layered on top. The summary contributes a budget when no turn does.
func MineConstraints(sess *core.Session) Constraints {
	var c Constraints
	if sess == nil {
		return c
	}
	var users []string
	for _, t := range sess.History() {
		if t.Role == core.RoleUser {
			users = append(users, t.Text)
		}
	}

	anchor := -1
	for i := len(users) - 1; i >= 0; i-- {
		if len(analyze(users[i]).subject) > 0 {
			anchor = i
			break
		}
	}

	if b, ok := catalog.ParseBudget(sess.SummaryText()); ok {
		c.Budget = b
	}
	if anchor < 0 {
		return c
	}
	for _, text := range users[anchor:] {
		t := analyze(text)
		if len(t.subject) > 0 {
			c.Subject = t.subject
		}
		c.Modifiers = appendNew(c.Modifiers, t.modifiers...)
		if t.audience != "" {
			c.Audience = t.audience
		}
		if t.brand != "" {
			c.Brand = t.brand
		}
		if t.hasBudget {
			c.Budget = t.budget
		}
	}
	return c
}

// Augment appends the remembered constraints a follow-up message leaves
// out. A message naming a new product starts a new search and is returned
// unchanged.
func (c Constraints) Augment(text string) string {
	text = strings.TrimSpace(text)
	cur := analyze(text)
	if len(cur.subject) > 0 || !c.HasSubject() {
		return text
	}

	lower := " " + strings.ToLower(text) + " "
	parts := []string{text}
	add := func(words ...string) {
		for _, w := range words {
			if w != "" && !strings.Contains(lower, " "+w+" ") {
				parts = append(parts, w)
				lower += w + " "
			}
		}
	}
	for _, m := range c.Modifiers {
		if !isComparative(m) {
			add(m)
		}
	}
	if cur.audience == "" {
		add(c.Audience)
	}
	if cur.brand == "" {
		add(c.Brand)
	}
	add(c.Subject...)
	if !cur.hasBudget && !c.Budget.IsZero() {
		parts = append(parts, c.Budget.String())
	}
	return strings.Join(parts, " ")
}

// isComparative marks modifiers that only make sense for the message that
// said them.
func isComparative(w string) bool {
	switch w {
	case "more", "other", "others", "another", "similar", "different", "ones", "one", "options", "option",
		"cheaper", "costlier", "bigger", "smaller", "lighter", "better":
		return true
	}
	return false
}

func setOf(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func has(set map[string]struct{}, w string) bool {
	_, ok := set[w]
	return ok
}

func appendNew(dst []string, words ...string) []string {
	for _, w := range words {
		found := false
		for _, d := range dst {
			if d == w {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, w)
		}
	}
	return dst
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
