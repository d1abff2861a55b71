package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/internal/util"
	"github.com/hupe1980/shopmesh/model"
)

// SummaryInput is what a Summarizer folds into one text.
type SummaryInput struct {
	// Previous is the summary written by the last compaction, if any.
	Previous string
	Turns    []core.Turn
	// Shown lists the products displayed since the previous summary.
	Shown []string
}

// Summarizer folds older turns (and any previous summary) into one text.
type Summarizer interface {
	Summarize(ctx context.Context, in SummaryInput) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, in SummaryInput) (string, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, in SummaryInput) (string, error) {
	return f(ctx, in)
}

// DefaultSummaryPrompt instructs the model to keep shopping context.
const DefaultSummaryPrompt = `You maintain the running memory of a shopping assistant conversation.
Merge the previous summary and the new turns into one short paragraph (at most {{ .max_chars }} characters).
Keep: the shopper's stated preferences, budget limits, categories, sizes, colours, intended use,
and the products already shown to them. Drop greetings and filler. Reply with the summary only.`

// ModelSummarizer asks a language model for the summary.
type ModelSummarizer struct {
	model    model.Model
	prompt   string
	maxChars int
	timeout  time.Duration
}

// NewModelSummarizer creates a ModelSummarizer. maxChars <= 0 defaults to 600.
func NewModelSummarizer(m model.Model, maxChars int, timeout time.Duration) *ModelSummarizer {
	if maxChars <= 0 {
		maxChars = 600
	}
	return &ModelSummarizer{model: m, prompt: DefaultSummaryPrompt, maxChars: maxChars, timeout: timeout}
}

// Summarize implements Summarizer. Failures are *core.GenerationError.
func (s *ModelSummarizer) Summarize(ctx context.Context, in SummaryInput) (string, error) {
	instructions, err := util.RenderTemplate(s.prompt, map[string]any{"max_chars": s.maxChars})
	if err != nil {
		return "", fmt.Errorf("render summary prompt: %w", err)
	}
	var b strings.Builder
	if in.Previous != "" {
		fmt.Fprintf(&b, "Previous summary:\n%s\n\n", in.Previous)
	}
	b.WriteString("New turns:\n")
	for _, t := range in.Turns {
		fmt.Fprintf(&b, "[%s]: %s\n", t.Role, t.Text)
	}
	if len(in.Shown) > 0 {
		fmt.Fprintf(&b, "\nProducts shown: %s\n", strings.Join(in.Shown, "; "))
	}
	text, err := model.GenerateText(ctx, s.model, model.Request{
		Instructions: instructions,
		Messages:     []model.Message{{Role: "user", Text: b.String()}},
	}, s.timeout)
	if err != nil {
		return "", err
	}
	return util.Truncate(text, s.maxChars), nil
}

// ExtractiveSummarizer builds a summary without a model: it keeps what the
// shopper asked for, any budget mentioned, and the products already shown.
type ExtractiveSummarizer struct {
	MaxChars int
}

// Summarize implements Summarizer. It never fails.
func (s ExtractiveSummarizer) Summarize(ctx context.Context, in SummaryInput) (string, error) {
	maxChars := s.MaxChars
	if maxChars <= 0 {
		maxChars = 600
	}
	var (
		asked  []string
		budget string
	)
	for _, t := range in.Turns {
		if t.Role != core.RoleUser {
			continue
		}
		asked = append(asked, util.Truncate(strings.TrimSpace(t.Text), 60))
		if b, ok := catalog.ParseBudget(t.Text); ok {
			budget = b.String()
		}
	}

	parts := make([]string, 0, 3)
	if len(asked) > 0 {
		parts = append(parts, "Shopper asked: "+strings.Join(asked, "; ")+".")
	}
	if budget != "" {
		parts = append(parts, "Budget: "+budget+".")
	}
	if len(in.Shown) > 0 {
		parts = append(parts, "Shown: "+strings.Join(in.Shown, "; ")+".")
	}
	fresh := strings.Join(parts, " ")
	if fresh == "" {
		fresh = "Earlier small talk."
	}
	fresh = util.Truncate(fresh, maxChars)

	// Older context gives way to newer context when space runs out.
	previous := strings.TrimSpace(in.Previous)
	room := maxChars - len([]rune(fresh)) - 1
	if previous == "" || room < 20 {
		return fresh, nil
	}
	return util.Truncate(previous, room) + " " + fresh, nil
}

// ShownItems renders products the way they are remembered in
// core.Session.Shown.
func ShownItems(products []core.ProductResult) []string {
	if len(products) == 0 {
		return nil
	}
	items := make([]string, len(products))
	for i, p := range products {
		items[i] = fmt.Sprintf("%s (%s, ₹%.0f)", p.Title, p.Brand, p.DiscountedPrice)
	}
	return items
}
