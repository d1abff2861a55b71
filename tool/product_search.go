package tool

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/internal/util"
	"github.com/hupe1980/shopmesh/logging"
)

// ProductSearchName is the registered name of the catalog search tool.
const ProductSearchName = "product_search"

// NoMatchReply is returned when no valid product survives normalization.
const NoMatchReply = `I couldn't find an exact match for that.

Can you tell me:
- your budget range, and
- what you'll use it for?`

const (
	defaultReplyTemplate = `Here {{ if eq .count 1 }}is 1 product{{ else }}are {{ .count }} products{{ end }} for "{{ .query }}".`
	defaultWeakTemplate  = `These are the closest matches I found for "{{ .query }}". What's your budget range, and what will you use it for?`
)

// Searcher is the retrieval primitive ProductSearch depends on
// (implemented by *retriever.Retriever).
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]core.Candidate, error)
}

// ProductSearchOptions configure ProductSearch.
type ProductSearchOptions struct {
	// K is passed to the searcher; 0 uses the searcher's default.
	K int
	// WeakScore marks results as weak when the best candidate scores below
	// it; the reply then asks one clarification question. 0 disables it.
	WeakScore     float64
	ReplyTemplate string
	WeakTemplate  string
	Logger        logging.Logger
}

// ProductSearch searches the catalog and normalizes the hits into a
// ToolResponse. It is stateless and safe for concurrent use.
type ProductSearch struct {
	searcher   Searcher
	normalizer *catalog.Normalizer
	opts       ProductSearchOptions
}

type productSearchArgs struct {
	Query string `json:"query" description:"What the shopper is looking for, including any budget or category constraints."`
}

// NewProductSearch creates the tool.
func NewProductSearch(searcher Searcher, normalizer *catalog.Normalizer, optFns ...func(o *ProductSearchOptions)) *ProductSearch {
	opts := ProductSearchOptions{
		ReplyTemplate: defaultReplyTemplate,
		WeakTemplate:  defaultWeakTemplate,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.ForComponent(opts.Logger, "tool")
	if normalizer == nil {
		normalizer = catalog.NewNormalizer(catalog.DefaultMaxResults)
	}
	return &ProductSearch{searcher: searcher, normalizer: normalizer, opts: opts}
}

// Name implements Tool.
func (p *ProductSearch) Name() string { return ProductSearchName }

// Description implements Tool.
func (p *ProductSearch) Description() string {
	return "Retrieve catalog products matching a shopping query, returned as product cards."
}

// Parameters implements Tool.
func (p *ProductSearch) Parameters() map[string]any { return util.CreateSchema(productSearchArgs{}) }

// Call implements Tool; args must carry a non-empty "query" string.
func (p *ProductSearch) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, p.Parameters()); err != nil {
		return nil, &ToolError{Tool: p.Name(), Message: err.Error(), Code: CodeValidation, Err: err}
	}
	q, _ := args["query"].(string)
	return p.Invoke(ctx, q)
}

// Invoke runs one search. On success the response always carries a reply;
// an empty product list yields NoMatchReply. Retrieval failures are
// returned as *ToolError wrapping core.ErrRetrievalUnavailable.
func (p *ProductSearch) Invoke(ctx context.Context, query string) (core.ToolResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return core.ToolResponse{}, NewToolError(p.Name(), "query must not be empty", CodeValidation)
	}

	start := time.Now()
	cands, err := p.searcher.Search(ctx, query, p.opts.K)
	if err != nil {
		code := CodeExecution
		if errors.Is(err, core.ErrRetrievalUnavailable) {
			code = CodeUnavailable
		}
		p.opts.Logger.Error("tool.call.failure", "tool_name", p.Name(), "duration", time.Since(start), "error", err.Error())
		return core.ToolResponse{}, &ToolError{Tool: p.Name(), Message: err.Error(), Code: code, Err: err}
	}

	products, stats := p.normalizer.NormalizeWithStats(cands)
	if stats.Dropped > 0 || stats.Duplicates > 0 {
		p.opts.Logger.Debug("tool.normalize.filtered", "tool_name", p.Name(),
			"input", stats.Input, "dropped", stats.Dropped, "duplicates", stats.Duplicates)
	}

	resp := core.ToolResponse{
		Products:   products,
		ProductIDs: make([]string, len(products)),
	}
	for i, pr := range products {
		resp.ProductIDs[i] = pr.ID
	}
	resp.Reply = p.reply(query, products, cands)

	p.opts.Logger.Info("tool.call.success", "tool_name", p.Name(), "duration", time.Since(start), "results", len(products))
	return resp, nil
}

func (p *ProductSearch) reply(query string, products []core.ProductResult, cands []core.Candidate) string {
	if len(products) == 0 {
		return NoMatchReply
	}
	tmpl := p.opts.ReplyTemplate
	if p.opts.WeakScore > 0 && topScore(cands) < p.opts.WeakScore {
		tmpl = p.opts.WeakTemplate
	}
	out, err := util.RenderTemplate(tmpl, map[string]any{"count": len(products), "query": query, "products": products})
	if err != nil || strings.TrimSpace(out) == "" {
		p.opts.Logger.Warn("tool.reply.template_failed", "tool_name", p.Name(), "error", err)
		out, _ = util.RenderTemplate(defaultReplyTemplate, map[string]any{"count": len(products), "query": query})
	}
	return strings.TrimSpace(out)
}

func topScore(cands []core.Candidate) float64 {
	best := 0.0
	for i, c := range cands {
		if i == 0 || c.Score > best {
			best = c.Score
		}
	}
	return best
}
