package core

// IntentKind tags the decision taken for a user message.
type IntentKind string

const (
	// IntentProductQuery routes the message through product search.
	IntentProductQuery IntentKind = "product_query"
	// IntentConversational answers directly without retrieval.
	IntentConversational IntentKind = "conversational"
)

// Intent is the tagged result of classifying a message. Query is only set
// for product queries and holds the text sent to the search tool.
type Intent struct {
	Kind   IntentKind
	Query  string
	Reason string
}

// ProductQuery builds a product intent.
func ProductQuery(query, reason string) Intent {
	return Intent{Kind: IntentProductQuery, Query: query, Reason: reason}
}

// Conversational builds a conversational intent.
func Conversational(reason string) Intent {
	return Intent{Kind: IntentConversational, Reason: reason}
}

// IsProductQuery reports whether retrieval is needed.
func (i Intent) IsProductQuery() bool { return i.Kind == IntentProductQuery }
