// Package retriever adapts an embedder and a vector index into the product
// search primitive used by the tool layer: similarity search over an
// over-fetched pool, Maximal Marginal Relevance selection for diversity and
// a light keyword/price-band rerank. Every call is bounded by a timeout and
// failures surface as core.ErrRetrievalUnavailable.
package retriever
