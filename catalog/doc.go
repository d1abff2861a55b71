// Package catalog owns the product record shape: how ingested catalog rows
// map to index metadata, how index hits map back to core.Candidate, and how
// candidates are validated, deduplicated and truncated into the
// core.ProductResult wire shape (Normalizer).
package catalog
