// Package core provides the foundational domain types and contracts used by
// shopmesh. It defines the core abstractions for:
//
//   - Sessions (ordered conversation turns plus an optional rolling summary)
//   - Candidates and ProductResults (raw retrieved records and their wire shape)
//   - Intents (the tagged decision made for every user message)
//   - Pluggable backends for session persistence, embeddings and vector search
//   - The error taxonomy shared by every component
//
// Concrete backends live in sibling packages (session/..., vectorstore/...,
// embedding/...), keeping this package free of I/O.
package core
