// Package embedding groups the core.Embedder implementations: a
// deterministic feature-hashing embedder (hashing) for offline use and tests,
// and an OpenAI embeddings client (openai).
package embedding
