package config

import (
	"errors"
	"fmt"
)

var (
	llmProviders      = []string{"none", "openai", "anthropic"}
	embedderProviders = []string{"hashing", "openai"}
	vectorBackends    = []string{"memory", "qdrant", "pgvector"}
	sessionBackends   = []string{"memory", "sqlite", "postgres"}
	logBackends       = []string{"slog", "zap"}
	logFormats        = []string{"json", "text"}
	sizers            = []string{"chars", "tokens"}
	summarizers       = []string{"extractive", "model"}
)

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	oneOf := func(field, value string, allowed []string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown value %q (want one of %v)", field, value, allowed))
	}

	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port: %d out of range", c.Server.Port)
	check(c.Server.RequestTimeout >= 0, "server.request_timeout must not be negative")

	oneOf("logging.backend", c.Logging.Backend, logBackends)
	oneOf("logging.format", c.Logging.Format, logFormats)
	oneOf("llm.provider", c.LLM.Provider, llmProviders)
	oneOf("embedder.provider", c.Embedder.Provider, embedderProviders)
	oneOf("vector_store.backend", c.VectorStore.Backend, vectorBackends)
	oneOf("sessions.backend", c.Sessions.Backend, sessionBackends)
	oneOf("memory.sizer", c.Memory.Sizer, sizers)
	oneOf("memory.summarizer", c.Memory.Summarizer, summarizers)

	check(c.Embedder.Dimension > 0, "embedder.dimension must be positive")
	check(c.Retriever.K > 0, "retriever.k must be positive")
	check(c.Retriever.MaxK >= c.Retriever.K, "retriever.max_k (%d) must be at least k (%d)", c.Retriever.MaxK, c.Retriever.K)
	check(c.Retriever.Lambda >= 0 && c.Retriever.Lambda <= 1, "retriever.lambda must be within [0, 1]")
	check(c.Retriever.KeywordWeight >= 0 && c.Retriever.PriceWeight >= 0, "retriever weights must not be negative")
	check(c.Catalog.MaxResults > 0, "catalog.max_results must be positive")

	check(c.Memory.Threshold > 0, "memory.threshold must be positive")
	check(c.Memory.KeepRecent >= 0, "memory.keep_recent must not be negative")
	check(c.Memory.MaxTurns >= 0, "memory.max_turns must not be negative")
	check(c.Memory.MaxTurns == 0 || c.Memory.KeepRecent < c.Memory.MaxTurns,
		"memory.keep_recent (%d) must be lower than memory.max_turns (%d)", c.Memory.KeepRecent, c.Memory.MaxTurns)
	check(c.Memory.Summarizer != "model" || c.LLM.Provider != "none", "memory.summarizer model requires an llm.provider")

	check(c.Sessions.IdleTTL >= 0, "sessions.idle_ttl must not be negative")
	check(c.Sessions.Backend != "sqlite" || c.Sessions.SQLitePath != "", "sessions.sqlite_path is required for the sqlite backend")
	check(c.Sessions.Backend != "postgres" || c.Sessions.PostgresURL != "", "sessions.postgres_url (or DATABASE_URL) is required for the postgres backend")
	check(c.VectorStore.Backend != "pgvector" || c.VectorStore.Postgres.URL != "", "vector_store.postgres.url (or DATABASE_URL) is required for pgvector")
	check(c.VectorStore.Backend != "qdrant" || c.VectorStore.Qdrant.URL != "", "vector_store.qdrant.url is required for qdrant")
	check(c.Ingest.BatchSize > 0, "ingest.batch_size must be positive")

	return errors.Join(errs...)
}
