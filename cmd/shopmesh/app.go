package main

import (
	"context"
	"fmt"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/shopmesh"
	"github.com/hupe1980/shopmesh/agent"
	"github.com/hupe1980/shopmesh/config"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/embedding/hashing"
	embedopenai "github.com/hupe1980/shopmesh/embedding/openai"
	"github.com/hupe1980/shopmesh/ingest"
	"github.com/hupe1980/shopmesh/logging"
	"github.com/hupe1980/shopmesh/memory"
	"github.com/hupe1980/shopmesh/model"
	"github.com/hupe1980/shopmesh/model/anthropic"
	"github.com/hupe1980/shopmesh/model/openai"
	"github.com/hupe1980/shopmesh/observability"
	"github.com/hupe1980/shopmesh/retriever"
	"github.com/hupe1980/shopmesh/session"
	"github.com/hupe1980/shopmesh/session/postgres"
	"github.com/hupe1980/shopmesh/session/sqlite"
	vectormemory "github.com/hupe1980/shopmesh/vectorstore/memory"
	"github.com/hupe1980/shopmesh/vectorstore/pgvector"
	"github.com/hupe1980/shopmesh/vectorstore/qdrant"
)

// app holds the assembled components of one process.
type app struct {
	cfg     *config.Config
	mesh    *shopmesh.ShopMesh
	metrics *observability.Metrics
	logger  logging.Logger
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes to stderr so stdout stays free for command output.
func newLogger(cfg config.LoggingConfig) (logging.Logger, func(), error) {
	level := logging.ParseLevel(cfg.Level)
	if cfg.Backend == "zap" {
		z, err := logging.NewZapProduction(level)
		if err != nil {
			return nil, nil, fmt.Errorf("build zap logger: %w", err)
		}
		return z, func() { _ = z.Sync() }, nil
	}
	lc := logging.DefaultLoggerConfig()
	lc.Level = level
	lc.Format = cfg.Format
	lc.AddSource = cfg.AddSource
	lc.Output = os.Stderr
	return logging.NewLogger(lc), func() {}, nil
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	logger, syncLogger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []func(){syncLogger}}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Metrics.Enabled {
		a.metrics = observability.NewMetrics(cfg.Metrics.Namespace, nil)
	}

	embedder := newEmbedder(cfg.Embedder)

	index, err := a.newVectorIndex(ctx, cfg.VectorStore)
	if err != nil {
		return nil, err
	}

	sessions, err := a.newSessionStore(ctx, cfg.Sessions)
	if err != nil {
		return nil, err
	}

	llm := newModel(cfg.LLM)

	memOpts, err := memoryOptions(cfg.Memory, llm, cfg.LLM)
	if err != nil {
		return nil, err
	}

	a.mesh = shopmesh.New(func(o *shopmesh.Options) {
		o.Embedder = embedder
		o.VectorIndex = index
		o.SessionStore = sessions
		o.Model = llm
		o.MaxResults = cfg.Catalog.MaxResults
		o.WeakScore = cfg.Catalog.WeakScore
		o.Metrics = a.metrics
		o.Logger = logger
		o.Retriever = []func(o *retriever.Options){func(o *retriever.Options) {
			o.K = cfg.Retriever.K
			o.MaxK = cfg.Retriever.MaxK
			o.FetchMultiplier = cfg.Retriever.FetchMultiplier
			o.Lambda = cfg.Retriever.Lambda
			o.KeywordWeight = cfg.Retriever.KeywordWeight
			o.PriceWeight = cfg.Retriever.PriceWeight
			o.Timeout = cfg.Retriever.Timeout
		}}
		o.Memory = []func(o *memory.Options){memOpts}
		o.Agent = []func(o *agent.Options){func(o *agent.Options) {
			o.Name = cfg.Agent.Name
			o.HistoryTurns = cfg.Agent.HistoryTurns
			o.CommitTimeout = cfg.Agent.CommitTimeout
			o.GenerationTimeout = cfg.LLM.Timeout
		}}
	})
	return a, nil
}

func newEmbedder(cfg config.EmbedderConfig) core.Embedder {
	if cfg.Provider == "openai" {
		return embedopenai.New(func(o *embedopenai.Options) {
			o.Model = cfg.Model
			o.Dimension = cfg.Dimension
			o.BatchSize = cfg.BatchSize
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	}
	return hashing.New(func(o *hashing.Options) { o.Dimension = cfg.Dimension })
}

func (a *app) newVectorIndex(ctx context.Context, cfg config.VectorStoreConfig) (core.VectorIndex, error) {
	switch cfg.Backend {
	case "qdrant":
		return qdrant.New(func(o *qdrant.Options) {
			o.URL = cfg.Qdrant.URL
			o.APIKey = cfg.Qdrant.APIKey
			o.Collection = cfg.Qdrant.Collection
			o.Timeout = cfg.Qdrant.Timeout
		}), nil
	case "pgvector":
		idx, err := pgvector.New(ctx, cfg.Postgres.URL, func(o *pgvector.Options) { o.Table = cfg.Postgres.Table })
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = idx.Close() })
		return idx, nil
	default:
		return vectormemory.New(), nil
	}
}

func (a *app) newSessionStore(ctx context.Context, cfg config.SessionsConfig) (core.SessionStore, error) {
	switch cfg.Backend {
	case "sqlite":
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = st.Close() })
		return st, nil
	case "postgres":
		st, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	default:
		return session.NewInMemoryStore(), nil
	}
}

// newModel returns nil for provider "none", which selects canned replies.
func newModel(cfg config.LLMConfig) model.Model {
	switch cfg.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = sdkanthropic.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		})
	default:
		return nil
	}
}

func memoryOptions(cfg config.MemoryConfig, llm model.Model, llmCfg config.LLMConfig) (func(o *memory.Options), error) {
	var summarizer memory.Summarizer = memory.ExtractiveSummarizer{MaxChars: cfg.SummaryMaxChars}
	if cfg.Summarizer == "model" {
		if llm == nil {
			return nil, fmt.Errorf("memory.summarizer=model requires llm.provider to be set")
		}
		summarizer = memory.NewModelSummarizer(llm, cfg.SummaryMaxChars, llmCfg.Timeout)
	}
	opts := func(o *memory.Options) {
		o.Threshold = cfg.Threshold
		o.KeepRecent = cfg.KeepRecent
		o.MaxTurns = cfg.MaxTurns
		o.Sizer = memory.NewSizer(cfg.Sizer)
		o.Summarizer = summarizer
		o.SummaryTimeout = cfg.SummaryTimeout
	}
	probe := memory.DefaultOptions()
	opts(&probe)
	if err := probe.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (a *app) ingestFile(ctx context.Context, path string, batch int, skipExisting bool) (ingest.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.Stats{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return a.mesh.Ingest(ctx, f, func(o *ingest.Options) {
		o.BatchSize = batch
		o.SkipExisting = skipExisting
		o.OnBatch = func(n int) { a.logger.Debug("ingest.batch.success", "indexed", n) }
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
