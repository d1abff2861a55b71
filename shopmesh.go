// Package shopmesh provides a high-level façade over the product search
// agent: it wires an embedder, a vector index, the retriever, the product
// search tool, conversation memory and the agent loop.
//
// Most applications:
//  1. Create a ShopMesh via New() (optionally overriding the in-memory defaults)
//  2. Load the catalog with Ingest
//  3. Answer shoppers with HandleMessage
//
// All defaults run without network access: a hashing embedder, an
// in-memory vector index and session store, and canned conversational
// replies. Production deployments supply durable stores and a model.
package shopmesh

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/shopmesh/agent"
	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/embedding/hashing"
	"github.com/hupe1980/shopmesh/ingest"
	"github.com/hupe1980/shopmesh/logging"
	memorystore "github.com/hupe1980/shopmesh/memory"
	"github.com/hupe1980/shopmesh/model"
	"github.com/hupe1980/shopmesh/observability"
	"github.com/hupe1980/shopmesh/retriever"
	"github.com/hupe1980/shopmesh/session"
	"github.com/hupe1980/shopmesh/tool"
	vectormemory "github.com/hupe1980/shopmesh/vectorstore/memory"
)

// Options configure a ShopMesh instance.
type Options struct {
	// Embedder turns queries and catalog text into vectors.
	Embedder core.Embedder
	// VectorIndex is searched at query time. Ingest additionally requires
	// it to implement core.VectorWriter.
	VectorIndex core.VectorIndex
	// Model answers conversational messages and, when the memory policy
	// uses it, writes summaries. Nil means canned replies.
	Model        model.Model
	SessionStore core.SessionStore

	// MaxResults bounds the products in one reply.
	MaxResults int
	// WeakScore turns low-confidence results into a clarification reply.
	WeakScore float64

	Retriever []func(o *retriever.Options)
	Memory    []func(o *memorystore.Options)
	Agent     []func(o *agent.Options)

	// Metrics, when set, receives reply, retrieval and compaction
	// observations.
	Metrics *observability.Metrics
	Logger  logging.Logger
}

// ShopMesh is the assembled product search assistant.
type ShopMesh struct {
	opts      Options
	retriever *retriever.Retriever
	memory    *memorystore.Store
	tools     *tool.Registry
	agent     *agent.Agent
}

// New creates a ShopMesh. Any unset dependency is initialized with an
// in-memory or offline implementation.
func New(optFns ...func(o *Options)) *ShopMesh {
	opts := Options{
		Embedder:     hashing.New(),
		VectorIndex:  vectormemory.New(),
		SessionStore: session.NewInMemoryStore(),
		MaxResults:   catalog.DefaultMaxResults,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	ret := retriever.New(opts.Embedder, opts.VectorIndex, append([]func(o *retriever.Options){func(o *retriever.Options) {
		o.Logger = opts.Logger
		if opts.Metrics != nil {
			o.OnSearch = opts.Metrics.ObserveRetrieval
		}
	}}, opts.Retriever...)...)

	search := tool.NewProductSearch(ret, catalog.NewNormalizer(opts.MaxResults), func(o *tool.ProductSearchOptions) {
		o.WeakScore = opts.WeakScore
		o.Logger = opts.Logger
	})

	store := memorystore.NewStore(opts.SessionStore, append([]func(o *memorystore.Options){func(o *memorystore.Options) {
		o.Logger = opts.Logger
		if opts.Metrics != nil {
			o.OnCompaction = opts.Metrics.ObserveCompaction
		}
	}}, opts.Memory...)...)

	ag := agent.New(search, store, append([]func(o *agent.Options){func(o *agent.Options) {
		o.Model = opts.Model
		o.Logger = opts.Logger
		if opts.Metrics != nil {
			o.OnReply = opts.Metrics.ObserveReply
		}
	}}, opts.Agent...)...)

	return &ShopMesh{opts: opts, retriever: ret, memory: store, tools: tool.NewRegistry(search), agent: ag}
}

// HandleMessage answers one shopper message. It never fails; degraded
// replies carry Degraded=true.
func (m *ShopMesh) HandleMessage(ctx context.Context, sessionID, text string) core.Reply {
	return m.agent.HandleMessage(ctx, sessionID, text)
}

// Ingest loads catalog JSONL from r into the vector index.
func (m *ShopMesh) Ingest(ctx context.Context, r io.Reader, optFns ...func(o *ingest.Options)) (ingest.Stats, error) {
	writer, ok := m.opts.VectorIndex.(core.VectorWriter)
	if !ok {
		return ingest.Stats{}, fmt.Errorf("vector index %T does not support writes", m.opts.VectorIndex)
	}
	return ingest.New(m.opts.Embedder, writer, append([]func(o *ingest.Options){func(o *ingest.Options) {
		o.Logger = m.opts.Logger
	}}, optFns...)...).Ingest(ctx, r)
}

// Session returns the stored conversation for id (empty for unknown IDs).
func (m *ShopMesh) Session(ctx context.Context, id string) (*core.Session, error) {
	return m.memory.Load(ctx, id)
}

// Search runs a raw retrieval without touching conversation memory.
func (m *ShopMesh) Search(ctx context.Context, query string, k int) ([]core.Candidate, error) {
	return m.retriever.Search(ctx, query, k)
}

// Tools returns the registry of tools the assistant uses.
func (m *ShopMesh) Tools() *tool.Registry { return m.tools }

// Agent exposes the agent loop, e.g. for the HTTP server.
func (m *ShopMesh) Agent() *agent.Agent { return m.agent }

// NewSweeper creates an idle-session sweeper for the configured session
// store. It fails when the store cannot delete idle sessions.
func (m *ShopMesh) NewSweeper(ttl time.Duration, optFns ...func(o *session.SweeperOptions)) (*session.IdleSweeper, error) {
	sw, ok := m.opts.SessionStore.(core.Sweeper)
	if !ok {
		return nil, fmt.Errorf("session store %T cannot evict idle sessions", m.opts.SessionStore)
	}
	return session.NewIdleSweeper(sw, append([]func(o *session.SweeperOptions){func(o *session.SweeperOptions) {
		o.TTL = ttl
		o.Logger = m.opts.Logger
		if m.opts.Metrics != nil {
			o.OnSweep = m.opts.Metrics.ObserveSweep
		}
	}}, optFns...)...)
}
