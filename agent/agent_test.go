package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/internal/testutil"
	"github.com/hupe1980/shopmesh/memory"
	"github.com/hupe1980/shopmesh/model"
	"github.com/hupe1980/shopmesh/retriever"
	"github.com/hupe1980/shopmesh/session"
	"github.com/hupe1980/shopmesh/tool"
)

var _ ProductTool = (*tool.ProductSearch)(nil)

type mockTool struct{ mock.Mock }

func (m *mockTool) Invoke(ctx context.Context, query string) (core.ToolResponse, error) {
	args := m.Called(ctx, query)
	return args.Get(0).(core.ToolResponse), args.Error(1)
}

func products(ids ...string) core.ToolResponse {
	resp := core.ToolResponse{Reply: fmt.Sprintf("Here are %d products.", len(ids))}
	for _, id := range ids {
		resp.Products = append(resp.Products, core.ProductResult{ID: id, Title: "Item " + id, Brand: "Acme", DiscountedPrice: 499})
		resp.ProductIDs = append(resp.ProductIDs, id)
	}
	return resp
}

func newTestAgent(t *testing.T, search ProductTool, memFns []func(o *memory.Options), optFns ...func(o *Options)) (*Agent, *memory.Store, *session.InMemoryStore) {
	t.Helper()
	backend := session.NewInMemoryStore()
	store := memory.NewStore(backend, memFns...)
	return New(search, store, optFns...), store, backend
}

func loadTurns(t *testing.T, store *memory.Store, id string) []core.Turn {
	t.Helper()
	sess, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	return sess.Turns
}

func TestAgent_GreetingIsConversational(t *testing.T) {
	search := &mockTool{}
	a, store, _ := newTestAgent(t, search, nil)

	reply := a.HandleMessage(context.Background(), "s1", "hi")

	assert.Equal(t, ReplyGreeting, reply.Reply)
	assert.Equal(t, core.IntentConversational, reply.Intent)
	assert.Empty(t, reply.Products)
	assert.NotNil(t, reply.Products)
	assert.False(t, reply.Degraded)
	search.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)

	turns := loadTurns(t, store, "s1")
	require.Len(t, turns, 2)
	assert.Equal(t, core.RoleUser, turns[0].Role)
	assert.Equal(t, "hi", turns[0].Text)
	assert.Equal(t, ReplyGreeting, turns[1].Text)
}

func TestAgent_ProductQueryInvokesToolOnce(t *testing.T) {
	search := &mockTool{}
	search.On("Invoke", mock.Anything, "men tshirt under 500").Return(products("A", "B"), nil).Once()
	a, store, _ := newTestAgent(t, search, nil)

	reply := a.HandleMessage(context.Background(), "s1", "men tshirt under 500")

	search.AssertExpectations(t)
	search.AssertNumberOfCalls(t, "Invoke", 1)
	assert.Equal(t, core.IntentProductQuery, reply.Intent)
	assert.Equal(t, "Here are 2 products.", reply.Reply)
	require.Len(t, reply.Products, 2)
	assert.Equal(t, "s1", reply.SessionID)

	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, "men tshirt under 500", sess.Turns[0].Text)
	assert.Equal(t, reply.Reply, sess.Turns[1].Text)
	assert.Equal(t, []string{"Item A (Acme, ₹499)", "Item B (Acme, ₹499)"}, sess.Shown)
}

func TestAgent_FollowUpUsesRememberedConstraints(t *testing.T) {
	search := &mockTool{}
	search.On("Invoke", mock.Anything, "men tshirt under 500").Return(products("A"), nil).Once()
	search.On("Invoke", mock.Anything, "in blue men tshirt under 500").Return(products("B"), nil).Once()
	a, _, _ := newTestAgent(t, search, nil)

	a.HandleMessage(context.Background(), "s1", "men tshirt under 500")
	reply := a.HandleMessage(context.Background(), "s1", "in blue")

	search.AssertExpectations(t)
	assert.Equal(t, core.IntentProductQuery, reply.Intent)
	assert.Equal(t, "B", reply.Products[0].ID)
}

func TestAgent_RetrievalUnavailableDegrades(t *testing.T) {
	search := &mockTool{}
	search.On("Invoke", mock.Anything, mock.Anything).Return(core.ToolResponse{},
		&tool.ToolError{Tool: "product_search", Code: tool.CodeUnavailable, Err: &core.RetrievalError{Op: "search", Err: errors.New("connection refused")}})
	a, store, _ := newTestAgent(t, search, nil)

	reply := a.HandleMessage(context.Background(), "s1", "office chair")

	assert.True(t, reply.Degraded)
	assert.Equal(t, ReplyUnavailable, reply.Reply)
	assert.NotNil(t, reply.Products)
	assert.Empty(t, reply.Products)
	assert.Len(t, loadTurns(t, store, "s1"), 2)
}

func TestAgent_RealToolRetrievalTimeout(t *testing.T) {
	index := &testutil.StaticIndex{Err: errors.New("dial tcp: connection refused")}
	r := retriever.New(testutil.ConstEmbedder{Vector: []float32{1, 0}}, index)
	search := tool.NewProductSearch(r, catalog.NewNormalizer(5))
	a, _, _ := newTestAgent(t, search, nil)

	reply := a.HandleMessage(context.Background(), "s1", "gaming laptop")

	assert.True(t, reply.Degraded)
	assert.Equal(t, ReplyUnavailable, reply.Reply)
	assert.Empty(t, reply.Products)
}

func TestAgent_EndToEndWithRealTool(t *testing.T) {
	index := &testutil.StaticIndex{Candidates: []core.Candidate{
		testutil.NewCandidate("A").WithTitle("Ergonomic Office Chair").WithVector(1, 0).WithScore(0.9).Build(),
		testutil.NewCandidate("B").WithTitle("Gaming Chair").WithVector(0, 1).WithScore(0.7).Build(),
		testutil.NewCandidate("C").WithURL("").WithVector(1, 1).Build(),
	}}
	r := retriever.New(testutil.ConstEmbedder{Vector: []float32{1, 0.2}}, index)
	search := tool.NewProductSearch(r, catalog.NewNormalizer(5))
	a, _, _ := newTestAgent(t, search, nil)

	reply := a.HandleMessage(context.Background(), "s1", "yes office chair")

	assert.False(t, reply.Degraded)
	require.Len(t, reply.Products, 2)
	ids := []string{reply.Products[0].ID, reply.Products[1].ID}
	assert.ElementsMatch(t, []string{"A", "B"}, ids)
}

func TestAgent_CancelledBeforeStartAppendsNothing(t *testing.T) {
	search := &mockTool{}
	a, store, _ := newTestAgent(t, search, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply := a.HandleMessage(ctx, "s1", "running shoes")

	assert.True(t, reply.Degraded)
	assert.Empty(t, loadTurns(t, store, "s1"))
	search.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestAgent_CancelledDuringRetrievalAppendsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	search := &mockTool{}
	search.On("Invoke", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(core.ToolResponse{}, &core.RetrievalError{Op: "search", Err: context.Canceled})
	a, store, _ := newTestAgent(t, search, nil)

	reply := a.HandleMessage(ctx, "s1", "running shoes")

	assert.True(t, reply.Degraded)
	assert.Equal(t, ReplyCancelled, reply.Reply)
	assert.Empty(t, loadTurns(t, store, "s1"))
}

func TestAgent_ModelReplyAndFallback(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("how are you", "Doing great! What can I find for you?")
	a, _, _ := newTestAgent(t, &mockTool{}, nil, func(o *Options) { o.Model = m })

	reply := a.HandleMessage(context.Background(), "s1", "how are you")
	assert.Equal(t, "Doing great! What can I find for you?", reply.Reply)
	assert.False(t, reply.Degraded)
	require.Len(t, m.Calls(), 1)
	assert.Contains(t, m.Calls()[0].Instructions, "product recommendation assistant")

	m.SetError(errors.New("503"))
	reply = a.HandleMessage(context.Background(), "s1", "hello")
	assert.True(t, reply.Degraded)
	assert.Equal(t, ReplyGreeting, reply.Reply)
	assert.Empty(t, reply.Products)
}

func TestAgent_EmptyMessage(t *testing.T) {
	a, store, _ := newTestAgent(t, &mockTool{}, nil)

	reply := a.HandleMessage(context.Background(), "s1", "   ")

	assert.Equal(t, ReplyEmptyMessage, reply.Reply)
	assert.Empty(t, loadTurns(t, store, "s1"))
}

func TestAgent_GeneratesSessionID(t *testing.T) {
	a, _, _ := newTestAgent(t, &mockTool{}, nil)

	reply := a.HandleMessage(context.Background(), "", "thanks")

	assert.Len(t, reply.SessionID, 36)
	assert.Equal(t, ReplyThanks, reply.Reply)
}

func TestAgent_SequentialOrdering(t *testing.T) {
	a, store, _ := newTestAgent(t, &mockTool{}, nil)
	msgs := []string{"hi", "thanks", "bye"}

	for _, msg := range msgs {
		a.HandleMessage(context.Background(), "s1", msg)
	}

	turns := loadTurns(t, store, "s1")
	require.Len(t, turns, 6)
	for i, msg := range msgs {
		assert.Equal(t, msg, turns[2*i].Text)
		assert.Equal(t, 2*i, turns[2*i].Index)
	}
}

func TestAgent_ConcurrentSameSessionSerialized(t *testing.T) {
	search := &mockTool{}
	search.On("Invoke", mock.Anything, mock.Anything).Return(products("A"), nil)
	a, store, _ := newTestAgent(t, search, []func(o *memory.Options){func(o *memory.Options) {
		o.MaxTurns = 0
		o.Threshold = 1 << 20
	}})

	const n = 12
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a.HandleMessage(context.Background(), "shared", fmt.Sprintf("laptop model %c", 'a'+i))
		}(i)
	}
	wg.Wait()

	turns := loadTurns(t, store, "shared")
	require.Len(t, turns, 2*n)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, core.RoleUser, turns[i].Role)
		assert.Equal(t, core.RoleAssistant, turns[i+1].Role)
		assert.Equal(t, i, turns[i].Index)
	}
}

func TestAgent_CompactsAfterThreshold(t *testing.T) {
	a, store, _ := newTestAgent(t, &mockTool{}, []func(o *memory.Options){func(o *memory.Options) {
		o.MaxTurns = 4
		o.KeepRecent = 2
	}})

	for _, msg := range []string{"hi", "thanks", "hello"} {
		a.HandleMessage(context.Background(), "s1", msg)
	}

	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotNil(t, sess.Summary)
	assert.Equal(t, core.RoleSummary, sess.Turns[0].Role)
	assert.LessOrEqual(t, len(sess.History()), 4)
}

func TestAgent_TurnIndicesKeepGrowingAcrossCompaction(t *testing.T) {
	search := &mockTool{}
	search.On("Invoke", mock.Anything, mock.Anything).Return(products("A"), nil)
	a, store, _ := newTestAgent(t, search, []func(o *memory.Options){func(o *memory.Options) {
		o.MaxTurns = 6
		o.KeepRecent = 2
	}})

	var lastIndices []int
	for _, msg := range []string{"red sneakers", "blue jeans", "wool scarf", "leather wallet", "steel bottle"} {
		a.HandleMessage(context.Background(), "s1", msg)
		turns := loadTurns(t, store, "s1")
		lastIndices = append(lastIndices, turns[len(turns)-1].Index)
	}

	assert.Equal(t, []int{1, 3, 5, 7, 9}, lastIndices)

	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, sess.Summary)
	assert.Contains(t, sess.SummaryText(), "Item A (Acme, ₹499)")
	for _, tr := range sess.History() {
		assert.NotContains(t, tr.Text, "₹")
	}
}

func TestAgent_SessionStoreFailureStillReplies(t *testing.T) {
	search := &mockTool{}
	search.On("Invoke", mock.Anything, "wireless earbuds").Return(products("E"), nil)
	backend := &testutil.FailingSessionStore{
		SessionStore: session.NewInMemoryStore(),
		GetErr:       errors.New("db down"),
		PutErr:       errors.New("db down"),
	}
	a := New(search, memory.NewStore(backend))

	reply := a.HandleMessage(context.Background(), "s1", "wireless earbuds")

	assert.False(t, reply.Degraded)
	assert.Len(t, reply.Products, 1)
}

func TestAgent_OnReplyHook(t *testing.T) {
	var got []core.Reply
	a, _, _ := newTestAgent(t, &mockTool{}, nil, func(o *Options) {
		o.OnReply = func(r core.Reply, _ time.Duration) { got = append(got, r) }
	})

	a.HandleMessage(context.Background(), "s1", "hello")

	require.Len(t, got, 1)
	assert.Equal(t, core.IntentConversational, got[0].Intent)
}
