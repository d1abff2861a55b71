package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/config"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/internal/testutil"
	"github.com/hupe1980/shopmesh/observability"
	"github.com/hupe1980/shopmesh/retriever"
	"github.com/hupe1980/shopmesh/tool"
)

type call struct {
	sessionID string
	text      string
}

// recordingChatter echoes messages and remembers what it was asked.
type recordingChatter struct {
	mu    sync.Mutex
	calls []call
}

func (c *recordingChatter) HandleMessage(ctx context.Context, sessionID, text string) core.Reply {
	c.mu.Lock()
	c.calls = append(c.calls, call{sessionID, text})
	c.mu.Unlock()
	if sessionID == "" {
		sessionID = "generated"
	}
	return core.Reply{
		Reply:     "echo: " + text,
		Products:  []core.ProductResult{{Title: "Blue Shoe", Brand: "Stride", DiscountedPrice: 2499, RetailPrice: 2999}},
		SessionID: sessionID,
		Intent:    core.IntentProductQuery,
	}
}

func (c *recordingChatter) last() call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[len(c.calls)-1]
}

func newTestServer(t *testing.T) (*httptest.Server, *recordingChatter, *observability.Metrics) {
	t.Helper()
	chat := &recordingChatter{}
	metrics := observability.NewMetrics("test", nil)
	index := &testutil.StaticIndex{Candidates: []core.Candidate{testutil.NewCandidate("p1").Build()}}
	search := tool.NewProductSearch(retriever.New(testutil.ConstEmbedder{Vector: []float32{1, 0}}, index), nil)
	srv := New(config.ServerConfig{RequestTimeout: time.Second}, chat, func(o *Options) {
		o.Metrics = metrics
		o.Tools = tool.NewRegistry(search)
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, chat, metrics
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	for _, path := range []string{"/health", "/healthz"} {
		res, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		var body map[string]string
		require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "healthy", body["status"])
	}
}

func TestChat_JSON(t *testing.T) {
	ts, chat, _ := newTestServer(t)

	body, _ := json.Marshal(ChatRequest{Message: "running shoes", SessionID: "s1"})
	res, err := http.Post(ts.URL+"/v1/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var reply core.Reply
	require.NoError(t, json.NewDecoder(res.Body).Decode(&reply))
	assert.Equal(t, "echo: running shoes", reply.Reply)
	assert.Equal(t, "s1", reply.SessionID)
	require.Len(t, reply.Products, 1)
	assert.Equal(t, call{"s1", "running shoes"}, chat.last())
}

func TestChat_Errors(t *testing.T) {
	ts, chat, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty body", "", "empty_message"},
		{"blank message", `{"message":"   "}`, "empty_message"},
		{"broken json", `{"message":`, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := http.Post(ts.URL+"/v1/chat", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer res.Body.Close()
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			var e errorResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&e))
			assert.Equal(t, tt.code, e.Code)
		})
	}
	assert.Empty(t, chat.calls)
}

func TestForm_DefaultsThreadID(t *testing.T) {
	ts, chat, _ := newTestServer(t)

	res, err := http.PostForm(ts.URL+"/get", url.Values{"msg": {"tshirt under 500"}})
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, call{"default_thread", "tshirt under 500"}, chat.last())

	res2, err := http.PostForm(ts.URL+"/get", url.Values{"msg": {"in blue"}, "thread_id": {"t-9"}})
	require.NoError(t, err)
	defer res2.Body.Close()
	var reply core.Reply
	require.NoError(t, json.NewDecoder(res2.Body).Decode(&reply))
	assert.Equal(t, "t-9", reply.SessionID)
}

func TestForm_EmptyMessage(t *testing.T) {
	ts, _, _ := newTestServer(t)

	res, err := http.PostForm(ts.URL+"/get", url.Values{"msg": {""}})
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	raw, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(raw), EmptyMessageReply)
}

func TestMetrics_CountsRequests(t *testing.T) {
	ts, _, _ := newTestServer(t)

	res, err := http.PostForm(ts.URL+"/get", url.Values{"msg": {"hello"}})
	require.NoError(t, err)
	res.Body.Close()

	res, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(raw), `test_http_requests_total{code="200",method="POST",route="/get"} 1`)
}

func TestChatWS_ContinuesSession(t *testing.T) {
	ts, chat, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ChatRequest{Message: "hi"}))
	var first core.Reply
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "generated", first.SessionID)

	require.NoError(t, conn.WriteJSON(ChatRequest{Message: "shoes"}))
	var second core.Reply
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, call{"generated", "shoes"}, chat.last())

	require.NoError(t, conn.WriteJSON(ChatRequest{Message: ""}))
	var e errorResponse
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, "empty_message", e.Code)
}

func TestTools_ListAndCall(t *testing.T) {
	ts, _, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/v1/tools")
	require.NoError(t, err)
	var tools []toolInfo
	require.NoError(t, json.NewDecoder(res.Body).Decode(&tools))
	res.Body.Close()
	require.Len(t, tools, 1)
	assert.Equal(t, tool.ProductSearchName, tools[0].Name)
	assert.Contains(t, tools[0].Parameters, "properties")

	res, err = http.Post(ts.URL+"/v1/tools/"+tool.ProductSearchName, "application/json", strings.NewReader(`{"query":"tshirt"}`))
	require.NoError(t, err)
	var resp core.ToolResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "Product p1", resp.Products[0].Title)

	tests := []struct {
		path, body string
		status     int
	}{
		{"/v1/tools/" + tool.ProductSearchName, `{}`, http.StatusBadRequest},
		{"/v1/tools/" + tool.ProductSearchName, `{"query":7}`, http.StatusBadRequest},
		{"/v1/tools/nope", `{}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		res, err := http.Post(ts.URL+tt.path, "application/json", strings.NewReader(tt.body))
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, tt.status, res.StatusCode, tt.path+" "+tt.body)
	}
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://shop.local", true},
		{"https://evil.example", false},
		{"file://shop.local", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://shop.local/v1/chat/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, sameOrigin(r), tt.origin)
	}
}
