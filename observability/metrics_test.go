package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/core"
)

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics("", nil)

	m.ObserveReply(core.Reply{Intent: core.IntentProductQuery}, 120*time.Millisecond)
	m.ObserveReply(core.Reply{Intent: core.IntentProductQuery, Degraded: true}, time.Second)
	m.ObserveRetrieval(30*time.Millisecond, nil)
	m.ObserveRetrieval(time.Second, errors.New("timeout"))
	m.ObserveCompaction("s1", "summarized")
	m.ObserveSweep(3)
	m.ObserveHTTP("/get", http.MethodPost, 200)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues("product_query", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues("product_query", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetrievalFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compactions.WithLabelValues("summarized")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsEvicted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/get", "POST", "200")))
}

func TestMetrics_HandlerExposesCounters(t *testing.T) {
	m := NewMetrics("", nil)
	m.ObserveHTTP("/health", http.MethodGet, 200)
	m.ObserveReply(core.Reply{Intent: core.IntentConversational}, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), "model_predictions_total")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("shopmesh", nil)
		NewMetrics("shopmesh", nil)
	})
}
