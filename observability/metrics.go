// Package observability exposes Prometheus instruments for the agent loop,
// memory compaction, retrieval and the HTTP surface.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/shopmesh/core"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	Predictions       *prometheus.CounterVec
	ReplyLatency      prometheus.Histogram
	RetrievalLatency  prometheus.Histogram
	RetrievalFailures prometheus.Counter
	Compactions       *prometheus.CounterVec
	SessionsEvicted   prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics registers the instruments on reg. A nil reg uses a fresh
// registry, which keeps tests and multiple instances independent.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		Predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_predictions_total",
			Help:      "Handled chat messages by intent and whether the reply was degraded.",
		}, []string{"intent", "degraded"}),
		ReplyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_latency_ms",
			Help:      "End-to-end message handling latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000},
		}),
		RetrievalLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_latency_ms",
			Help:      "Embedding plus vector search latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
		RetrievalFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_failures_total",
			Help:      "Retrieval calls that failed or timed out.",
		}),
		Compactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_compactions_total",
			Help:      "Session compactions by outcome.",
		}, []string{"outcome"}),
		SessionsEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Idle sessions removed by the sweeper.",
		}),
		gatherer: reg,
	}
}

// ObserveReply records one handled message.
func (m *Metrics) ObserveReply(r core.Reply, d time.Duration) {
	intent := string(r.Intent)
	if intent == "" {
		intent = "none"
	}
	m.Predictions.WithLabelValues(intent, strconv.FormatBool(r.Degraded)).Inc()
	m.ReplyLatency.Observe(float64(d.Milliseconds()))
}

// ObserveRetrieval records one retrieval round trip.
func (m *Metrics) ObserveRetrieval(d time.Duration, err error) {
	m.RetrievalLatency.Observe(float64(d.Milliseconds()))
	if err != nil {
		m.RetrievalFailures.Inc()
	}
}

// ObserveCompaction records a compaction outcome.
func (m *Metrics) ObserveCompaction(_ string, outcome string) {
	m.Compactions.WithLabelValues(outcome).Inc()
}

// ObserveSweep records evicted sessions.
func (m *Metrics) ObserveSweep(removed int) {
	m.SessionsEvicted.Add(float64(removed))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, code int) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
