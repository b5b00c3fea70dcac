// Package metrics records answer-path measurements.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/regula/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.Metrics = (*Recorder)(nil)

const namespace = "regula"

// Recorder exports metrics through its own Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	queries            *prometheus.CounterVec
	queryLatency       *prometheus.HistogramVec
	providerCalls      *prometheus.CounterVec
	providerLatency    *prometheus.HistogramVec
	providerTokens     *prometheus.CounterVec
	providerCost       *prometheus.CounterVec
	groundingViolation *prometheus.CounterVec
	chunksIngested     prometheus.Counter
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Questions answered, by mode and outcome",
		}, []string{"mode", "outcome"}),
		queryLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end question latency",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"mode"}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Generation calls, by provider and error kind (ok on success)",
		}, []string{"provider", "result"}),
		providerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Generation call latency",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"provider"}),
		providerTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "tokens_total",
			Help:      "Tokens consumed by generation calls",
		}, []string{"provider"}),
		providerCost: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "cost_usd_total",
			Help:      "Estimated generation cost in USD",
		}, []string{"provider"}),
		groundingViolation: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grounding_violations_total",
			Help:      "Answers downgraded to abstention for unresolvable citations",
		}, []string{"provider"}),
		chunksIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_ingested_total",
			Help:      "Chunks written to the document store",
		}),
	}
}

// QueryFinished counts one question.
func (r *Recorder) QueryFinished(mode, outcome string, elapsed time.Duration) {
	r.queries.WithLabelValues(mode, outcome).Inc()
	r.queryLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ProviderCall records one generation call.
func (r *Recorder) ProviderCall(provider, kind string, latency time.Duration, tokens int, costUSD float64) {
	result := kind
	if result == "" {
		result = "ok"
	}
	r.providerCalls.WithLabelValues(provider, result).Inc()
	r.providerLatency.WithLabelValues(provider).Observe(latency.Seconds())
	if tokens > 0 {
		r.providerTokens.WithLabelValues(provider).Add(float64(tokens))
	}
	if costUSD > 0 {
		r.providerCost.WithLabelValues(provider).Add(costUSD)
	}
}

// GroundingViolation counts a downgraded answer.
func (r *Recorder) GroundingViolation(provider string) {
	r.groundingViolation.WithLabelValues(provider).Inc()
}

// ChunksIngested counts stored chunks.
func (r *Recorder) ChunksIngested(n int) {
	r.chunksIngested.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Noop discards all measurements.
type Noop struct{}

// Ensure Noop implements the interface.
var _ driven.Metrics = Noop{}

func (Noop) QueryFinished(string, string, time.Duration)              {}
func (Noop) ProviderCall(string, string, time.Duration, int, float64) {}
func (Noop) GroundingViolation(string)                                {}
func (Noop) ChunksIngested(int)                                       {}
