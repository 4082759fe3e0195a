package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveBuffers     prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	CompressionCycles *prometheus.CounterVec
	TaggingRuns       *prometheus.CounterVec
	TextGenErrors     *prometheus.CounterVec
	TextGenLatency    prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return NewMetricsFor(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsFor registers against an explicit registerer so tests can use
// isolated registries.
func NewMetricsFor(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveBuffers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_session_buffers",
			Help:      "Number of live session memory buffers.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		CompressionCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compression_cycles_total",
			Help:      "Memory compression attempts by outcome.",
		}, []string{"result"}),
		TaggingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tagging_runs_total",
			Help:      "Conversation tagging runs by outcome.",
		}, []string{"result"}),
		TextGenErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "textgen_errors_total",
			Help:      "Text-generation backend errors by class.",
		}, []string{"class"}),
		TextGenLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "textgen_latency_ms",
			Help:      "Text-generation round-trip latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000},
		}),
	}
}

func (m *Metrics) ObserveTextGenLatency(d time.Duration) {
	m.TextGenLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
