// Package observability wires Prometheus instrumentation for the completion
// gateway client.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CompletionMetrics records gateway completion outcomes. It implements
// openrouter.MetricsRecorder.
type CompletionMetrics struct {
	completions *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewCompletionMetrics registers the completion metrics on the given
// registerer. Pass prometheus.DefaultRegisterer in production.
func NewCompletionMetrics(reg prometheus.Registerer) *CompletionMetrics {
	factory := promauto.With(reg)
	return &CompletionMetrics{
		completions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flashdeck",
			Subsystem: "gateway",
			Name:      "completions_total",
			Help:      "Chat completion calls by final outcome.",
		}, []string{"outcome"}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flashdeck",
			Subsystem: "gateway",
			Name:      "completion_attempts_total",
			Help:      "HTTP attempts spent per completion call, by attempt count.",
		}, []string{"attempts"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flashdeck",
			Subsystem: "gateway",
			Name:      "completion_duration_seconds",
			Help:      "Wall time of a completion call including retries and backoff.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}),
	}
}

// ObserveCompletion records one finished completion call.
func (m *CompletionMetrics) ObserveCompletion(outcome string, attempts int, duration time.Duration) {
	m.completions.WithLabelValues(outcome).Inc()
	m.attempts.WithLabelValues(strconv.Itoa(attempts)).Inc()
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}
