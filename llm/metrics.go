package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeFatal   = "fatal"
)

// Metrics records LLM call statistics. A nil *Metrics records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	tokens    *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
}

// NewMetrics registers the LLM collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "discogrid",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "LLM endpoint attempts by capability, provider and outcome.",
		}, []string{"capability", "provider", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "discogrid",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Latency of LLM endpoint attempts.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"capability", "provider"}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "discogrid",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens consumed by kind (prompt or completion).",
		}, []string{"provider", "kind"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "discogrid",
			Subsystem: "llm",
			Name:      "fallbacks_total",
			Help:      "Times a capability moved on to the next endpoint in its chain.",
		}, []string{"capability"}),
	}
}

func (m *Metrics) observeAttempt(capability, provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(capability, provider, outcome).Inc()
	m.duration.WithLabelValues(capability, provider).Observe(elapsed.Seconds())
}

func (m *Metrics) observeUsage(provider string, usage TokenUsage) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(provider, "prompt").Add(float64(usage.PromptTokens))
	m.tokens.WithLabelValues(provider, "completion").Add(float64(usage.CompletionTokens))
}

func (m *Metrics) observeFallback(capability string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(capability).Inc()
}
