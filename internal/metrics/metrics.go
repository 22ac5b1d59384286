package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 服务运行指标
// 方法对nil接收者安全，不需要打点的场合（如测试）可直接传nil
type Metrics struct {
	activeSessions prometheus.Gauge
	turns          *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	providerErrors *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "miko",
			Name:      "active_sessions",
			Help:      "Number of websocket sessions currently connected.",
		}),
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miko",
			Name:      "turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"outcome"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "miko",
			Name:      "turn_stage_duration_seconds",
			Help:      "Duration of each turn pipeline stage.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"stage"}),
		providerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miko",
			Name:      "provider_errors_total",
			Help:      "Errors returned by external speech and llm providers.",
		}, []string{"provider"}),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) TurnFinished(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ProviderError(provider string) {
	if m == nil {
		return
	}
	m.providerErrors.WithLabelValues(provider).Inc()
}
