package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for provider calls, steps and
// missions. A nil *Metrics is valid and records nothing.
type Metrics struct {
	providerCalls    *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	providerRetries  *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	missionsFinished *prometheus.CounterVec
	plannerFallbacks prometheus.Counter
	missionsActive   prometheus.Gauge
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns collectors registered once with the global registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew registers a fresh set of collectors with reg and panics on
// duplicate registration.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researcher",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Calls to the search/LLM provider by operation and outcome.",
		}, []string{"operation", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "researcher",
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Latency of provider calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		providerRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researcher",
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "Provider calls retried after a failure.",
		}, []string{"operation"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "researcher",
			Subsystem: "mission",
			Name:      "step_duration_seconds",
			Help:      "Wall time spent executing one research step.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"status"}),
		missionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researcher",
			Subsystem: "mission",
			Name:      "finished_total",
			Help:      "Missions that reached a terminal status.",
		}, []string{"status"}),
		plannerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "researcher",
			Subsystem: "planner",
			Name:      "fallbacks_total",
			Help:      "Plans that used the static step template.",
		}),
		missionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "researcher",
			Subsystem: "mission",
			Name:      "active",
			Help:      "Missions currently executing.",
		}),
	}
	reg.MustRegister(
		m.providerCalls, m.providerLatency, m.providerRetries,
		m.stepDuration, m.missionsFinished, m.plannerFallbacks, m.missionsActive,
	)
	return m
}

func (m *Metrics) ObserveProviderCall(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.providerCalls.WithLabelValues(operation, outcome).Inc()
	m.providerLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) IncRetry(operation string) {
	if m == nil {
		return
	}
	m.providerRetries.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveStep(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) MissionStarted() {
	if m == nil {
		return
	}
	m.missionsActive.Inc()
}

func (m *Metrics) MissionFinished(status string) {
	if m == nil {
		return
	}
	m.missionsActive.Dec()
	m.missionsFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) PlannerFallback() {
	if m == nil {
		return
	}
	m.plannerFallbacks.Inc()
}

// Noop returns collectors bound to a private registry, for tests and
// one-shot CLI runs that never expose /metrics.
func Noop() *Metrics {
	return MustNew(prometheus.NewRegistry())
}
