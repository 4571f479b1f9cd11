package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNew(reg)

	m.ObserveProviderCall("search", time.Now(), nil)
	m.ObserveProviderCall("search", time.Now(), errors.New("boom"))
	m.IncRetry("search")
	m.PlannerFallback()
	m.MissionStarted()
	m.MissionFinished("completed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("search", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("search", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRetries.WithLabelValues("search")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.plannerFallbacks))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.missionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.missionsFinished.WithLabelValues("completed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveProviderCall("search", time.Now(), nil)
		m.IncRetry("search")
		m.ObserveStep("completed", time.Second)
		m.MissionStarted()
		m.MissionFinished("error")
		m.PlannerFallback()
	})
}
