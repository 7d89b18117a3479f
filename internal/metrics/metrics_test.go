package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	assert.NoError(t, err)
	assert.NotNil(t, m)

	// Registering the same set twice must fail
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestMetricsSetConnectionStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	assert.NoError(t, err)

	m.SetBrokerConnectionStatus(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.brokerConnected))

	m.SetBrokerConnectionStatus(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.brokerConnected))
}

func TestMetricsIncrementCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	assert.NoError(t, err)

	m.IncEventsTotal("subscribe")
	m.IncEventsTotal("subscribe")
	m.IncEventsTotal("unsubscribe")
	m.IncCallbacksTotal("START", "success")
	m.IncCallbacksTotal("STOP", "error")
	m.IncTopicDeletions("success")
	m.IncTopicsCreated()
	m.IncBrokerReconnects()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.eventsTotal.WithLabelValues("subscribe")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.eventsTotal.WithLabelValues("unsubscribe")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.callbacksTotal.WithLabelValues("START", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.callbacksTotal.WithLabelValues("STOP", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.deletionsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.topicsCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.brokerReconnects))
}

func TestMetricsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	assert.NoError(t, err)

	m.SetActiveTopics(7)
	m.SetEventQueueDepth(3)

	assert.Equal(t, float64(7), testutil.ToFloat64(m.activeTopics))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.eventQueueDepth))
}

func TestMetricsCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	assert.NoError(t, err)

	topics := func() int { return 5 }
	depth := func() int { return 2 }

	collector := NewMetricsCollector(m, 10*time.Millisecond, topics, depth)
	collector.Start()
	defer collector.Stop()

	// The collector samples once on start
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.activeTopics) == 5 &&
			testutil.ToFloat64(m.eventQueueDepth) == 2
	}, time.Second, 5*time.Millisecond)
}
