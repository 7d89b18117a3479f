package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus instruments for the topic lifecycle service.
type Metrics struct {
	brokerConnected  prometheus.Gauge
	brokerReconnects prometheus.Counter
	eventsTotal      *prometheus.CounterVec
	callbacksTotal   *prometheus.CounterVec
	deletionsTotal   *prometheus.CounterVec
	topicsCreated    prometheus.Counter
	activeTopics     prometheus.Gauge
	eventQueueDepth  prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		brokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_broker_connected",
			Help: "Whether the broker session is currently up (1) or down (0).",
		}),
		brokerReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_broker_reconnects_total",
			Help: "Number of broker session reconnect attempts.",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pubsub_topic_events_total",
			Help: "Topic events consumed by the manager, by kind.",
		}, []string{"kind"}),
		callbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pubsub_management_callbacks_total",
			Help: "Management callbacks dispatched to publishers, by action and status.",
		}, []string{"action", "status"}),
		deletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pubsub_topic_deletions_total",
			Help: "Broker-side topic deletions, by status.",
		}, []string{"status"}),
		topicsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_topics_created_total",
			Help: "Topics allocated by CreateTopic.",
		}),
		activeTopics: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_active_topics",
			Help: "Topics currently held in the registry.",
		}),
		eventQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_event_queue_depth",
			Help: "Topic events waiting in the manager channel.",
		}),
	}

	collectors := []prometheus.Collector{
		m.brokerConnected,
		m.brokerReconnects,
		m.eventsTotal,
		m.callbacksTotal,
		m.deletionsTotal,
		m.topicsCreated,
		m.activeTopics,
		m.eventQueueDepth,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	return m, nil
}

// SetBrokerConnectionStatus records the broker link state
func (m *Metrics) SetBrokerConnectionStatus(connected bool) {
	if connected {
		m.brokerConnected.Set(1)
	} else {
		m.brokerConnected.Set(0)
	}
}

// IncBrokerReconnects counts a reconnect attempt
func (m *Metrics) IncBrokerReconnects() {
	m.brokerReconnects.Inc()
}

// IncEventsTotal counts a consumed topic event by kind
func (m *Metrics) IncEventsTotal(kind string) {
	m.eventsTotal.WithLabelValues(kind).Inc()
}

// IncCallbacksTotal counts a dispatched management callback
func (m *Metrics) IncCallbacksTotal(action, status string) {
	m.callbacksTotal.WithLabelValues(action, status).Inc()
}

// IncTopicDeletions counts a broker-side deletion attempt
func (m *Metrics) IncTopicDeletions(status string) {
	m.deletionsTotal.WithLabelValues(status).Inc()
}

// IncTopicsCreated counts a successful topic allocation
func (m *Metrics) IncTopicsCreated() {
	m.topicsCreated.Inc()
}

// SetActiveTopics records the registry size
func (m *Metrics) SetActiveTopics(n int) {
	m.activeTopics.Set(float64(n))
}

// SetEventQueueDepth records the manager channel backlog
func (m *Metrics) SetEventQueueDepth(n int) {
	m.eventQueueDepth.Set(float64(n))
}
