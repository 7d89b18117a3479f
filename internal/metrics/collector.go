package metrics

import (
	"time"
)

// MetricsCollector periodically samples gauges that are cheaper to pull
// than to push on every mutation: registry size and event queue depth.
type MetricsCollector struct {
	metrics    *Metrics
	interval   time.Duration
	topics     func() int
	queueDepth func() int
	stop       chan struct{}
	done       chan struct{}
}

// NewMetricsCollector creates a collector sampling the given sources.
func NewMetricsCollector(m *Metrics, interval time.Duration, topics, queueDepth func() int) *MetricsCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &MetricsCollector{
		metrics:    m,
		interval:   interval,
		topics:     topics,
		queueDepth: queueDepth,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins periodic collection
func (c *MetricsCollector) Start() {
	go func() {
		defer close(c.done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop halts collection and waits for the sampling loop to exit
func (c *MetricsCollector) Stop() {
	close(c.stop)
	<-c.done
}

func (c *MetricsCollector) collect() {
	if c.topics != nil {
		c.metrics.SetActiveTopics(c.topics())
	}
	if c.queueDepth != nil {
		c.metrics.SetEventQueueDepth(c.queueDepth())
	}
}
