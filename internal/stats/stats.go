package stats

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// StatsCollector tracks service-wide counters for the status endpoint.
type StatsCollector struct {
	StartTime        time.Time
	EventsReceived   uint64
	EventsProcessed  uint64
	CallbacksSent    uint64
	CallbacksFailed  uint64
	TopicsCreated    uint64
	TopicsDeleted    uint64
	DeletesPublished uint64
	Errors           uint64
}

// NewStatsCollector creates a new stats collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		StartTime: time.Now(),
	}
}

// IncEventsReceived counts a topic event pulled off the manager channel
func (s *StatsCollector) IncEventsReceived() {
	atomic.AddUint64(&s.EventsReceived, 1)
}

// IncEventsProcessed counts a fully applied state transition
func (s *StatsCollector) IncEventsProcessed() {
	atomic.AddUint64(&s.EventsProcessed, 1)
}

// IncCallbacksSent counts a management callback delivered to a publisher
func (s *StatsCollector) IncCallbacksSent() {
	atomic.AddUint64(&s.CallbacksSent, 1)
}

// IncCallbacksFailed counts a management callback that could not be delivered
func (s *StatsCollector) IncCallbacksFailed() {
	atomic.AddUint64(&s.CallbacksFailed, 1)
}

// IncTopicsCreated counts a successful CreateTopic allocation
func (s *StatsCollector) IncTopicsCreated() {
	atomic.AddUint64(&s.TopicsCreated, 1)
}

// IncTopicsDeleted counts a topic evicted from the registry
func (s *StatsCollector) IncTopicsDeleted() {
	atomic.AddUint64(&s.TopicsDeleted, 1)
}

// IncDeletesPublished counts a deletion sentinel published to the broker
func (s *StatsCollector) IncDeletesPublished() {
	atomic.AddUint64(&s.DeletesPublished, 1)
}

// IncErrors counts a handled failure
func (s *StatsCollector) IncErrors() {
	atomic.AddUint64(&s.Errors, 1)
}

// GetStats returns current statistics
func (s *StatsCollector) GetStats() map[string]interface{} {
	uptime := time.Since(s.StartTime)
	return map[string]interface{}{
		"uptime":            uptime.String(),
		"events_received":   atomic.LoadUint64(&s.EventsReceived),
		"events_processed":  atomic.LoadUint64(&s.EventsProcessed),
		"callbacks_sent":    atomic.LoadUint64(&s.CallbacksSent),
		"callbacks_failed":  atomic.LoadUint64(&s.CallbacksFailed),
		"topics_created":    atomic.LoadUint64(&s.TopicsCreated),
		"topics_deleted":    atomic.LoadUint64(&s.TopicsDeleted),
		"deletes_published": atomic.LoadUint64(&s.DeletesPublished),
		"errors":            atomic.LoadUint64(&s.Errors),
	}
}

// GetStatsJSON returns stats as JSON
func (s *StatsCollector) GetStatsJSON() ([]byte, error) {
	return json.Marshal(s.GetStats())
}

// EventRate calculates the event processing rate per second
func (s *StatsCollector) EventRate() float64 {
	uptime := time.Since(s.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.EventsProcessed)) / uptime
}
