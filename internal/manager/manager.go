//file: internal/manager/manager.go
// Package manager drives the topic lifecycle state machine. A single
// event loop consumes TopicEvents from the broker connector and the
// cleanup sweeper, applies the transition rules against the registry,
// and hands resulting management actions to the dispatcher.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pubsub-service/internal/callback"
	"pubsub-service/internal/connector"
	"pubsub-service/internal/logger"
	"pubsub-service/internal/metrics"
	"pubsub-service/internal/stats"
	"pubsub-service/internal/topics"
)

// Dispatcher receives management actions from the event loop. Dispatch
// must not block; delivery happens off-loop.
type Dispatcher interface {
	Dispatch(action callback.ManagementAction)
}

// Config holds the manager tunables.
type Config struct {
	CleanupInterval time.Duration
	StaleThreshold  time.Duration
	QueueSize       int
}

// Manager is the writer of record for topic state. All transitions go
// through its event loop; RPC handlers only allocate ids and mark
// topics for deletion.
type Manager struct {
	registry   *topics.Registry
	dispatcher Dispatcher
	events     chan connector.TopicEvent
	cleanup    time.Duration
	stale      time.Duration
	logger     *logger.Logger
	metrics    *metrics.Metrics
	stats      *stats.StatsCollector
	wg         sync.WaitGroup
}

// NewManager creates a topic manager over the given registry.
func NewManager(cfg Config, registry *topics.Registry, dispatcher Dispatcher, log *logger.Logger, m *metrics.Metrics, st *stats.StatsCollector) *Manager {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Second
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 30 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}

	return &Manager{
		registry:   registry,
		dispatcher: dispatcher,
		events:     make(chan connector.TopicEvent, cfg.QueueSize),
		cleanup:    cfg.CleanupInterval,
		stale:      cfg.StaleThreshold,
		logger:     log,
		metrics:    m,
		stats:      st,
	}
}

// Events returns the sink the broker connector streams into.
func (m *Manager) Events() chan<- connector.TopicEvent {
	return m.events
}

// QueueDepth reports the number of events waiting in the channel.
func (m *Manager) QueueDepth() int {
	return len(m.events)
}

// Start launches the event loop and the cleanup sweeper. Both exit
// when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(2)
	go m.run(ctx)
	go m.sweep(ctx)
}

// Wait blocks until the event loop and sweeper have exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// CreateTopic allocates a fresh topic for the publisher and registers
// it. A uuid collision fails insertion and is retried with a new id.
func (m *Manager) CreateTopic(publisherID, callbackURI string) (string, error) {
	for {
		id := uuid.NewString()

		err := m.registry.Insert(id, topics.Topic{
			Owner:        publisherID,
			Callback:     callbackURI,
			LastActionAt: time.Now(),
		})
		if err == nil {
			m.logger.Info("allocated topic",
				"topic", id,
				"publisher", publisherID)
			if m.metrics != nil {
				m.metrics.IncTopicsCreated()
			}
			if m.stats != nil {
				m.stats.IncTopicsCreated()
			}
			return id, nil
		}

		m.logger.Warn("topic id collision, retrying", "topic", id)
	}
}

// DeleteTopic marks the topic for removal. The cleanup sweep picks it
// up. Missing or already-marked topics are a success no-op.
func (m *Manager) DeleteTopic(id string) {
	found := m.registry.Mutate(id, func(t *topics.Topic) {
		t.Deleted = true
	})
	m.logger.Info("topic marked for deletion", "topic", id, "known", found)
}

// run is the single consumer of the event channel.
func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("topic manager event loop stopped")
			return
		case ev := <-m.events:
			if m.stats != nil {
				m.stats.IncEventsReceived()
			}
			if m.metrics != nil {
				m.metrics.IncEventsTotal(string(ev.Kind))
			}
			m.handleEvent(ev)
			if m.stats != nil {
				m.stats.IncEventsProcessed()
			}
		}
	}
}

// handleEvent applies one event. PublisherDisconnect fans out into a
// delete per owned topic; everything else is a single transition.
func (m *Manager) handleEvent(ev connector.TopicEvent) {
	if ev.Kind == connector.EventPublisherDisconnect {
		m.logger.Info("publisher disconnected", "publisher", ev.Context)

		for id, t := range m.registry.Snapshot() {
			if t.Owner == ev.Context {
				m.applyTransition(connector.TopicEvent{
					Kind:    connector.EventDelete,
					Context: id,
				})
			}
		}
		return
	}

	m.applyTransition(ev)
}

// applyTransition runs the state-transition table for a single topic
// and dispatches the resulting action, if any. The registry mutation is
// atomic; the dispatch happens after the lock is released.
func (m *Manager) applyTransition(ev connector.TopicEvent) {
	id := ev.Context

	var action *callback.ManagementAction

	switch ev.Kind {
	case connector.EventSubscribe:
		action = m.applySubscribe(id)
	case connector.EventUnsubscribe:
		action = m.applyUnsubscribe(id)
	case connector.EventTimeout:
		action = m.applyTimeout(id)
	case connector.EventDelete:
		action = m.applyDelete(id)
	default:
		m.logger.Warn("ignoring unknown topic event", "kind", string(ev.Kind), "topic", id)
		return
	}

	if action != nil {
		m.dispatcher.Dispatch(*action)
	}
}

func (m *Manager) applySubscribe(id string) *callback.ManagementAction {
	var action *callback.ManagementAction

	found := m.registry.Mutate(id, func(t *topics.Topic) {
		prev := t.Subscribers
		t.Subscribers++
		t.LastActionAt = time.Now()

		// Start fires only on the 0 -> 1 transition, and only once a
		// publisher has bound a callback.
		if prev == 0 && t.Callback != "" {
			action = &callback.ManagementAction{
				Kind:      callback.ActionStart,
				Topic:     id,
				TargetURI: t.Callback,
			}
		}
	})

	if !found {
		// A subscriber raced ahead of its publisher; hold the count in a
		// placeholder until a publisher claims the topic.
		err := m.registry.Insert(id, topics.Topic{
			Subscribers:  1,
			LastActionAt: time.Now(),
		})
		if err != nil {
			// Lost the race to a concurrent insert; re-apply as a plain
			// subscribe on the now-existing entry.
			return m.applySubscribe(id)
		}
		m.logger.Info("subscribe on unknown topic, placeholder created", "topic", id)
		return nil
	}

	m.logger.Debug("subscribe", "topic", id)
	return action
}

func (m *Manager) applyUnsubscribe(id string) *callback.ManagementAction {
	var action *callback.ManagementAction

	found := m.registry.Mutate(id, func(t *topics.Topic) {
		prev := t.Subscribers
		if t.Subscribers > 0 {
			t.Subscribers--
		} else {
			m.logger.Warn("unsubscribe underflow clamped", "topic", id)
		}
		t.LastActionAt = time.Now()

		// Stop fires only on a true 1 -> 0 transition; a duplicate
		// unsubscribe on an already-empty topic stays silent.
		if prev == 1 && t.Callback != "" {
			action = &callback.ManagementAction{
				Kind:      callback.ActionStop,
				Topic:     id,
				TargetURI: t.Callback,
			}
		}
	})

	if !found {
		m.logger.Debug("unsubscribe on unknown topic ignored", "topic", id)
		return nil
	}

	m.logger.Debug("unsubscribe", "topic", id)
	return action
}

func (m *Manager) applyTimeout(id string) *callback.ManagementAction {
	var action *callback.ManagementAction

	m.registry.Mutate(id, func(t *topics.Topic) {
		t.LastActionAt = time.Now()

		// Reminder to the publisher that its topic has been idle; the
		// refresh above sets the reminder cadence to the stale threshold.
		if t.Subscribers == 0 && t.Callback != "" {
			action = &callback.ManagementAction{
				Kind:      callback.ActionStop,
				Topic:     id,
				TargetURI: t.Callback,
			}
		}
	})

	return action
}

func (m *Manager) applyDelete(id string) *callback.ManagementAction {
	t, ok := m.registry.Remove(id)
	if !ok {
		return nil
	}

	m.logger.Info("topic removed", "topic", id, "owner", t.Owner)
	if m.stats != nil {
		m.stats.IncTopicsDeleted()
	}

	// Placeholders never had a publisher; nothing to tear down on the
	// broker for them either, since no data ever flowed.
	if t.Callback == "" {
		return nil
	}

	// The dispatcher routes Delete to the broker-side teardown; the
	// publisher itself is never called back for a deletion.
	return &callback.ManagementAction{
		Kind:      callback.ActionDelete,
		Topic:     id,
		TargetURI: t.Callback,
	}
}

// sweep periodically walks the registry, surfacing deferred deletions
// and idle-topic timeouts as events for the loop.
func (m *Manager) sweep(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("cleanup sweeper stopped")
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

func (m *Manager) sweepOnce(ctx context.Context) {
	now := time.Now()

	for id, t := range m.registry.Snapshot() {
		switch {
		case t.Deleted:
			m.enqueue(ctx, connector.TopicEvent{Kind: connector.EventDelete, Context: id})
		case t.Subscribers == 0 && now.Sub(t.LastActionAt) > m.stale:
			m.enqueue(ctx, connector.TopicEvent{Kind: connector.EventTimeout, Context: id})
		}
	}
}

func (m *Manager) enqueue(ctx context.Context, ev connector.TopicEvent) {
	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}
