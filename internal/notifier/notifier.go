//file: internal/notifier/notifier.go
// Package notifier fans management actions out to publishers and the
// broker so the manager's event loop never waits on I/O.
package notifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pubsub-service/internal/callback"
	"pubsub-service/internal/logger"
	"pubsub-service/internal/metrics"
	"pubsub-service/internal/stats"
)

// PublisherNotifier delivers Start/Stop callbacks to publishers.
type PublisherNotifier interface {
	Notify(ctx context.Context, action callback.ManagementAction) error
}

// BrokerDeleter executes broker-side topic teardown.
type BrokerDeleter interface {
	DeleteTopic(ctx context.Context, topic, payload string) error
}

// PoolConfig holds dispatcher pool configuration
type PoolConfig struct {
	Workers         int
	QueueSize       int
	DeletionMessage string
	CallTimeout     time.Duration
}

// Pool drains a bounded queue of management actions with a fixed set of
// workers. Dispatch never blocks the caller.
type Pool struct {
	queue    chan callback.ManagementAction
	client   PublisherNotifier
	deleter  BrokerDeleter
	sentinel string
	timeout  time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
	stats    *stats.StatsCollector
	overflow uint64
	sendWG   sync.WaitGroup
	wg       sync.WaitGroup
}

// NewPool creates the dispatcher pool and starts its workers.
func NewPool(cfg PoolConfig, client PublisherNotifier, deleter BrokerDeleter, log *logger.Logger, m *metrics.Metrics, st *stats.StatsCollector) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.DeletionMessage == "" {
		cfg.DeletionMessage = "TOPIC DELETED"
	}

	p := &Pool{
		queue:    make(chan callback.ManagementAction, cfg.QueueSize),
		client:   client,
		deleter:  deleter,
		sentinel: cfg.DeletionMessage,
		timeout:  cfg.CallTimeout,
		logger:   log,
		metrics:  m,
		stats:    st,
	}

	// Start worker pool
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for action := range p.queue {
		p.execute(action)
	}
}

// Dispatch enqueues the action. When the queue is full the send completes
// from a short-lived goroutine so the caller never blocks.
func (p *Pool) Dispatch(action callback.ManagementAction) {
	select {
	case p.queue <- action:
	default:
		atomic.AddUint64(&p.overflow, 1)
		p.sendWG.Add(1)
		go func() {
			defer p.sendWG.Done()
			p.queue <- action
		}()
	}
}

func (p *Pool) execute(action callback.ManagementAction) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	switch action.Kind {
	case callback.ActionDelete:
		// The publisher is gone or requested the deletion itself. Publish
		// the sentinel and tear down broker state instead of calling back.
		if err := p.deleter.DeleteTopic(ctx, action.Topic, p.sentinel); err != nil {
			p.logger.Error("broker-side topic deletion failed",
				"topic", action.Topic,
				"error", err)
			if p.metrics != nil {
				p.metrics.IncTopicDeletions("error")
			}
			if p.stats != nil {
				p.stats.IncErrors()
			}
			return
		}
		p.logger.Debug("published deletion sentinel", "topic", action.Topic)
		if p.metrics != nil {
			p.metrics.IncTopicDeletions("success")
		}
		if p.stats != nil {
			p.stats.IncDeletesPublished()
		}
	default:
		if err := p.client.Notify(ctx, action); err != nil {
			p.logger.Error("management callback failed",
				"topic", action.Topic,
				"action", string(action.Kind),
				"target", action.TargetURI,
				"error", err)
			if p.metrics != nil {
				p.metrics.IncCallbacksTotal(string(action.Kind), "error")
			}
			if p.stats != nil {
				p.stats.IncCallbacksFailed()
			}
			return
		}
		p.logger.Debug("management callback delivered",
			"topic", action.Topic,
			"action", string(action.Kind))
		if p.metrics != nil {
			p.metrics.IncCallbacksTotal(string(action.Kind), "success")
		}
		if p.stats != nil {
			p.stats.IncCallbacksSent()
		}
	}
}

// Overflows reports how many dispatches found the queue full.
func (p *Pool) Overflows() uint64 {
	return atomic.LoadUint64(&p.overflow)
}

// QueueDepth reports the number of actions waiting in the queue.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// Close drains outstanding sends and stops the workers.
func (p *Pool) Close() {
	p.sendWG.Wait()
	close(p.queue)
	p.wg.Wait()
}
