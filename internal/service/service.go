//file: internal/service/service.go
// Package service wires the components of the pub sub service together
// and owns their lifecycle.
package service

import (
	"context"
	"fmt"
	"time"

	"pubsub-service/config"
	"pubsub-service/internal/api"
	"pubsub-service/internal/callback"
	"pubsub-service/internal/connector"
	"pubsub-service/internal/connector/mqtt"
	"pubsub-service/internal/connector/nats"
	"pubsub-service/internal/logger"
	"pubsub-service/internal/manager"
	"pubsub-service/internal/metrics"
	"pubsub-service/internal/notifier"
	"pubsub-service/internal/stats"
	"pubsub-service/internal/topics"
)

// Service owns the registry, the broker connector, the topic manager,
// the dispatcher pool and the API server.
type Service struct {
	cfg      *config.Config
	logger   *logger.Logger
	stats    *stats.StatsCollector
	registry *topics.Registry
	broker   connector.Connector
	pool     *notifier.Pool
	manager  *manager.Manager
	api      *api.Server
	apiErr   chan error
}

// New constructs the service from configuration. Nothing is started;
// call Start.
func New(cfg *config.Config, log *logger.Logger, m *metrics.Metrics, st *stats.StatsCollector) (*Service, error) {
	registry := topics.NewRegistry()

	broker, err := newBrokerConnector(cfg, log, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create broker connector: %w", err)
	}

	pool := notifier.NewPool(notifier.PoolConfig{
		Workers:         cfg.Dispatch.Workers,
		QueueSize:       cfg.Dispatch.QueueSize,
		DeletionMessage: cfg.Topics.DeletionMessage,
		CallTimeout:     10 * time.Second,
	}, callback.NewClient(10*time.Second), broker, log, m, st)

	mgr := manager.NewManager(manager.Config{
		CleanupInterval: cfg.CleanupInterval(),
		StaleThreshold:  cfg.StaleThreshold(),
		QueueSize:       cfg.Topics.EventQueueSize,
	}, registry, pool, log, m, st)

	apiServer := api.NewServer(api.Config{
		Authority:      cfg.Service.PubSubAuthority,
		BrokerURI:      cfg.Broker.MessagingURI,
		BrokerProtocol: cfg.Broker.Kind,
	}, mgr, broker.Connected, st, log)

	return &Service{
		cfg:      cfg,
		logger:   log,
		stats:    st,
		registry: registry,
		broker:   broker,
		pool:     pool,
		manager:  mgr,
		api:      apiServer,
		apiErr:   make(chan error, 1),
	}, nil
}

func newBrokerConnector(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (connector.Connector, error) {
	switch cfg.Broker.Kind {
	case "mqtt":
		return mqtt.NewConnector(mqtt.Config{
			BrokerURL:    cfg.Broker.MessagingURI,
			ClientID:     cfg.Broker.ClientID,
			Username:     cfg.Broker.Username,
			Password:     cfg.Broker.Password,
			ControlTopic: cfg.Broker.ControlTopic,
			TLS: mqtt.TLSConfig{
				Enable:   cfg.Broker.TLS.Enable,
				CertFile: cfg.Broker.TLS.CertFile,
				KeyFile:  cfg.Broker.TLS.KeyFile,
				CAFile:   cfg.Broker.TLS.CAFile,
			},
		}, log, m)
	case "nats":
		return nats.NewConnector(nats.Config{
			URL:            cfg.Broker.MessagingURI,
			ClientID:       cfg.Broker.ClientID,
			Username:       cfg.Broker.Username,
			Password:       cfg.Broker.Password,
			ControlSubject: cfg.Broker.ControlTopic,
			TLS: nats.TLSConfig{
				Enable:   cfg.Broker.TLS.Enable,
				CertFile: cfg.Broker.TLS.CertFile,
				KeyFile:  cfg.Broker.TLS.KeyFile,
				CAFile:   cfg.Broker.TLS.CAFile,
			},
		}, log, m)
	default:
		return nil, fmt.Errorf("unknown broker kind: %s", cfg.Broker.Kind)
	}
}

// Start brings the service up: broker session first, then the manager
// loops, then the API listener. A broker that stays unreachable fails
// startup.
func (s *Service) Start(ctx context.Context) error {
	if err := s.broker.Start(ctx, s.manager.Events()); err != nil {
		return fmt.Errorf("failed to start broker connector: %w", err)
	}

	s.manager.Start(ctx)

	go func() {
		if err := s.api.Start(); err != nil {
			s.apiErr <- err
		}
	}()

	s.logger.Info("pub sub service started",
		"authority", s.cfg.Service.PubSubAuthority,
		"broker", s.cfg.Broker.MessagingURI,
		"broker_kind", s.cfg.Broker.Kind)

	return nil
}

// Err surfaces a fatal API listener failure.
func (s *Service) Err() <-chan error {
	return s.apiErr
}

// Connected reports the broker-link state.
func (s *Service) Connected() bool {
	return s.broker.Connected()
}

// TopicCount reports the registry size, for the metrics collector.
func (s *Service) TopicCount() int {
	return s.registry.Len()
}

// QueueDepth reports the manager channel backlog, for the metrics
// collector.
func (s *Service) QueueDepth() int {
	return s.manager.QueueDepth()
}

// Close tears the service down. The caller cancels the run context
// first; Close then stops the API listener, waits for the manager
// loops, drains the dispatcher and drops the broker session.
func (s *Service) Close(ctx context.Context) {
	if err := s.api.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shut down api server", "error", err)
	}

	s.manager.Wait()
	s.pool.Close()

	if err := s.broker.Close(ctx); err != nil {
		s.logger.Error("failed to close broker connector", "error", err)
	}

	s.logger.Info("pub sub service stopped")
}
