//file: internal/connector/nats/connector.go
// Package nats implements the broker connector for NATS JetStream.
//
// Managed topics map to JetStream streams. Subscriber interest is
// observed through the server's consumer advisories; publisher
// disconnects arrive on the control subject, mirroring the MQTT
// last-will convention.
package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"pubsub-service/internal/connector"
	"pubsub-service/internal/logger"
	"pubsub-service/internal/metrics"
)

const (
	consumerCreatedAdvisory = "$JS.EVENT.ADVISORY.CONSUMER.CREATED.>"
	consumerDeletedAdvisory = "$JS.EVENT.ADVISORY.CONSUMER.DELETED.>"
)

// Config holds the NATS session settings.
type Config struct {
	URL            string
	ClientID       string
	Username       string
	Password       string
	ControlSubject string
	TLS            TLSConfig
	ConnectTimeout time.Duration
}

// TLSConfig holds the optional mutual-TLS material.
type TLSConfig struct {
	Enable   bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// Connector maintains the NATS connection and translates JetStream
// advisories into topic events.
type Connector struct {
	cfg       Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	conn      *nats.Conn
	js        nats.JetStreamContext
	connected atomic.Bool
}

// NewConnector creates a NATS connector. It does not connect; call
// Start.
func NewConnector(cfg Config, log *logger.Logger, m *metrics.Metrics) (*Connector, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "pubsub-service"
	}
	if cfg.ControlSubject == "" {
		cfg.ControlSubject = "publisher.disconnect"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	return &Connector{
		cfg:     cfg,
		logger:  log,
		metrics: m,
	}, nil
}

// Start connects to the server and begins streaming events into sink.
func (c *Connector) Start(ctx context.Context, sink chan<- connector.TopicEvent) error {
	opts := []nats.Option{
		nats.Name(c.cfg.ClientID),
		nats.Timeout(c.cfg.ConnectTimeout),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Error("disconnected from nats server", "error", err)
			c.connected.Store(false)
			if c.metrics != nil {
				c.metrics.SetBrokerConnectionStatus(false)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			c.logger.Info("reconnected to nats server", "url", conn.ConnectedUrl())
			c.connected.Store(true)
			if c.metrics != nil {
				c.metrics.SetBrokerConnectionStatus(true)
				c.metrics.IncBrokerReconnects()
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.logger.Warn("nats connection closed")
			c.connected.Store(false)
			if c.metrics != nil {
				c.metrics.SetBrokerConnectionStatus(false)
			}
		}),
	}

	if c.cfg.Username != "" {
		opts = append(opts, nats.UserInfo(c.cfg.Username, c.cfg.Password))
	}

	if c.cfg.TLS.Enable {
		opts = append(opts, nats.ClientCert(c.cfg.TLS.CertFile, c.cfg.TLS.KeyFile))
		if c.cfg.TLS.CAFile != "" {
			opts = append(opts, nats.RootCAs(c.cfg.TLS.CAFile))
		}
	}

	c.logger.Info("connecting to nats server", "url", c.cfg.URL)

	conn, err := nats.Connect(c.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to nats server: %w", err)
	}
	c.conn = conn

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create jetstream context: %w", err)
	}
	c.js = js

	if err := c.subscribeMonitors(ctx, sink); err != nil {
		conn.Close()
		return err
	}

	c.connected.Store(true)
	if c.metrics != nil {
		c.metrics.SetBrokerConnectionStatus(true)
	}
	c.logger.Info("connected to nats server", "url", conn.ConnectedUrl())

	return nil
}

func (c *Connector) subscribeMonitors(ctx context.Context, sink chan<- connector.TopicEvent) error {
	forward := func(ev connector.TopicEvent) {
		select {
		case sink <- ev:
		case <-ctx.Done():
		}
	}

	if _, err := c.conn.Subscribe(consumerCreatedAdvisory, func(msg *nats.Msg) {
		if stream, ok := streamFromAdvisory(msg.Subject); ok {
			forward(connector.TopicEvent{Kind: connector.EventSubscribe, Context: stream})
		}
	}); err != nil {
		return fmt.Errorf("failed to subscribe to consumer-created advisories: %w", err)
	}

	if _, err := c.conn.Subscribe(consumerDeletedAdvisory, func(msg *nats.Msg) {
		if stream, ok := streamFromAdvisory(msg.Subject); ok {
			forward(connector.TopicEvent{Kind: connector.EventUnsubscribe, Context: stream})
		}
	}); err != nil {
		return fmt.Errorf("failed to subscribe to consumer-deleted advisories: %w", err)
	}

	if _, err := c.conn.Subscribe(c.cfg.ControlSubject, func(msg *nats.Msg) {
		if publisherID := string(msg.Data); publisherID != "" {
			forward(connector.TopicEvent{Kind: connector.EventPublisherDisconnect, Context: publisherID})
		}
	}); err != nil {
		return fmt.Errorf("failed to subscribe to control subject: %w", err)
	}

	return nil
}

// DeleteTopic publishes the sentinel on the topic's subject so active
// consumers observe the tombstone, then deletes the backing stream.
func (c *Connector) DeleteTopic(ctx context.Context, topic, payload string) error {
	if c.conn == nil || !c.conn.IsConnected() {
		return connector.ErrNotConnected
	}

	if _, err := c.js.Publish(topic, []byte(payload), nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish deletion sentinel on %s: %w", topic, err)
	}

	if err := c.js.DeleteStream(topic); err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to delete stream %s: %w", topic, err)
	}

	c.logger.Info("topic deleted on broker", "topic", topic)
	return nil
}

// Connected reports whether the server link is currently up.
func (c *Connector) Connected() bool {
	return c.conn != nil && c.conn.IsConnected() && c.connected.Load()
}

// Close drains and closes the connection.
func (c *Connector) Close(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	c.logger.Info("disconnecting from nats server")
	c.connected.Store(false)
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to drain nats connection: %w", err)
	}
	return nil
}

// streamFromAdvisory extracts the stream name from a consumer advisory
// subject of the form $JS.EVENT.ADVISORY.CONSUMER.<OP>.<stream>.<consumer>.
func streamFromAdvisory(subject string) (string, bool) {
	tokens := strings.Split(subject, ".")
	if len(tokens) != 7 {
		return "", false
	}
	if tokens[5] == "" {
		return "", false
	}
	return tokens[5], true
}
