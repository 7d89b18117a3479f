//file: internal/connector/mqtt/connector.go
// Package mqtt implements the broker connector for MQTT v5 brokers.
//
// Subscribe and unsubscribe activity is observed through the broker's
// $SYS log topics (mosquitto's log_dest topic convention); unclean
// publisher disconnects arrive as last-will payloads on the control
// topic, carrying the publisher's client id.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"pubsub-service/internal/connector"
	"pubsub-service/internal/logger"
	"pubsub-service/internal/metrics"
	"pubsub-service/internal/topics"
)

const (
	subscribeLogTopic   = "$SYS/broker/log/M/subscribe"
	unsubscribeLogTopic = "$SYS/broker/log/M/unsubscribe"
)

// Config holds the MQTT broker session settings.
type Config struct {
	BrokerURL    string
	ClientID     string
	Username     string
	Password     string
	ControlTopic string
	TLS          TLSConfig

	// ConnectTimeout bounds the wait for the initial session. Autopaho
	// keeps retrying with backoff afterwards.
	ConnectTimeout time.Duration
}

// TLSConfig holds the optional mutual-TLS material.
type TLSConfig struct {
	Enable   bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// Connector maintains the MQTT v5 session and translates broker
// activity into topic events.
type Connector struct {
	cfg       Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	ignore    *topics.Filter
	cm        *autopaho.ConnectionManager
	connected atomic.Bool
}

// NewConnector creates an MQTT connector. It does not connect; call
// Start.
func NewConnector(cfg Config, log *logger.Logger, m *metrics.Metrics) (*Connector, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("mqtt broker url is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "pubsub-service"
	}
	if cfg.ControlTopic == "" {
		cfg.ControlTopic = "publisher/disconnect"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	// Broker-internal topics and the control topic never become managed
	// topics themselves.
	ignore, err := topics.NewFilter("$SYS/#", cfg.ControlTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to build ignore filter: %w", err)
	}

	return &Connector{
		cfg:     cfg,
		logger:  log,
		metrics: m,
		ignore:  ignore,
	}, nil
}

// Start establishes the broker session and streams events into sink.
// It returns once the initial connection is up, or an error if the
// broker stays unreachable past the connect timeout.
func (c *Connector) Start(ctx context.Context, sink chan<- connector.TopicEvent) error {
	brokerURL, err := url.Parse(c.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("invalid mqtt broker url: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls: []*url.URL{brokerURL},
		KeepAlive:  30,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			c.logger.Info("mqtt session up", "broker", c.cfg.BrokerURL)
			c.connected.Store(true)
			if c.metrics != nil {
				c.metrics.SetBrokerConnectionStatus(true)
			}

			// Autopaho does not resubscribe after reconnect, so the
			// monitor subscriptions are re-established here every time.
			subCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			c.subscribeMonitors(subCtx, cm)
		},
		OnConnectError: func(err error) {
			c.logger.Warn("mqtt connection error", "error", err)
			c.connected.Store(false)
			if c.metrics != nil {
				c.metrics.SetBrokerConnectionStatus(false)
				c.metrics.IncBrokerReconnects()
			}
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
			OnServerDisconnect: func(d *paho.Disconnect) {
				c.logger.Warn("mqtt server disconnect", "reason", d.ReasonCode)
				c.connected.Store(false)
				if c.metrics != nil {
					c.metrics.SetBrokerConnectionStatus(false)
				}
			},
			OnClientError: func(err error) {
				c.logger.Error("mqtt client error", "error", err)
				c.connected.Store(false)
				if c.metrics != nil {
					c.metrics.SetBrokerConnectionStatus(false)
				}
			},
		},
	}

	if c.cfg.Username != "" {
		pahoCfg.ConnectUsername = c.cfg.Username
		pahoCfg.ConnectPassword = []byte(c.cfg.Password)
	}

	if c.cfg.TLS.Enable {
		tlsCfg, err := newTLSConfig(c.cfg.TLS)
		if err != nil {
			return fmt.Errorf("failed to create TLS config: %w", err)
		}
		pahoCfg.TlsCfg = tlsCfg
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("failed to create mqtt connection: %w", err)
	}
	c.cm = cm

	cm.AddOnPublishReceived(func(pr autopaho.PublishReceived) (bool, error) {
		c.route(ctx, pr.Packet.Topic, pr.Packet.Payload, sink)
		return true, nil
	})

	connCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		return fmt.Errorf("mqtt broker unreachable: %w", err)
	}

	return nil
}

// subscribeMonitors subscribes to the broker log topics and the
// publisher control topic.
func (c *Connector) subscribeMonitors(ctx context.Context, cm *autopaho.ConnectionManager) {
	subs := []paho.SubscribeOptions{
		{Topic: subscribeLogTopic, QoS: 1},
		{Topic: unsubscribeLogTopic, QoS: 1},
		{Topic: c.cfg.ControlTopic, QoS: 1},
	}

	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
		c.logger.Error("failed to subscribe to monitor topics",
			"control_topic", c.cfg.ControlTopic,
			"error", err)
		return
	}
	c.logger.Info("monitoring broker activity", "control_topic", c.cfg.ControlTopic)
}

// route turns an inbound monitor message into a topic event.
func (c *Connector) route(ctx context.Context, topic string, payload []byte, sink chan<- connector.TopicEvent) {
	var ev connector.TopicEvent

	switch topic {
	case subscribeLogTopic:
		subject, ok := parseSubscribeLog(string(payload))
		if !ok || c.ignore.Matches(subject) {
			return
		}
		ev = connector.TopicEvent{Kind: connector.EventSubscribe, Context: subject}
	case unsubscribeLogTopic:
		subject, ok := parseUnsubscribeLog(string(payload))
		if !ok || c.ignore.Matches(subject) {
			return
		}
		ev = connector.TopicEvent{Kind: connector.EventUnsubscribe, Context: subject}
	case c.cfg.ControlTopic:
		publisherID := string(payload)
		if publisherID == "" {
			return
		}
		ev = connector.TopicEvent{Kind: connector.EventPublisherDisconnect, Context: publisherID}
	default:
		return
	}

	select {
	case sink <- ev:
	case <-ctx.Done():
	}
}

// DeleteTopic publishes the deletion sentinel on the topic at QoS 1 so
// remaining subscribers observe the tombstone, then clears any retained
// message. MQTT brokers hold no further per-topic state to remove.
func (c *Connector) DeleteTopic(ctx context.Context, topic, payload string) error {
	if c.cm == nil {
		return connector.ErrNotConnected
	}

	if _, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: []byte(payload),
		QoS:     1,
	}); err != nil {
		return fmt.Errorf("failed to publish deletion sentinel on %s: %w", topic, err)
	}

	// A zero-length retained publish drops the retained message, if any.
	if _, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:  topic,
		QoS:    1,
		Retain: true,
	}); err != nil {
		return fmt.Errorf("failed to clear retained state on %s: %w", topic, err)
	}

	c.logger.Info("topic deleted on broker", "topic", topic)
	return nil
}

// Connected reports whether the broker session is currently up.
func (c *Connector) Connected() bool {
	return c.connected.Load()
}

// Close disconnects from the broker.
func (c *Connector) Close(ctx context.Context) error {
	if c.cm == nil {
		return nil
	}
	c.logger.Info("disconnecting from mqtt broker")
	c.connected.Store(false)
	return c.cm.Disconnect(ctx)
}

func newTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caCertPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
