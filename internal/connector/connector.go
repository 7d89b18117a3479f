//file: internal/connector/connector.go
// Package connector defines the seam between the messaging broker and the
// topic manager: the topic event stream and the broker-side deletion hook.
package connector

import (
	"context"
	"errors"
)

// EventKind enumerates the broker and scheduler activity the manager
// reacts to.
type EventKind string

const (
	// EventSubscribe indicates a client subscribed to a topic.
	EventSubscribe EventKind = "subscribe"
	// EventUnsubscribe indicates a client unsubscribed from a topic.
	EventUnsubscribe EventKind = "unsubscribe"
	// EventTimeout is enqueued by the cleanup sweep for idle topics.
	EventTimeout EventKind = "timeout"
	// EventDelete is enqueued for topics marked for deletion.
	EventDelete EventKind = "delete"
	// EventPublisherDisconnect indicates a publisher's last will fired.
	EventPublisherDisconnect EventKind = "publisher_disconnect"
)

// TopicEvent is one unit of broker or scheduler activity. Context holds
// the topic id, except for EventPublisherDisconnect where it carries the
// disconnected publisher's client id.
type TopicEvent struct {
	Kind    EventKind
	Context string
}

// ErrNotConnected is returned when an operation requires a live broker
// session and none is available.
var ErrNotConnected = errors.New("broker not connected")

// Connector is the narrow interface over a concrete broker client. The
// default implementation targets MQTT v5; a NATS implementation exists
// for JetStream deployments.
type Connector interface {
	// Start establishes the broker session and streams events into sink
	// until ctx is cancelled. It returns once the initial session is up
	// or the bounded connection wait expires.
	Start(ctx context.Context, sink chan<- TopicEvent) error

	// DeleteTopic publishes the sentinel payload on the topic at QoS >= 1
	// and tears down broker-side topic state where the broker supports it.
	DeleteTopic(ctx context.Context, topic, payload string) error

	// Connected reports whether the broker session is currently up.
	Connected() bool

	// Close disconnects from the broker.
	Close(ctx context.Context) error
}
