//file: internal/callback/callback.go
// Package callback delivers topic lifecycle notifications to publishers.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Action is the lifecycle verb sent to a publisher for one of its topics.
type Action string

const (
	ActionStart  Action = "START"
	ActionStop   Action = "STOP"
	ActionDelete Action = "DELETE"
)

// ManagementAction is one outbound lifecycle notification.
type ManagementAction struct {
	Kind      Action
	Topic     string
	TargetURI string
}

// ErrDeleteAction is returned when a Delete action reaches Notify.
// Deletion is publisher-initiated; the publisher is never called back
// for it. The broker-side teardown path handles Delete.
var ErrDeleteAction = errors.New("delete actions are not delivered to publishers")

// Client posts ManageTopic callbacks to publishers. Failures are not
// retried here; the cleanup sweep re-applies state when needed.
type Client struct {
	http *http.Client
}

// NewClient creates a callback client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

// manageTopicRequest is the JSON body of the ManageTopic callback.
type manageTopicRequest struct {
	Topic  string `json:"topic"`
	Action string `json:"action"`
}

// Notify delivers the action to its target URI. Any 2xx response counts
// as success.
func (c *Client) Notify(ctx context.Context, action ManagementAction) error {
	if action.Kind == ActionDelete {
		return ErrDeleteAction
	}
	if action.TargetURI == "" {
		return fmt.Errorf("management action for topic %s has no target uri", action.Topic)
	}

	body, err := json.Marshal(manageTopicRequest{
		Topic:  action.Topic,
		Action: string(action.Kind),
	})
	if err != nil {
		return fmt.Errorf("failed to encode management action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.TargetURI, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("callback to %s failed: %w", action.TargetURI, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback to %s returned status %d", action.TargetURI, resp.StatusCode)
	}

	return nil
}
