//file: internal/notifier/notifier_test.go
package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pubsub-service/config"
	"pubsub-service/internal/callback"
	"pubsub-service/internal/logger"
	"pubsub-service/internal/stats"
)

type mockNotifier struct {
	mu      sync.Mutex
	actions []callback.ManagementAction
	err     error
}

func (m *mockNotifier) Notify(_ context.Context, action callback.ManagementAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
	return m.err
}

func (m *mockNotifier) all() []callback.ManagementAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]callback.ManagementAction, len(m.actions))
	copy(out, m.actions)
	return out
}

type mockDeleter struct {
	mu      sync.Mutex
	deletes map[string]string
	err     error
}

func (m *mockDeleter) DeleteTopic(_ context.Context, topic, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deletes == nil {
		m.deletes = make(map[string]string)
	}
	m.deletes[topic] = payload
	return m.err
}

func (m *mockDeleter) get(topic string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.deletes[topic]
	return payload, ok
}

func setupTestPool(t *testing.T, cfg PoolConfig, client *mockNotifier, deleter *mockDeleter) *Pool {
	t.Helper()

	log, err := logger.NewLogger(&config.LogConfig{
		Level:      "debug",
		OutputPath: "stdout",
		Encoding:   "console",
	})
	require.NoError(t, err)

	return NewPool(cfg, client, deleter, log, nil, stats.NewStatsCollector())
}

func TestDispatchDeliversCallbacks(t *testing.T) {
	client := &mockNotifier{}
	deleter := &mockDeleter{}
	pool := setupTestPool(t, PoolConfig{Workers: 2, QueueSize: 8}, client, deleter)

	pool.Dispatch(callback.ManagementAction{
		Kind:      callback.ActionStart,
		Topic:     "t1",
		TargetURI: "http://p1:9000",
	})
	pool.Dispatch(callback.ManagementAction{
		Kind:      callback.ActionStop,
		Topic:     "t1",
		TargetURI: "http://p1:9000",
	})

	assert.Eventually(t, func() bool {
		return len(client.all()) == 2
	}, time.Second, 10*time.Millisecond)

	pool.Close()

	kinds := map[callback.Action]bool{}
	for _, a := range client.all() {
		kinds[a.Kind] = true
	}
	assert.True(t, kinds[callback.ActionStart])
	assert.True(t, kinds[callback.ActionStop])
}

func TestDispatchRoutesDeleteToBroker(t *testing.T) {
	client := &mockNotifier{}
	deleter := &mockDeleter{}
	pool := setupTestPool(t, PoolConfig{
		Workers:         1,
		QueueSize:       8,
		DeletionMessage: "TOPIC DELETED",
	}, client, deleter)

	pool.Dispatch(callback.ManagementAction{
		Kind:      callback.ActionDelete,
		Topic:     "t1",
		TargetURI: "http://p1:9000",
	})

	assert.Eventually(t, func() bool {
		_, ok := deleter.get("t1")
		return ok
	}, time.Second, 10*time.Millisecond)

	pool.Close()

	// The sentinel goes to the broker; the publisher is never called.
	payload, _ := deleter.get("t1")
	assert.Equal(t, "TOPIC DELETED", payload)
	assert.Empty(t, client.all())
}

func TestDispatchNeverBlocksOnFullQueue(t *testing.T) {
	client := &mockNotifier{}
	deleter := &mockDeleter{}
	pool := setupTestPool(t, PoolConfig{Workers: 1, QueueSize: 1}, client, deleter)

	// Flood well past the queue size; Dispatch must return promptly.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			pool.Dispatch(callback.ManagementAction{
				Kind:      callback.ActionStart,
				Topic:     "t1",
				TargetURI: "http://p1:9000",
			})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}

	assert.Eventually(t, func() bool {
		return len(client.all()) == 50
	}, 2*time.Second, 10*time.Millisecond)

	pool.Close()
}

func TestFailedCallbackIsNotRetried(t *testing.T) {
	client := &mockNotifier{err: errors.New("connection refused")}
	deleter := &mockDeleter{}
	st := stats.NewStatsCollector()

	log, err := logger.NewLogger(&config.LogConfig{
		Level:      "debug",
		OutputPath: "stdout",
		Encoding:   "console",
	})
	require.NoError(t, err)

	pool := NewPool(PoolConfig{Workers: 1, QueueSize: 8}, client, deleter, log, nil, st)

	pool.Dispatch(callback.ManagementAction{
		Kind:      callback.ActionStart,
		Topic:     "t1",
		TargetURI: "http://p1:9000",
	})

	assert.Eventually(t, func() bool {
		return len(client.all()) == 1
	}, time.Second, 10*time.Millisecond)

	pool.Close()

	// Exactly one attempt; the cleanup sweep owns re-application.
	assert.Len(t, client.all(), 1)
}
