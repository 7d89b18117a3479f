//file: internal/service/service_test.go
package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pubsub-service/config"
	"pubsub-service/internal/logger"
	"pubsub-service/internal/stats"
)

func testConfig(kind string) *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{PubSubAuthority: "127.0.0.1:0"},
		Broker: config.BrokerConfig{
			Kind:         kind,
			MessagingURI: "mqtt://localhost:1883",
			ClientID:     "pubsub-service-test",
			ControlTopic: "publisher/disconnect",
		},
		Topics: config.TopicsConfig{
			DeletionMessage:     "TOPIC DELETED",
			CleanupIntervalSecs: 5,
			StaleThresholdSecs:  30,
			EventQueueSize:      16,
		},
		Dispatch: config.DispatchConfig{Workers: 1, QueueSize: 16},
		Logging: config.LogConfig{
			Level:      "debug",
			OutputPath: "stdout",
			Encoding:   "console",
		},
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	cfg := testConfig("mqtt")
	log, err := logger.NewLogger(&cfg.Logging)
	require.NoError(t, err)
	return log
}

func TestNewWiresComponents(t *testing.T) {
	svc, err := New(testConfig("mqtt"), testLogger(t), nil, stats.NewStatsCollector())
	require.NoError(t, err)
	require.NotNil(t, svc)

	assert.Equal(t, 0, svc.TopicCount())
	assert.Equal(t, 0, svc.QueueDepth())
	assert.False(t, svc.Connected(), "no session before Start")
}

func TestNewRejectsUnknownBrokerKind(t *testing.T) {
	_, err := New(testConfig("kafka"), testLogger(t), nil, stats.NewStatsCollector())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown broker kind")
}
