//file: internal/api/server_test.go
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pubsub-service/config"
	"pubsub-service/internal/logger"
	"pubsub-service/internal/stats"
)

// mockAllocator records calls from the handlers.
type mockAllocator struct {
	created []string
	deleted []string
	nextID  string
}

func (m *mockAllocator) CreateTopic(publisherID, callbackURI string) (string, error) {
	m.created = append(m.created, publisherID+"|"+callbackURI)
	return m.nextID, nil
}

func (m *mockAllocator) DeleteTopic(id string) {
	m.deleted = append(m.deleted, id)
}

func setupTestServer(t *testing.T, health func() bool) (*Server, *mockAllocator) {
	t.Helper()

	log, err := logger.NewLogger(&config.LogConfig{
		Level:      "debug",
		OutputPath: "stdout",
		Encoding:   "console",
	})
	require.NoError(t, err)

	allocator := &mockAllocator{nextID: "generated-topic-id"}
	srv := NewServer(Config{
		Authority:      "127.0.0.1:0",
		BrokerURI:      "mqtt://broker:1883",
		BrokerProtocol: "mqtt",
	}, allocator, health, stats.NewStatsCollector(), log)

	return srv, allocator
}

func TestCreateTopic(t *testing.T) {
	srv, allocator := setupTestServer(t, nil)

	body, _ := json.Marshal(map[string]string{
		"publisher_id":        "P1",
		"management_callback": "http://p1:9000",
		"management_protocol": "http",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/topics", bytes.NewReader(body))
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp createTopicResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "generated-topic-id", resp.GeneratedTopic)
	assert.Equal(t, "mqtt://broker:1883", resp.BrokerURI)
	assert.Equal(t, "mqtt", resp.BrokerProtocol)

	require.Len(t, allocator.created, 1)
	assert.Equal(t, "P1|http://p1:9000", allocator.created[0])
}

func TestCreateTopicRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
	}{
		{
			name: "missing publisher id",
			body: map[string]string{"management_callback": "http://p1:9000"},
		},
		{
			name: "missing management callback",
			body: map[string]string{"publisher_id": "P1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, allocator := setupTestServer(t, nil)

			body, _ := json.Marshal(tt.body)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/topics", bytes.NewReader(body))
			srv.Handler().ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, allocator.created)
		})
	}
}

func TestCreateTopicRejectsMalformedBody(t *testing.T) {
	srv, _ := setupTestServer(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/topics", bytes.NewReader([]byte("{not json")))
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteTopic(t *testing.T) {
	srv, allocator := setupTestServer(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/topics/some-topic-id", nil)
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, allocator.deleted, 1)
	assert.Equal(t, "some-topic-id", allocator.deleted[0])

	// Idempotent: a repeat delete still succeeds.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/v1/topics/some-topic-id", nil)
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteTopicRejectsWildcards(t *testing.T) {
	srv, allocator := setupTestServer(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/topics/%23", nil)
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, allocator.deleted)
}

func TestHealthzReflectsBrokerLink(t *testing.T) {
	up := true
	srv, _ := setupTestServer(t, func() bool { return up })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	up = false
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusz(t *testing.T) {
	srv, _ := setupTestServer(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/statusz", nil)
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "events_processed")
	assert.Contains(t, body, "topics_created")
}
