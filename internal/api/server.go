//file: internal/api/server.go
// Package api exposes the topic management surface: topic creation and
// deletion for publishers, plus health and stats endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pubsub-service/internal/logger"
	"pubsub-service/internal/stats"
	"pubsub-service/internal/topics"
)

// TopicAllocator is the slice of the topic manager the API needs.
type TopicAllocator interface {
	CreateTopic(publisherID, callbackURI string) (string, error)
	DeleteTopic(id string)
}

// Config holds the API server settings and the broker coordinates
// returned to publishers.
type Config struct {
	Authority      string
	BrokerURI      string
	BrokerProtocol string
}

// Server is the inbound management endpoint.
type Server struct {
	cfg     Config
	manager TopicAllocator
	health  func() bool
	stats   *stats.StatsCollector
	logger  *logger.Logger
	http    *http.Server
}

// NewServer builds the server and its routes. health reports the
// broker-link state for /healthz; it may be nil.
func NewServer(cfg Config, manager TopicAllocator, health func() bool, st *stats.StatsCollector, log *logger.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		manager: manager,
		health:  health,
		stats:   st,
		logger:  log,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.POST("/v1/topics", s.createTopic)
	engine.DELETE("/v1/topics/:topic", s.deleteTopic)
	engine.GET("/healthz", s.healthz)
	engine.GET("/statusz", s.statusz)

	s.http = &http.Server{
		Addr:    cfg.Authority,
		Handler: engine,
	}

	return s
}

// Start begins serving. It returns when the listener stops; a failed
// bind surfaces through the returned error.
func (s *Server) Start() error {
	s.logger.Info("starting pubsub api server", "address", s.cfg.Authority)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

type createTopicRequest struct {
	PublisherID        string `json:"publisher_id"`
	ManagementCallback string `json:"management_callback"`
	ManagementProtocol string `json:"management_protocol"`
}

type createTopicResponse struct {
	GeneratedTopic string `json:"generated_topic"`
	BrokerURI      string `json:"broker_uri"`
	BrokerProtocol string `json:"broker_protocol"`
}

func (s *Server) createTopic(c *gin.Context) {
	var req createTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.PublisherID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "publisher_id is required"})
		return
	}
	if req.ManagementCallback == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "management_callback is required"})
		return
	}

	// The management protocol is informational only; publishers may
	// report anything here.
	s.logger.Info("create topic request",
		"publisher", req.PublisherID,
		"management_protocol", req.ManagementProtocol)

	id, err := s.manager.CreateTopic(req.PublisherID, req.ManagementCallback)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to allocate topic"})
		return
	}

	c.JSON(http.StatusOK, createTopicResponse{
		GeneratedTopic: id,
		BrokerURI:      s.cfg.BrokerURI,
		BrokerProtocol: s.cfg.BrokerProtocol,
	})
}

func (s *Server) deleteTopic(c *gin.Context) {
	topic := c.Param("topic")
	if err := topics.ValidateName(topic); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Idempotent: unknown or already-marked topics succeed.
	s.manager.DeleteTopic(topic)
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil && !s.health() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "broker link down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) statusz(c *gin.Context) {
	if s.stats == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.stats.GetStats())
}

// requestLogger logs each request with method, path, status and
// duration.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("api request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}
