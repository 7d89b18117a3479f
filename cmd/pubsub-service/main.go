//file: cmd/pubsub-service/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pubsub-service/config"
	"pubsub-service/internal/logger"
	"pubsub-service/internal/metrics"
	"pubsub-service/internal/service"
	"pubsub-service/internal/stats"
)

func main() {
	// Command line flags for config
	configPath := flag.String("config", "config/config.yaml", "path to config file")

	// Optional override flags
	authorityOverride := flag.String("authority", "", "override api bind address (empty = use config)")
	messagingURIOverride := flag.String("messaging-uri", "", "override broker endpoint (empty = use config)")
	workersOverride := flag.Int("workers", 0, "override number of dispatch workers (0 = use config)")
	queueSizeOverride := flag.Int("queue-size", 0, "override size of dispatch queue (0 = use config)")
	metricsAddrOverride := flag.String("metrics-addr", "", "override metrics server address (empty = use config)")
	metricsPathOverride := flag.String("metrics-path", "", "override metrics endpoint path (empty = use config)")
	metricsIntervalOverride := flag.Duration("metrics-interval", 0, "override metrics collection interval (0 = use config)")

	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Apply any command line overrides
	cfg.ApplyOverrides(
		*authorityOverride,
		*messagingURIOverride,
		*workersOverride,
		*queueSizeOverride,
		*metricsAddrOverride,
		*metricsPathOverride,
		*metricsIntervalOverride,
	)

	// Initialize logger
	logger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	statsCollector := stats.NewStatsCollector()

	// Setup metrics if enabled
	var metricsService *metrics.Metrics
	var metricsServer *http.Server

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metricsService, err = metrics.NewMetrics(reg)
		if err != nil {
			logger.Fatal("failed to create metrics service", "error", err)
		}

		// Setup metrics HTTP server
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry:          reg,
			EnableOpenMetrics: true,
		}))

		metricsServer = &http.Server{
			Addr:    cfg.Metrics.Address,
			Handler: mux,
		}

		go func() {
			logger.Info("starting metrics server",
				"address", cfg.Metrics.Address,
				"path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Setup signal handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := service.New(cfg, logger, metricsService, statsCollector)
	if err != nil {
		logger.Fatal("failed to create service", "error", err)
	}

	if err := svc.Start(ctx); err != nil {
		logger.Fatal("failed to start service", "error", err)
	}

	// Sample registry size and queue depth now that the service is up
	var metricsCollector *metrics.MetricsCollector
	if metricsService != nil {
		updateInterval, err := time.ParseDuration(cfg.Metrics.UpdateInterval)
		if err != nil {
			logger.Fatal("invalid metrics update interval", "error", err)
		}

		metricsCollector = metrics.NewMetricsCollector(metricsService, updateInterval, svc.TopicCount, svc.QueueDepth)
		metricsCollector.Start()
		defer metricsCollector.Stop()
	}

	logger.Info("pubsub-service started",
		"authority", cfg.Service.PubSubAuthority,
		"broker", cfg.Broker.MessagingURI,
		"workers", cfg.Dispatch.Workers,
		"metricsEnabled", cfg.Metrics.Enabled)

	// Handle signals
	for {
		select {
		case err := <-svc.Err():
			logger.Error("api server failed", "error", err)
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			svc.Close(shutdownCtx)
			shutdownCancel()
			os.Exit(1)
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("received SIGHUP, reopening logs")
				logger.Sync()
			case syscall.SIGINT, syscall.SIGTERM:
				logger.Info("shutting down...")

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()

				// Shutdown metrics server if enabled
				if cfg.Metrics.Enabled && metricsServer != nil {
					if err := metricsServer.Shutdown(shutdownCtx); err != nil {
						logger.Error("failed to shutdown metrics server", "error", err)
					}
				}

				// Cancel the run context, then drain the components
				cancel()
				svc.Close(shutdownCtx)
				return
			}
		}
	}
}
