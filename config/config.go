package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Broker   BrokerConfig   `yaml:"broker"`
	Topics   TopicsConfig   `yaml:"topics"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Logging  LogConfig      `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServiceConfig struct {
	// Address the topic management API binds to, e.g. "0.0.0.0:50051".
	PubSubAuthority string `yaml:"pub_sub_authority"`
}

type BrokerConfig struct {
	Kind         string `yaml:"kind"` // mqtt or nats
	MessagingURI string `yaml:"messaging_uri"`
	ClientID     string `yaml:"client_id"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	ControlTopic string `yaml:"control_topic"` // publishers park their last will here
	TLS          struct {
		Enable   bool   `yaml:"enable"`
		CertFile string `yaml:"cert_file"`
		KeyFile  string `yaml:"key_file"`
		CAFile   string `yaml:"ca_file"`
	} `yaml:"tls"`
}

type TopicsConfig struct {
	DeletionMessage     string `yaml:"topic_deletion_message"`
	CleanupIntervalSecs int    `yaml:"cleanup_interval_secs"`
	StaleThresholdSecs  int    `yaml:"stale_threshold_secs"`
	EventQueueSize      int    `yaml:"event_queue_size"`
}

type DispatchConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

type LogConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	OutputPath string `yaml:"output_path"` // file path or "stdout"
	Encoding   string `yaml:"encoding"`    // json or console
}

type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Address        string `yaml:"address"`
	Path           string `yaml:"path"`
	UpdateInterval string `yaml:"update_interval"` // Duration string
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults for the service authority
	if config.Service.PubSubAuthority == "" {
		config.Service.PubSubAuthority = "0.0.0.0:50051"
	}

	// Set defaults for the broker link
	if config.Broker.Kind == "" {
		config.Broker.Kind = "mqtt"
	}
	if config.Broker.ClientID == "" {
		config.Broker.ClientID = "pubsub-service"
	}
	if config.Broker.ControlTopic == "" {
		config.Broker.ControlTopic = "publisher/disconnect"
	}

	// Set defaults for topic lifecycle handling
	if config.Topics.DeletionMessage == "" {
		config.Topics.DeletionMessage = "TOPIC DELETED"
	}
	if config.Topics.CleanupIntervalSecs <= 0 {
		config.Topics.CleanupIntervalSecs = 5
	}
	if config.Topics.StaleThresholdSecs <= 0 {
		config.Topics.StaleThresholdSecs = 30
	}
	if config.Topics.EventQueueSize <= 0 {
		config.Topics.EventQueueSize = 128
	}

	// Set defaults for callback dispatch
	if config.Dispatch.Workers <= 0 {
		config.Dispatch.Workers = runtime.NumCPU()
	}
	if config.Dispatch.QueueSize <= 0 {
		config.Dispatch.QueueSize = 256
	}

	// Set defaults for logging
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.OutputPath == "" {
		config.Logging.OutputPath = "stdout"
	}
	if config.Logging.Encoding == "" {
		config.Logging.Encoding = "json"
	}

	// Set defaults for metrics
	if config.Metrics.Address == "" {
		config.Metrics.Address = ":2112"
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	if config.Metrics.UpdateInterval == "" {
		config.Metrics.UpdateInterval = "15s"
	}

	// Validate the configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config) error {
	// Validate the service authority
	if _, _, err := net.SplitHostPort(cfg.Service.PubSubAuthority); err != nil {
		return fmt.Errorf("invalid pub_sub_authority: %w", err)
	}

	// Validate broker config
	switch cfg.Broker.Kind {
	case "mqtt", "nats":
	default:
		return fmt.Errorf("invalid broker kind: %s", cfg.Broker.Kind)
	}

	if cfg.Broker.MessagingURI == "" {
		return fmt.Errorf("messaging uri is required")
	}
	if _, err := url.Parse(cfg.Broker.MessagingURI); err != nil {
		return fmt.Errorf("invalid messaging uri: %w", err)
	}

	// Validate TLS config if enabled
	if cfg.Broker.TLS.Enable {
		if cfg.Broker.TLS.CertFile == "" {
			return fmt.Errorf("tls cert file is required when tls is enabled")
		}
		if cfg.Broker.TLS.KeyFile == "" {
			return fmt.Errorf("tls key file is required when tls is enabled")
		}
		if cfg.Broker.TLS.CAFile == "" {
			return fmt.Errorf("tls ca file is required when tls is enabled")
		}
	}

	// Validate logging config
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	// Validate metrics config
	if cfg.Metrics.Enabled {
		if _, err := time.ParseDuration(cfg.Metrics.UpdateInterval); err != nil {
			return fmt.Errorf("invalid metrics update interval: %w", err)
		}
	}

	// Validate dispatch config
	if cfg.Dispatch.Workers < 1 {
		return fmt.Errorf("dispatch workers must be greater than 0")
	}
	if cfg.Dispatch.QueueSize < 1 {
		return fmt.Errorf("dispatch queue size must be greater than 0")
	}

	return nil
}

// CleanupInterval returns the cleanup sweep cadence as a duration.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Topics.CleanupIntervalSecs) * time.Second
}

// StaleThreshold returns the idle-topic threshold as a duration.
func (c *Config) StaleThreshold() time.Duration {
	return time.Duration(c.Topics.StaleThresholdSecs) * time.Second
}

// ApplyOverrides applies command line flag overrides to the configuration
func (c *Config) ApplyOverrides(authority, messagingURI string, workers, queueSize int, metricsAddr, metricsPath string, metricsInterval time.Duration) {
	if authority != "" {
		c.Service.PubSubAuthority = authority
	}
	if messagingURI != "" {
		c.Broker.MessagingURI = messagingURI
	}
	if workers > 0 {
		c.Dispatch.Workers = workers
	}
	if queueSize > 0 {
		c.Dispatch.QueueSize = queueSize
	}
	if metricsAddr != "" {
		c.Metrics.Address = metricsAddr
	}
	if metricsPath != "" {
		c.Metrics.Path = metricsPath
	}
	if metricsInterval > 0 {
		c.Metrics.UpdateInterval = metricsInterval.String()
	}
}
