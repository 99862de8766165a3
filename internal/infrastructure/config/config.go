package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the APS observer.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Templates TemplatesConfig `yaml:"templates"`
	StatusAPI StatusAPIConfig `yaml:"status_api"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Buffers   MQTTBufferConfig    `yaml:"buffers"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
// Delays are in seconds; backoff is exponential with jitter between them.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// MQTTBufferConfig bounds the client's in-memory buffers.
type MQTTBufferConfig struct {
	// SubscriberSize is the per-filter ring buffer capacity.
	// Oldest messages are evicted first once the bound is reached.
	SubscriberSize int `yaml:"subscriber_size"`

	// OfflineQueueSize bounds publishes queued while the broker is unreachable.
	OfflineQueueSize int `yaml:"offline_queue_size"`
}

// SessionsConfig contains session recording settings.
type SessionsConfig struct {
	// Root is the directory session databases are created under.
	// A session labelled "morning" lives at <root>/morning.db.
	Root string `yaml:"root"`

	// QueueSize bounds the recorder's work queue between the MQTT
	// callback and the SQLite writer. Overflow drops the oldest
	// queued message so a slow disk never stalls the network loop.
	QueueSize int `yaml:"queue_size"`

	WALMode     bool `yaml:"wal_mode"`
	BusyTimeout int  `yaml:"busy_timeout"`
}

// TemplatesConfig contains message template registry settings.
type TemplatesConfig struct {
	// Dir is the root of the per-category template YAML tree.
	Dir string `yaml:"dir"`
}

// StatusAPIConfig contains the optional read-only HTTP status server settings.
type StatusAPIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains the optional telemetry mirror settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: APS_SECTION_KEY
// For example: APS_MQTT_HOST, APS_SESSIONS_ROOT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in defaults with environment overrides applied,
// without reading a file. Used by commands that can run against a local
// broker with no config file present.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "aps-observer",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			Buffers: MQTTBufferConfig{
				SubscriberSize:   1000,
				OfflineQueueSize: 256,
			},
		},
		Sessions: SessionsConfig{
			Root:        "./sessions",
			QueueSize:   4096,
			WALMode:     true,
			BusyTimeout: 5,
		},
		Templates: TemplatesConfig{
			Dir: "./configs/templates",
		},
		StatusAPI: StatusAPIConfig{
			Enabled: false,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: APS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("APS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("APS_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("APS_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("APS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("APS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Sessions
	if v := os.Getenv("APS_SESSIONS_ROOT"); v != "" {
		cfg.Sessions.Root = v
	}

	// Templates
	if v := os.Getenv("APS_TEMPLATES_DIR"); v != "" {
		cfg.Templates.Dir = v
	}

	// InfluxDB
	if v := os.Getenv("APS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Buffers.SubscriberSize < 1 {
		errs = append(errs, "mqtt.buffers.subscriber_size must be positive")
	}
	if c.MQTT.Buffers.OfflineQueueSize < 0 {
		errs = append(errs, "mqtt.buffers.offline_queue_size must not be negative")
	}

	if c.Sessions.Root == "" {
		errs = append(errs, "sessions.root is required")
	}
	if c.Sessions.QueueSize < 1 {
		errs = append(errs, "sessions.queue_size must be positive")
	}

	if c.Templates.Dir == "" {
		errs = append(errs, "templates.dir is required")
	}

	if c.StatusAPI.Enabled {
		if c.StatusAPI.Port < 1 || c.StatusAPI.Port > 65535 {
			errs = append(errs, "status_api.port must be between 1 and 65535")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the status API read timeout as a Duration.
func (c StatusAPIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the status API write timeout as a Duration.
func (c StatusAPIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the status API idle timeout as a Duration.
func (c StatusAPIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
