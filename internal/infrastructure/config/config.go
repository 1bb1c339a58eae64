package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for mysnode.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Identity IdentityConfig `yaml:"identity"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Host     HostConfig     `yaml:"host"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// NodeConfig describes the MySensors node this process presents.
type NodeConfig struct {
	SketchName    string         `yaml:"sketch_name"`
	SketchVersion string         `yaml:"sketch_version"`
	Topics        TopicsConfig   `yaml:"topics"`
	Sensors       []SensorConfig `yaml:"sensors"`

	// RequestTimeout is how long to wait for an ID response before re-sending
	// the request (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// ConfigTimeout is how long to wait for an I_CONFIG reply (seconds).
	ConfigTimeout int `yaml:"config_timeout"`

	// MaxAttempts bounds how many times a request is sent before giving up.
	MaxAttempts int `yaml:"max_attempts"`
}

// TopicsConfig holds the two MQTT topic roots.
type TopicsConfig struct {
	// Incoming is the root the controller publishes to (default "mys-out").
	Incoming string `yaml:"incoming"`

	// Outgoing is the root this node publishes to (default "mys-in").
	Outgoing string `yaml:"outgoing"`
}

// SensorConfig declares one child sensor presented at startup.
type SensorConfig struct {
	ID    uint8  `yaml:"id"`
	Type  string `yaml:"type"`  // S_* name, e.g. "S_TEMP"
	Value string `yaml:"value"` // V_* name, e.g. "V_TEMP"
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// IdentityConfig selects where the node ID is persisted.
type IdentityConfig struct {
	// Backend is "file" (JSON record) or "sqlite" (uses the database section).
	Backend string `yaml:"backend"`

	// Path is the JSON file used by the file backend.
	Path string `yaml:"path"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for mirroring readings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// HostConfig contains host-level control settings.
type HostConfig struct {
	Reboot RebootConfig `yaml:"reboot"`
}

// RebootConfig decides whether the controller may reboot this host.
type RebootConfig struct {
	// Enabled must be true for I_REBOOT to have any effect.
	Enabled bool `yaml:"enabled"`

	// Command is the argv executed to reboot. Default: ["sudo", "reboot"].
	Command []string `yaml:"command"`

	// MinInterval drops reboot requests arriving sooner than this after an
	// honoured one (seconds). 0 disables the check.
	MinInterval int `yaml:"min_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Identity backends.
const (
	IdentityBackendFile   = "file"
	IdentityBackendSQLite = "sqlite"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MYSNODE_SECTION_KEY
// For example: MYSNODE_MQTT_HOST, MYSNODE_IDENTITY_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			SketchName:    "mysnode",
			SketchVersion: "1.0",
			Topics: TopicsConfig{
				Incoming: "mys-out",
				Outgoing: "mys-in",
			},
			RequestTimeout: 10,
			ConfigTimeout:  5,
			MaxAttempts:    3,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Identity: IdentityConfig{
			Backend: IdentityBackendFile,
			Path:    "mys2mqtt.config.json",
		},
		Database: DatabaseConfig{
			Path:        "./data/mysnode.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9108",
			Path:   "/metrics",
		},
		Host: HostConfig{
			Reboot: RebootConfig{
				Command:     []string{"sudo", "reboot"},
				MinInterval: 300,
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
// Environment variables follow the pattern: MYSNODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("MYSNODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MYSNODE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("MYSNODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MYSNODE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Identity
	if v := os.Getenv("MYSNODE_IDENTITY_PATH"); v != "" {
		cfg.Identity.Path = v
	}

	// Database
	if v := os.Getenv("MYSNODE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("MYSNODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Node validation
	for name, root := range map[string]string{"incoming": c.Node.Topics.Incoming, "outgoing": c.Node.Topics.Outgoing} {
		if root == "" || strings.ContainsAny(root, "/+#") {
			errs = append(errs, fmt.Sprintf("node.topics.%s must be a single non-wildcard topic level", name))
		}
	}
	if c.Node.RequestTimeout < 1 {
		errs = append(errs, "node.request_timeout must be at least 1 second")
	}
	if c.Node.ConfigTimeout < 1 {
		errs = append(errs, "node.config_timeout must be at least 1 second")
	}
	if c.Node.MaxAttempts < 1 {
		errs = append(errs, "node.max_attempts must be at least 1")
	}
	seen := make(map[uint8]bool, len(c.Node.Sensors))
	for _, s := range c.Node.Sensors {
		if seen[s.ID] {
			errs = append(errs, fmt.Sprintf("node.sensors: duplicate sensor id %d", s.ID))
		}
		seen[s.ID] = true
		if s.Type == "" || s.Value == "" {
			errs = append(errs, fmt.Sprintf("node.sensors: sensor %d needs both type and value", s.ID))
		}
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Identity validation
	switch c.Identity.Backend {
	case IdentityBackendFile:
		if c.Identity.Path == "" {
			errs = append(errs, "identity.path is required for the file backend")
		}
	case IdentityBackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite backend")
		}
	default:
		errs = append(errs, "identity.backend must be \"file\" or \"sqlite\"")
	}

	// Reboot validation
	if c.Host.Reboot.Enabled && len(c.Host.Reboot.Command) == 0 {
		errs = append(errs, "host.reboot.command is required when reboot is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the ID request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Node.RequestTimeout) * time.Second
}

// GetConfigTimeout returns the I_CONFIG reply timeout as a Duration.
func (c *Config) GetConfigTimeout() time.Duration {
	return time.Duration(c.Node.ConfigTimeout) * time.Second
}

// GetRebootMinInterval returns the minimum reboot interval as a Duration.
func (c *Config) GetRebootMinInterval() time.Duration {
	return time.Duration(c.Host.Reboot.MinInterval) * time.Second
}
