package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Ecowitt gateway driver.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Sensors SensorsConfig `yaml:"sensors"`

	// FieldMap renames the parser's dotted gateway keys in published
	// records, overlaying the built-in defaults. An empty value drops
	// the field.
	FieldMap  map[string]string `yaml:"field_map"`
	Publisher PublisherConfig   `yaml:"publisher"`
	History   HistoryConfig     `yaml:"history"`
	MQTT      MQTTConfig        `yaml:"mqtt"`
	API       APIConfig         `yaml:"api"`
	InfluxDB  InfluxDBConfig    `yaml:"influxdb"`
	Logging   LoggingConfig     `yaml:"logging"`
}

// GatewayConfig contains the weather station gateway connection and
// polling settings.
type GatewayConfig struct {
	// Host is the gateway's IP address or hostname on the local network.
	Host string `yaml:"host"`

	// Port is the gateway's HTTP API port.
	Port int `yaml:"port"`

	// PollInterval is the live-data polling cadence in seconds.
	PollInterval int `yaml:"poll_interval"`

	// SensorInterval is the sensor-table refresh cadence in seconds.
	SensorInterval int `yaml:"sensor_interval"`

	// Timeout is the per-request HTTP timeout in seconds.
	Timeout int `yaml:"timeout"`

	// UnitProfile selects the default unit set assumed when the gateway
	// omits explicit units: "metric", "metric_wx" or "us".
	UnitProfile string `yaml:"unit_profile"`

	// Breaker contains circuit-breaker settings for gateway requests.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig contains circuit-breaker settings for the gateway client.
type BreakerConfig struct {
	// MaxFailures is the consecutive failure count that opens the breaker.
	MaxFailures int `yaml:"max_failures"`

	// CooldownSeconds is how long the breaker stays open before probing.
	CooldownSeconds int `yaml:"cooldown_seconds"`
}

// PublisherConfig controls how parsed observation records are shaped
// before they are published.
type PublisherConfig struct {
	// PassUnmapped keeps gateway fields that have no field_map entry in
	// the published record under their dotted gateway name. When false,
	// unmapped fields are dropped.
	PassUnmapped bool `yaml:"pass_unmapped"`

	// PerFieldTopics additionally publishes each record field to its own
	// MQTT topic beneath the observations topic.
	PerFieldTopics bool `yaml:"per_field_topics"`
}

// SensorsConfig contains sensor battery decoding settings.
type SensorsConfig struct {
	// WH40LegacyThreshold is the raw battery value below which a WH40
	// rain gauge is treated as the legacy hardware revision.
	WH40LegacyThreshold int `yaml:"wh40_legacy_threshold"`

	// IgnoreWH40Legacy discards legacy WH40 battery readings rather than
	// decoding them.
	IgnoreWH40Legacy bool `yaml:"ignore_wh40_legacy"`
}

// HistoryConfig contains SQLite counter-history settings.
type HistoryConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// Retention is how many days of counter snapshots to keep.
	Retention int `yaml:"retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains the diagnostics HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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
// Environment variables follow the pattern: ECOWITT_SECTION_KEY
// For example: ECOWITT_GATEWAY_HOST, ECOWITT_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:           80,
			PollInterval:   20,
			SensorInterval: 300,
			Timeout:        10,
			UnitProfile:    "metric",
			Breaker: BreakerConfig{
				MaxFailures:     5,
				CooldownSeconds: 60,
			},
		},
		Sensors: SensorsConfig{
			WH40LegacyThreshold: 20,
			IgnoreWH40Legacy:    true,
		},
		Publisher: PublisherConfig{
			PassUnmapped:   true,
			PerFieldTopics: true,
		},
		History: HistoryConfig{
			Path:        "./data/ecowitt.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ecowitt-driver",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
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
// Environment variables follow the pattern: ECOWITT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Gateway
	if v := os.Getenv("ECOWITT_GATEWAY_HOST"); v != "" {
		cfg.Gateway.Host = v
	}

	// History
	if v := os.Getenv("ECOWITT_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	// MQTT
	if v := os.Getenv("ECOWITT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ECOWITT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ECOWITT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("ECOWITT_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("ECOWITT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation
	if c.Gateway.Host == "" {
		errs = append(errs, "gateway.host is required (set ECOWITT_GATEWAY_HOST environment variable)")
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, "gateway.port must be between 1 and 65535")
	}
	if c.Gateway.PollInterval < 1 {
		errs = append(errs, "gateway.poll_interval must be at least 1 second")
	}
	switch c.Gateway.UnitProfile {
	case "metric", "metric_wx", "us":
	default:
		errs = append(errs, "gateway.unit_profile must be one of metric, metric_wx, us")
	}

	// History validation
	if c.History.Path == "" {
		errs = append(errs, "history.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the live-data polling cadence as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Gateway.PollInterval) * time.Second
}

// GetSensorInterval returns the sensor-table refresh cadence as a Duration.
func (c *Config) GetSensorInterval() time.Duration {
	return time.Duration(c.Gateway.SensorInterval) * time.Second
}

// GetGatewayTimeout returns the per-request HTTP timeout as a Duration.
func (c *Config) GetGatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.Timeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
