package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
gateway:
  host: "192.168.1.10"
  port: 80
  poll_interval: 20
  unit_profile: "metric"
sensors:
  wh40_legacy_threshold: 20
  ignore_wh40_legacy: true
history:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
field_map:
  common_list.0x02.val: "temperature_out"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.Host != "192.168.1.10" {
		t.Errorf("Gateway.Host = %q, want %q", cfg.Gateway.Host, "192.168.1.10")
	}

	if cfg.History.Path != "/tmp/test.db" {
		t.Errorf("History.Path = %q, want %q", cfg.History.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if cfg.FieldMap["common_list.0x02.val"] != "temperature_out" {
		t.Errorf("FieldMap[common_list.0x02.val] = %q, want %q", cfg.FieldMap["common_list.0x02.val"], "temperature_out")
	}

	if !cfg.Publisher.PassUnmapped {
		t.Error("defaultConfig Publisher.PassUnmapped should be true")
	}

	// defaults survive a partial file
	if cfg.Gateway.SensorInterval != 300 {
		t.Errorf("Gateway.SensorInterval = %d, want default 300", cfg.Gateway.SensorInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
gateway:
  host: ""
history:
  path: "/tmp/test.db"
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty gateway.host, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Gateway.Host = "192.168.1.10"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing gateway host",
			mutate:  func(c *Config) { c.Gateway.Host = "" },
			wantErr: true,
		},
		{
			name:    "invalid gateway port",
			mutate:  func(c *Config) { c.Gateway.Port = 0 },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Gateway.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "unknown unit profile",
			mutate:  func(c *Config) { c.Gateway.UnitProfile = "imperial" },
			wantErr: true,
		},
		{
			name:    "missing history path",
			mutate:  func(c *Config) { c.History.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid API port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Gateway: GatewayConfig{
			PollInterval:   20,
			SensorInterval: 300,
			Timeout:        10,
		},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetPollInterval().Seconds(); got != 20 {
		t.Errorf("GetPollInterval() = %v, want 20", got)
	}

	if got := cfg.GetSensorInterval().Seconds(); got != 300 {
		t.Errorf("GetSensorInterval() = %v, want 300", got)
	}

	if got := cfg.GetGatewayTimeout().Seconds(); got != 10 {
		t.Errorf("GetGatewayTimeout() = %v, want 10", got)
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("ECOWITT_GATEWAY_HOST", "192.168.7.7")
	t.Setenv("ECOWITT_HISTORY_PATH", "/custom/path.db")
	t.Setenv("ECOWITT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("ECOWITT_MQTT_USERNAME", "testuser")
	t.Setenv("ECOWITT_MQTT_PASSWORD", "testpass")
	t.Setenv("ECOWITT_API_HOST", "192.168.1.1")
	t.Setenv("ECOWITT_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Gateway.Host != "192.168.7.7" {
		t.Errorf("Gateway.Host = %q, want %q", cfg.Gateway.Host, "192.168.7.7")
	}

	if cfg.History.Path != "/custom/path.db" {
		t.Errorf("History.Path = %q, want %q", cfg.History.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Gateway.PollInterval != 20 {
		t.Errorf("defaultConfig Gateway.PollInterval = %d, want 20", cfg.Gateway.PollInterval)
	}

	if cfg.Sensors.WH40LegacyThreshold != 20 {
		t.Errorf("defaultConfig Sensors.WH40LegacyThreshold = %d, want 20", cfg.Sensors.WH40LegacyThreshold)
	}

	if cfg.History.Path == "" {
		t.Error("defaultConfig should have non-empty History.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
