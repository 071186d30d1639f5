package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Register encodings and regions accepted in the registers section.
const (
	EncodingFloat = "float"
	EncodingASCII = "ascii"

	RegionInput   = "input"
	RegionHolding = "holding"

	ModeTCP = "tcp"
	ModeRTU = "rtu"
)

// Config is the root configuration structure for the PowerTag monitor.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Poller    PollerConfig     `yaml:"poller"`
	Alerts    AlertsConfig     `yaml:"alerts"`
	Modbus    ModbusConfig     `yaml:"modbus"`
	Registers []RegisterConfig `yaml:"registers"`
	PowerTags []PowerTagConfig `yaml:"powertags"`
	Storage   StorageConfig    `yaml:"storage"`
	MQTT      MQTTConfig       `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig   `yaml:"influxdb"`
	TSDB      TSDBConfig       `yaml:"tsdb"`
	NATS      NATSConfig       `yaml:"nats"`
	Notify    NotifyConfig     `yaml:"notify"`
	API       APIConfig        `yaml:"api"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// PollerConfig controls cycle pacing and the read retry policy.
// Intervals are expressed in (fractional) seconds.
type PollerConfig struct {
	PollInterval         float64 `yaml:"poll_interval"`
	AsciiRefreshInterval float64 `yaml:"ascii_refresh_interval"`
	Retries              int     `yaml:"retries"`
	RetryDelay           float64 `yaml:"retry_delay"`
}

// AlertsConfig contains threshold and cooldown settings.
type AlertsConfig struct {
	Cooldown        float64          `yaml:"cooldown"`
	VoltageRegister string           `yaml:"voltage_register"`
	CurrentRegister string           `yaml:"current_register"`
	Thresholds      ThresholdsConfig `yaml:"thresholds"`
}

// ThresholdsConfig holds operator alert limits.
type ThresholdsConfig struct {
	Voltage VoltageThresholds `yaml:"voltage"`
	Current CurrentThresholds `yaml:"current"`
}

// VoltageThresholds bounds the acceptable voltage band (volts).
type VoltageThresholds struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// CurrentThresholds bounds the acceptable current (amperes).
type CurrentThresholds struct {
	High float64 `yaml:"high"`
}

// ModbusConfig contains gateway connection settings.
type ModbusConfig struct {
	Mode     string          `yaml:"mode"`
	Port     int             `yaml:"port"`
	Timeout  int             `yaml:"timeout"`
	RTUBaud  int             `yaml:"rtu_baud"`
	Gateways []GatewayConfig `yaml:"gateways"`
}

// GatewayConfig describes one Modbus gateway.
// Port overrides modbus.port when non-zero. Device is used in rtu mode only.
type GatewayConfig struct {
	Name   string `yaml:"name"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Device string `yaml:"device"`
}

// RegisterConfig describes one named register in the schema.
// Region defaults to input for float and holding for ascii.
// Length defaults to 2 for float.
type RegisterConfig struct {
	Key      string `yaml:"key"`
	Address  int    `yaml:"address"`
	Region   string `yaml:"region"`
	Encoding string `yaml:"encoding"`
	Length   int    `yaml:"length"`
}

// PowerTagConfig describes one monitored device behind a gateway.
type PowerTagConfig struct {
	DeviceID int    `yaml:"device_id"`
	Name     string `yaml:"name"`
	Gateway  string `yaml:"gateway"`
}

// StorageConfig selects the durable log sinks.
type StorageConfig struct {
	CSV    CSVConfig      `yaml:"csv"`
	SQLite DatabaseConfig `yaml:"sqlite"`
}

// CSVConfig contains CSV log settings.
type CSVConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	WALMode       bool   `yaml:"wal_mode"`
	BusyTimeout   int    `yaml:"busy_timeout"`
	RetentionDays int    `yaml:"retention_days"`
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

// TSDBConfig contains VictoriaMetrics (InfluxDB line protocol) settings.
type TSDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// NATSConfig contains NATS connection settings for alert fan-out.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// NotifyConfig contains webhook notification settings.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Username   string `yaml:"username"`
	QueueSize  int    `yaml:"queue_size"`
	Timeout    int    `yaml:"timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
	Dashboard DashboardConfig  `yaml:"dashboard"`
}

// DashboardConfig controls the built-in live readings page.
// Dir serves the page from disk instead of the embedded copy.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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
//  4. Register defaults (region and length derived from encoding)
//
// Environment variables follow the pattern: POWERTAG_SECTION_KEY
// For example: POWERTAG_CSV_PATH, POWERTAG_WEBHOOK_URL
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
	applyRegisterDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Poller: PollerConfig{
			PollInterval:         80,
			AsciiRefreshInterval: 600,
			Retries:              3,
			RetryDelay:           0.3,
		},
		Alerts: AlertsConfig{
			Cooldown:        300,
			VoltageRegister: "voltage",
			CurrentRegister: "current",
			Thresholds: ThresholdsConfig{
				Voltage: VoltageThresholds{Low: 200, High: 250},
				Current: CurrentThresholds{High: 1},
			},
		},
		Modbus: ModbusConfig{
			Mode:    ModeTCP,
			Port:    502,
			Timeout: 5,
			RTUBaud: 19200,
		},
		Storage: StorageConfig{
			CSV: CSVConfig{
				Enabled: true,
				Path:    "powerData.csv",
			},
			SQLite: DatabaseConfig{
				Path:          "./data/powertag.db",
				WALMode:       true,
				BusyTimeout:   5,
				RetentionDays: 30,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "powertag-monitor",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		TSDB: TSDBConfig{
			BatchSize:     500,
			FlushInterval: 10,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "powertag",
		},
		Notify: NotifyConfig{
			Username:  "PowerTag Monitor",
			QueueSize: 64,
			Timeout:   10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Dashboard: DashboardConfig{Enabled: true},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: POWERTAG_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POWERTAG_CSV_PATH"); v != "" {
		cfg.Storage.CSV.Path = v
	}
	if v := os.Getenv("POWERTAG_DATABASE_PATH"); v != "" {
		cfg.Storage.SQLite.Path = v
	}

	// Notification secrets
	if v := os.Getenv("POWERTAG_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}

	// MQTT
	if v := os.Getenv("POWERTAG_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("POWERTAG_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("POWERTAG_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("POWERTAG_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("POWERTAG_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("POWERTAG_API_HOST"); v != "" {
		cfg.API.Host = v
	}
}

// applyRegisterDefaults fills in region and length where the file left them out.
// Float values live in input registers and ascii text in holding registers unless
// the operator says otherwise.
func applyRegisterDefaults(cfg *Config) {
	for i := range cfg.Registers {
		r := &cfg.Registers[i]
		r.Encoding = strings.ToLower(strings.TrimSpace(r.Encoding))
		r.Region = strings.ToLower(strings.TrimSpace(r.Region))

		if r.Region == "" {
			switch r.Encoding {
			case EncodingFloat:
				r.Region = RegionInput
			case EncodingASCII:
				r.Region = RegionHolding
			}
		}
		if r.Length == 0 && r.Encoding == EncodingFloat {
			r.Length = 2
		}
	}
}

// Validate checks the configuration for errors.
// All problems are collected so the operator sees them in one pass.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Poller
	if c.Poller.PollInterval <= 0 {
		errs = append(errs, "poller.poll_interval must be positive")
	}
	if c.Poller.AsciiRefreshInterval < 0 {
		errs = append(errs, "poller.ascii_refresh_interval must not be negative")
	}
	if c.Poller.Retries < 1 {
		errs = append(errs, "poller.retries must be at least 1")
	}
	if c.Poller.RetryDelay < 0 {
		errs = append(errs, "poller.retry_delay must not be negative")
	}

	// Alerts
	if c.Alerts.Cooldown < 0 {
		errs = append(errs, "alerts.cooldown must not be negative")
	}
	if c.Alerts.Thresholds.Voltage.Low >= c.Alerts.Thresholds.Voltage.High {
		errs = append(errs, "alerts.thresholds.voltage.low must be below alerts.thresholds.voltage.high")
	}

	errs = append(errs, c.validateModbus()...)
	errs = append(errs, c.validateRegisters()...)
	errs = append(errs, c.validatePowerTags()...)

	// Storage
	if c.Storage.CSV.Enabled && c.Storage.CSV.Path == "" {
		errs = append(errs, "storage.csv.path is required when csv is enabled")
	}
	if c.Storage.SQLite.Enabled && c.Storage.SQLite.Path == "" {
		errs = append(errs, "storage.sqlite.path is required when sqlite is enabled")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateModbus() []string {
	var errs []string

	if c.Modbus.Mode != ModeTCP && c.Modbus.Mode != ModeRTU {
		errs = append(errs, fmt.Sprintf("modbus.mode %q must be tcp or rtu", c.Modbus.Mode))
	}
	if c.Modbus.Port < 1 || c.Modbus.Port > 65535 {
		errs = append(errs, "modbus.port must be between 1 and 65535")
	}
	if len(c.Modbus.Gateways) == 0 {
		errs = append(errs, "modbus.gateways must list at least one gateway")
	}

	seen := make(map[string]bool, len(c.Modbus.Gateways))
	for i, gw := range c.Modbus.Gateways {
		if gw.Name == "" {
			errs = append(errs, fmt.Sprintf("modbus.gateways[%d].name is required", i))
			continue
		}
		if seen[gw.Name] {
			errs = append(errs, fmt.Sprintf("modbus.gateways[%d].name %q is duplicated", i, gw.Name))
		}
		seen[gw.Name] = true

		if c.Modbus.Mode == ModeRTU {
			if gw.Device == "" {
				errs = append(errs, fmt.Sprintf("modbus.gateways[%d].device is required in rtu mode", i))
			}
		} else if gw.Host == "" {
			errs = append(errs, fmt.Sprintf("modbus.gateways[%d].host is required", i))
		}
	}

	return errs
}

func (c *Config) validateRegisters() []string {
	var errs []string

	if len(c.Registers) == 0 {
		errs = append(errs, "registers must list at least one register")
	}

	seen := make(map[string]bool, len(c.Registers))
	for i, r := range c.Registers {
		if r.Key == "" {
			errs = append(errs, fmt.Sprintf("registers[%d].key is required", i))
		} else if seen[r.Key] {
			errs = append(errs, fmt.Sprintf("registers[%d].key %q is duplicated", i, r.Key))
		}
		seen[r.Key] = true

		if r.Address < 0 || r.Address > 65535 {
			errs = append(errs, fmt.Sprintf("registers[%d].address must be between 0 and 65535", i))
		}

		switch r.Region {
		case RegionInput, RegionHolding:
		default:
			errs = append(errs, fmt.Sprintf("registers[%d].region %q must be input or holding", i, r.Region))
		}

		switch r.Encoding {
		case EncodingFloat:
			if r.Length != 2 {
				errs = append(errs, fmt.Sprintf("registers[%d].length must be 2 for float encoding", i))
			}
		case EncodingASCII:
			if r.Length < 1 || r.Length > 125 {
				errs = append(errs, fmt.Sprintf("registers[%d].length must be between 1 and 125 for ascii encoding", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("registers[%d].encoding %q must be float or ascii", i, r.Encoding))
		}
	}

	return errs
}

func (c *Config) validatePowerTags() []string {
	var errs []string

	if len(c.PowerTags) == 0 {
		errs = append(errs, "powertags must list at least one device")
	}

	gateways := make(map[string]bool, len(c.Modbus.Gateways))
	for _, gw := range c.Modbus.Gateways {
		gateways[gw.Name] = true
	}

	names := make(map[string]bool, len(c.PowerTags))
	for i, pt := range c.PowerTags {
		if pt.Name == "" {
			errs = append(errs, fmt.Sprintf("powertags[%d].name is required", i))
		} else if names[pt.Name] {
			errs = append(errs, fmt.Sprintf("powertags[%d].name %q is duplicated", i, pt.Name))
		}
		names[pt.Name] = true

		if pt.DeviceID < 1 || pt.DeviceID > 247 {
			errs = append(errs, fmt.Sprintf("powertags[%d].device_id must be between 1 and 247", i))
		}
		if !gateways[pt.Gateway] {
			errs = append(errs, fmt.Sprintf("powertags[%d].gateway %q is not a configured gateway", i, pt.Gateway))
		}
	}

	return errs
}

// GetPollInterval returns the target cycle period as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return seconds(c.Poller.PollInterval)
}

// GetAsciiRefreshInterval returns the text cache refresh interval as a Duration.
func (c *Config) GetAsciiRefreshInterval() time.Duration {
	return seconds(c.Poller.AsciiRefreshInterval)
}

// GetRetryDelay returns the pause between read attempts as a Duration.
func (c *Config) GetRetryDelay() time.Duration {
	return seconds(c.Poller.RetryDelay)
}

// GetAlertCooldown returns the per-device alert cooldown as a Duration.
func (c *Config) GetAlertCooldown() time.Duration {
	return seconds(c.Alerts.Cooldown)
}

// GetModbusTimeout returns the gateway request timeout as a Duration.
func (c *Config) GetModbusTimeout() time.Duration {
	return time.Duration(c.Modbus.Timeout) * time.Second
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

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
