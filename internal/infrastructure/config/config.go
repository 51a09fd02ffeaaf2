package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for machine-core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Machine  MachineConfig  `yaml:"machine"`
	Lattice  LatticeConfig  `yaml:"lattice"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MachineConfig describes the machine this deployment controls.
type MachineConfig struct {
	// Name identifies the installation (used in logs and MQTT client IDs).
	Name string `yaml:"name"`

	// Areas is the ordered sequence of machine areas. Device ordering and
	// area validation both derive from this list, so the order matters.
	Areas []string `yaml:"areas"`

	// HardwareTypes maps each hardware-type tag to its valid subtypes.
	// An empty subtype list means the type has no subtype classification.
	HardwareTypes map[string][]string `yaml:"hardware_types"`

	// Virtual connects every control point to the virtual machine instead
	// of the physical one. Virtual points get a "VM-" address prefix and
	// are always writable.
	Virtual bool `yaml:"virtual"`
}

// LatticeConfig locates the device definition files.
type LatticeConfig struct {
	// Path is the root directory holding one subdirectory per hardware
	// type, each containing one YAML definition file per device.
	Path string `yaml:"path"`
}

// SnapshotConfig contains snapshot persistence settings.
type SnapshotConfig struct {
	// Root is the directory under which per-hardware-type snapshot
	// directories are created.
	Root string `yaml:"root"`
}

// DatabaseConfig contains SQLite database settings for the snapshot catalog.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for the control bus.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	QoS       int                 `yaml:"qos"`

	// TopicPrefix is prepended to every control-point topic.
	TopicPrefix string `yaml:"topic_prefix"`

	// OperationTimeout is the default per-operation timeout for control
	// points that do not specify their own (seconds, fractional allowed).
	OperationTimeout float64 `yaml:"operation_timeout"`
}

// MQTTReconnectConfig controls reconnection backoff behaviour.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
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

// InfluxDBConfig contains InfluxDB connection settings for sample recording.
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
// Environment variables follow the pattern: MACHINECORE_SECTION_KEY.
// For example: MACHINECORE_DATABASE_PATH, MACHINECORE_MQTT_HOST.
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Machine: MachineConfig{
			Name: "machine-core",
		},
		Lattice: LatticeConfig{
			Path: "./lattice",
		},
		Snapshot: SnapshotConfig{
			Root: "./snapshots",
		},
		Database: DatabaseConfig{
			Path:        "./data/machine-core.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "machine-core",
			},
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			QoS:              1,
			TopicPrefix:      "machine",
			OperationTimeout: 0.5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MACHINECORE_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MACHINECORE_LATTICE_PATH"); v != "" {
		cfg.Lattice.Path = v
	}
	if v := os.Getenv("MACHINECORE_SNAPSHOT_ROOT"); v != "" {
		cfg.Snapshot.Root = v
	}
	if v := os.Getenv("MACHINECORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("MACHINECORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MACHINECORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MACHINECORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("MACHINECORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Machine.Name == "" {
		errs = append(errs, "machine.name is required")
	}
	if len(c.Machine.Areas) == 0 {
		errs = append(errs, "machine.areas must list at least one area")
	}
	seen := make(map[string]bool, len(c.Machine.Areas))
	for _, a := range c.Machine.Areas {
		if seen[a] {
			errs = append(errs, fmt.Sprintf("machine.areas contains duplicate area %q", a))
		}
		seen[a] = true
	}

	if c.Lattice.Path == "" {
		errs = append(errs, "lattice.path is required")
	}
	if c.Snapshot.Root == "" {
		errs = append(errs, "snapshot.root is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.OperationTimeout <= 0 {
		errs = append(errs, "mqtt.operation_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetOperationTimeout returns the default control-point operation timeout
// as a Duration.
func (c *Config) GetOperationTimeout() time.Duration {
	return time.Duration(c.MQTT.OperationTimeout * float64(time.Second))
}
