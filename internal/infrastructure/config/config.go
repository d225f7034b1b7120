package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the root configuration structure for nodebus.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Pool      PoolConfig      `yaml:"pool"`
	Receivers ReceiversConfig `yaml:"receivers"`
	Commands  []CommandConfig `yaml:"commands"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BrokerConfig contains MQTT broker connection settings.
type BrokerConfig struct {
	// Address is "host:port". A missing or non-numeric port means 1883.
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// ClientIDPrefix names pool connections "<prefix>_<i>".
	ClientIDPrefix string `yaml:"client_id_prefix"`
}

// PoolConfig contains outbound connection pool settings.
type PoolConfig struct {
	Size          int `yaml:"size"`
	SettleDelayMS int `yaml:"settle_delay_ms"`
}

// ReceiversConfig contains inbound subscription settings.
type ReceiversConfig struct {
	// StateTopic carries state-change and register messages.
	StateTopic string `yaml:"state_topic"`

	// Topics are extra topics subscribed with their own receiver; their
	// payloads are logged.
	Topics []string `yaml:"topics"`
}

// CommandConfig defines one named outbound command.
type CommandConfig struct {
	Name   string             `yaml:"name"`
	Topic  string             `yaml:"topic"`
	Params map[string]float64 `yaml:"params"`
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
// Environment variables follow the pattern: NODEBUS_SECTION_KEY
// For example: NODEBUS_BROKER_ADDRESS, NODEBUS_POOL_SIZE
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Address:        "127.0.0.1:1883",
			ClientIDPrefix: "dt_client",
		},
		Pool: PoolConfig{
			Size:          10,
			SettleDelayMS: 100,
		},
		Receivers: ReceiversConfig{
			StateTopic: "server/0",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	// Broker
	if v := os.Getenv("NODEBUS_BROKER_ADDRESS"); v != "" {
		cfg.Broker.Address = v
	}
	if v := os.Getenv("NODEBUS_BROKER_USERNAME"); v != "" {
		cfg.Broker.Username = v
	}
	if v := os.Getenv("NODEBUS_BROKER_PASSWORD"); v != "" {
		cfg.Broker.Password = v
	}

	// Pool
	if v := os.Getenv("NODEBUS_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing NODEBUS_POOL_SIZE: %w", err)
		}
		cfg.Pool.Size = n
	}

	// Receivers
	if v := os.Getenv("NODEBUS_STATE_TOPIC"); v != "" {
		cfg.Receivers.StateTopic = v
	}

	// InfluxDB
	if v := os.Getenv("NODEBUS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Broker.Address == "" {
		errs = append(errs, "broker.address is required")
	}

	if c.Pool.Size < 1 {
		errs = append(errs, "pool.size must be at least 1")
	}
	if c.Pool.SettleDelayMS < 0 {
		errs = append(errs, "pool.settle_delay_ms must not be negative")
	}

	if c.Receivers.StateTopic == "" {
		errs = append(errs, "receivers.state_topic is required")
	}
	for i, topic := range c.Receivers.Topics {
		if topic == "" {
			errs = append(errs, fmt.Sprintf("receivers.topics[%d] is empty", i))
		}
	}

	seen := make(map[string]bool, len(c.Commands))
	for i, cmd := range c.Commands {
		switch {
		case cmd.Name == "":
			errs = append(errs, fmt.Sprintf("commands[%d].name is required", i))
		case seen[cmd.Name]:
			errs = append(errs, fmt.Sprintf("commands[%d].name %q is duplicated", i, cmd.Name))
		}
		seen[cmd.Name] = true
		if cmd.Topic == "" {
			errs = append(errs, fmt.Sprintf("commands[%d].topic is required", i))
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}

	return nil
}

// SettleDelay returns the pool settle delay as a Duration.
// Zero disables the settle wait.
func (c *Config) SettleDelay() time.Duration {
	if c.Pool.SettleDelayMS == 0 {
		return -1
	}
	return time.Duration(c.Pool.SettleDelayMS) * time.Millisecond
}
