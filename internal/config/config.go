// Package config loads the nubertctl configuration file: YAML with tagged
// defaults, environment overrides for MQTT credentials, and validation.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Duration decodes YAML durations written as strings ("60s", "2m") or bare
// integer seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var secs int64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration: %s", value.Value)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// D returns the wrapped time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MQTT holds broker connection settings for the Home Assistant bridge.
type MQTT struct {
	Broker          string `yaml:"broker"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	ClientID        string `yaml:"client_id" default:"nubertctl"`
	BaseTopic       string `yaml:"base_topic" default:"nubert"`
	DiscoveryPrefix string `yaml:"discovery_prefix" default:"homeassistant"`
}

// DeviceConfig names one Nubert device to manage.
type DeviceConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// Config holds application configuration.
type Config struct {
	LogLevel       string         `yaml:"log_level" default:"info"`
	Adapter        string         `yaml:"adapter" default:"default"`
	MQTT           MQTT           `yaml:"mqtt"`
	Devices        []DeviceConfig `yaml:"devices"`
	UpdateInterval Duration       `yaml:"update_interval"`
}

// Default returns the configuration with all tagged defaults applied and no
// devices.
func Default() *Config {
	cfg := &Config{
		UpdateInterval: Duration(60 * time.Second),
	}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads the YAML config at path, applies defaults first so omitted keys
// keep their documented values, and rejects unknown keys. A `.env` file next
// to the working directory is honored before environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes raw YAML config bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads a .env file if present; a missing file is not an error.
func LoadEnvFile() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
}

// applyEnvOverrides lets MQTT credentials come from the environment so the
// config file can stay secret-free.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NUBERT_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("NUBERT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("NUBERT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
}

// Validate checks the loaded configuration for the serve command.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.UpdateInterval.D() <= 0 {
		return fmt.Errorf("update_interval must be positive, got %s", c.UpdateInterval)
	}

	seen := make(map[string]struct{}, len(c.Devices))
	for i, dev := range c.Devices {
		if dev.Address == "" {
			return fmt.Errorf("devices[%d]: address is required", i)
		}
		if _, dup := seen[dev.Address]; dup {
			return fmt.Errorf("devices[%d]: duplicate address %q", i, dev.Address)
		}
		seen[dev.Address] = struct{}{}
	}
	return nil
}

// ValidateServe additionally requires what the bridge needs.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required for serve")
	}
	if len(c.Devices) == 0 {
		return fmt.Errorf("at least one device is required for serve")
	}
	return nil
}

// Level returns the parsed log level; Validate guarantees it parses.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a logger configured per this config.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}
