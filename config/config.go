// Package config holds the panel process configuration and build metadata.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Set by the build tool via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const (
	AdapterGeneric = "generic"
	AdapterI2CDev  = "i2cdev"
	AdapterMCP2221 = "mcp2221"
	AdapterNanoPi  = "nanopi"
	AdapterMock    = "mock"
)

const (
	FormatText = "text"
	FormatCBOR = "cbor"
)

type Device struct {
	// Bus is a bus path (/dev/i2c-1) for generic and i2cdev adapters or a bus
	// number for nanopi. Ignored by mcp2221 and mock.
	Bus     string `yaml:"bus"`
	Address byte   `yaml:"address"`
}

type MQTT struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Topic    string        `yaml:"topic"`
	Format   string        `yaml:"format"`
	QoS      byte          `yaml:"qos"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Enabled reports whether telemetry publishing is configured.
func (m MQTT) Enabled() bool {
	return m.Broker != ""
}

type Config struct {
	Adapter  string        `yaml:"adapter"`
	Ranging  Device        `yaml:"ranging"`
	Display  Device        `yaml:"display"`
	Interval time.Duration `yaml:"interval"`
	MQTT     MQTT          `yaml:"mqtt"`
}

// Default mirrors the reference wiring: sensor on bus 0, display on bus 1.
func Default() Config {
	return Config{
		Adapter:  AdapterGeneric,
		Ranging:  Device{Bus: "/dev/i2c-0", Address: 0x29},
		Display:  Device{Bus: "/dev/i2c-1", Address: 0x3E},
		Interval: 500 * time.Millisecond,
		MQTT: MQTT{
			ClientID: "tofpanel",
			Topic:    "tofpanel/distance",
			Format:   FormatText,
			Timeout:  5 * time.Second,
		},
	}
}

// Load reads path on top of the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("could not open config file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("could not decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Adapter {
	case AdapterGeneric, AdapterI2CDev, AdapterMCP2221, AdapterNanoPi, AdapterMock:
	default:
		return fmt.Errorf("unknown adapter %q", c.Adapter)
	}
	for name, dev := range map[string]Device{"ranging": c.Ranging, "display": c.Display} {
		if dev.Address < 0x08 || dev.Address > 0x77 {
			return fmt.Errorf("%s address %#02x outside 7-bit range 0x08-0x77", name, dev.Address)
		}
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.MQTT.Enabled() {
		if c.MQTT.Topic == "" {
			return errors.New("mqtt topic is required when broker is set")
		}
		if c.MQTT.Format != FormatText && c.MQTT.Format != FormatCBOR {
			return fmt.Errorf("unknown mqtt payload format %q", c.MQTT.Format)
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}
	return nil
}

func (c Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("could not encode config: %w", err)
	}
	return enc.Close()
}
