package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.MQTT.Enabled())
}

func TestDecode_Overrides(t *testing.T) {
	in := `
adapter: i2cdev
ranging:
  bus: /dev/i2c-3
  address: 0x30
interval: 250ms
mqtt:
  broker: tcp://localhost:1883
  format: cbor
  qos: 1
`
	cfg, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, AdapterI2CDev, cfg.Adapter)
	assert.Equal(t, Device{Bus: "/dev/i2c-3", Address: 0x30}, cfg.Ranging)
	assert.Equal(t, Default().Display, cfg.Display)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, "tofpanel/distance", cfg.MQTT.Topic)
	assert.Equal(t, FormatCBOR, cfg.MQTT.Format)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unknown adapter", "adapter: serial\n"},
		{"reserved address", "display:\n  address: 0x03\n"},
		{"zero interval", "interval: 0s\n"},
		{"bad format", "mqtt:\n  broker: tcp://b:1883\n  format: json\n"},
		{"bad qos", "mqtt:\n  broker: tcp://b:1883\n  qos: 3\n"},
		{"unknown field", "speed: 100\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapter: mock\n"), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, AdapterMock, cfg.Adapter)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEncode_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Adapter = AdapterNanoPi
	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	assert.Contains(t, buf.String(), "adapter: nanopi")

	back, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
