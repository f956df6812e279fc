//go:build integration

package distance_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tofpanel/distance"
	"github.com/mklimuk/tofpanel/i2c"
)

// Requires a VL53L1X on TOFPANEL_RANGING_BUS, e.g. /dev/i2c-1.
func TestVL53L1X_Hardware(t *testing.T) {
	dev := os.Getenv("TOFPANEL_RANGING_BUS")
	if dev == "" {
		t.Skip("TOFPANEL_RANGING_BUS not set")
	}
	bus, err := i2c.NewGenericBus(dev)
	require.NoError(t, err)
	defer func() { _ = bus.Close() }()

	ctx := context.Background()
	s, err := distance.NewVL53L1X(ctx, bus)
	require.NoError(t, err)
	assert.Equal(t, distance.StateReady, s.State())
	for i := 0; i < 5; i++ {
		mm, err := s.Read(ctx)
		require.NoError(t, err)
		t.Logf("range: %dmm", mm)
	}
}
