package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/tofpanel"
	"github.com/mklimuk/tofpanel/adapter"
	"github.com/mklimuk/tofpanel/config"
	"github.com/mklimuk/tofpanel/display"
	"github.com/mklimuk/tofpanel/distance"
	"github.com/mklimuk/tofpanel/i2c"
	"github.com/mklimuk/tofpanel/panel"
)

const busSpeed = 100 * physic.KiloHertz

var errMockAdapter = errors.New("no bus with the mock adapter")

// buses opens each physical bus once so that devices sharing a bus (or a
// single MCP2221 bridge) share the handle.
type buses struct {
	adapter string
	open    map[string]tofpanel.I2CBus
}

func newBuses(adapterName string) *buses {
	return &buses{adapter: adapterName, open: make(map[string]tofpanel.I2CBus)}
}

func (b *buses) get(path string) (tofpanel.I2CBus, error) {
	key := path
	if b.adapter == config.AdapterMCP2221 {
		key = ""
	}
	if bus, ok := b.open[key]; ok {
		return bus, nil
	}
	bus, err := openBus(b.adapter, path)
	if err != nil {
		return nil, err
	}
	b.open[key] = bus
	return bus, nil
}

func (b *buses) Close() error {
	var errs []error
	for key, bus := range b.open {
		if c, ok := bus.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("could not close bus %s: %w", key, err))
			}
		}
		delete(b.open, key)
	}
	return errors.Join(errs...)
}

func openBus(adapterName, path string) (tofpanel.I2CBus, error) {
	switch adapterName {
	case config.AdapterGeneric:
		bus, err := i2c.NewGenericBus(path)
		if err != nil {
			return nil, err
		}
		if err := bus.SetSpeed(busSpeed); err != nil {
			slog.Warn("could not set bus speed", "bus", path, "speed", busSpeed, "error", err)
		}
		return bus, nil
	case config.AdapterI2CDev:
		return i2c.NewDevBus(path), nil
	case config.AdapterMCP2221:
		a := adapter.NewMCP2221()
		if err := a.Init(); err != nil {
			return nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		return a, nil
	case config.AdapterNanoPi:
		nr, err := strconv.Atoi(path)
		if err != nil {
			return nil, fmt.Errorf("nanopi bus must be a bus number, got %q", path)
		}
		return adapter.NewNanoPiBus(nr)
	case config.AdapterMock:
		return nil, errMockAdapter
	}
	return nil, fmt.Errorf("unknown adapter %q", adapterName)
}

func openSensor(ctx context.Context, b *buses, cfg config.Config) (panel.DistanceReader, error) {
	if cfg.Adapter == config.AdapterMock {
		return mockSensor(), nil
	}
	bus, err := b.get(cfg.Ranging.Bus)
	if err != nil {
		return nil, err
	}
	s, err := distance.NewVL53L1X(ctx, bus, distance.WithAddress(cfg.Ranging.Address))
	if err != nil {
		return nil, fmt.Errorf("ranging sensor initialization error: %w", err)
	}
	slog.InfoContext(ctx, "ranging sensor ready", "bus", cfg.Ranging.Bus, "address", fmt.Sprintf("%#02x", s.Address()))
	return s, nil
}

// lineDisplay is what the CLI needs from either the real or the mock display.
type lineDisplay interface {
	Print(ctx context.Context, line int, s string) error
	Clear(ctx context.Context) error
}

func openDisplay(ctx context.Context, b *buses, cfg config.Config) (lineDisplay, error) {
	if cfg.Adapter == config.AdapterMock {
		d := display.NewMockLineDisplay()
		d.OnPrint = func(line int, text string) {
			slog.Debug("display", "line", line, "text", text)
		}
		return d, nil
	}
	bus, err := b.get(cfg.Display.Bus)
	if err != nil {
		return nil, err
	}
	d, err := display.NewAQM1602(ctx, bus, display.WithAddress(cfg.Display.Address))
	if err != nil {
		return nil, fmt.Errorf("display initialization error: %w", err)
	}
	slog.InfoContext(ctx, "display ready", "bus", cfg.Display.Bus, "address", fmt.Sprintf("%#02x", d.Address()))
	return d, nil
}

// mockSensor reports a target sweeping between 50mm and 1250mm.
func mockSensor() *distance.MockDistanceSensor {
	start := time.Now()
	return distance.NewMockVL53L1X(func(ctx context.Context) (uint16, error) {
		phase := time.Since(start).Seconds() / 10 * 2 * math.Pi
		return uint16(650 + 600*math.Sin(phase)), nil
	})
}
