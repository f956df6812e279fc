//go:build tinygo

// Firmware for a Raspberry Pi Pico with the ranging sensor on I2C0 (GP0/GP1)
// and the character display on I2C1 (GP2/GP3).
package main

import (
	"context"
	"log/slog"
	"machine"
	"time"

	"github.com/mklimuk/tofpanel"
	"github.com/mklimuk/tofpanel/adapter/tinybus"
	"github.com/mklimuk/tofpanel/display"
	"github.com/mklimuk/tofpanel/distance"
	"github.com/mklimuk/tofpanel/panel"
)

const busFrequency = 100 * machine.KHz

func main() {
	ctx := context.Background()

	bus0 := configure(machine.I2C0, machine.GP0, machine.GP1)
	sensor, err := distance.NewVL53L1X(ctx, bus0)
	if err != nil {
		halt("ranging sensor initialization error", err)
	}
	scan(ctx, "i2c0", bus0)

	bus1 := configure(machine.I2C1, machine.GP2, machine.GP3)
	scan(ctx, "i2c1", bus1)
	lcd, err := display.NewAQM1602(ctx, bus1)
	if err != nil {
		halt("display initialization error", err)
	}

	if err := panel.New(sensor, lcd).Run(ctx); err != nil {
		halt("panel stopped", err)
	}
}

func configure(i2c *machine.I2C, sda, scl machine.Pin) tinybus.Bus {
	err := i2c.Configure(machine.I2CConfig{
		Frequency: busFrequency,
		SDA:       sda,
		SCL:       scl,
	})
	if err != nil {
		halt("could not configure i2c", err)
	}
	return tinybus.New(i2c)
}

func scan(ctx context.Context, name string, bus tofpanel.AddressableReader) {
	found, err := tofpanel.Scan(ctx, bus)
	if err != nil {
		slog.Warn("scan interrupted", "bus", name, "error", err)
		return
	}
	slog.Info("scan result", "bus", name, "addresses", found)
}

// halt keeps reporting the fatal error on the serial console.
func halt(msg string, err error) {
	for {
		slog.Error(msg, "error", err)
		time.Sleep(5 * time.Second)
	}
}
