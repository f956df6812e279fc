// Package tinybus adapts TinyGo I2C peripherals to the tofpanel bus interfaces.
// It has no cgo or host dependencies so it builds for microcontrollers.
package tinybus

import (
	"context"
	"fmt"

	"tinygo.org/x/drivers"

	"github.com/mklimuk/tofpanel"
)

var (
	_ tofpanel.I2CBus        = Bus{}
	_ tofpanel.AddressableTx = Bus{}
)

// Bus adapts a TinyGo I2C peripheral (machine.I2C0 etc.) to tofpanel.I2CBus.
type Bus struct {
	bus drivers.I2C
}

func New(bus drivers.I2C) Bus {
	return Bus{bus: bus}
}

func (b Bus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.TxAddr(ctx, address, buffer, nil)
}

func (b Bus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.TxAddr(ctx, address, nil, buffer)
}

func (b Bus) TxAddr(ctx context.Context, address byte, w, r []byte) error {
	if err := b.bus.Tx(uint16(address), w, r); err != nil {
		return fmt.Errorf("i2c tx %#02x: %w", address, err)
	}
	return nil
}

func (b Bus) Release(ctx context.Context) error {
	return nil
}
