// Package regio frames register reads and writes for I2C devices that use a
// register pointer followed by payload bytes.
package regio

import (
	"context"
	"errors"
	"fmt"

	"github.com/mklimuk/tofpanel"
)

// AddrWidth is the register address width of a device class.
type AddrWidth int

const (
	Addr8  AddrWidth = 8
	Addr16 AddrWidth = 16
)

func (w AddrWidth) String() string {
	switch w {
	case Addr8:
		return "8-bit"
	case Addr16:
		return "16-bit"
	default:
		return fmt.Sprintf("AddrWidth(%d)", int(w))
	}
}

// size is the number of bytes the register address occupies on the wire.
func (w AddrWidth) size() int {
	return int(w) / 8
}

var ErrRegisterWidth = errors.New("register address does not fit device address width")

// BusError wraps any transport failure during a register transaction.
type BusError struct {
	Address  byte
	Register uint16
	Op       string
	Err      error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("i2c %s %#02x reg %#04x: %v", e.Op, e.Address, e.Register, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// Device is a register-addressed slave on a bus. Address and width are fixed
// for the lifetime of the handle.
type Device struct {
	bus     tofpanel.I2CBus
	address byte
	width   AddrWidth
}

func NewDevice(bus tofpanel.I2CBus, address byte, width AddrWidth) *Device {
	return &Device{bus: bus, address: address, width: width}
}

func (d *Device) Address() byte {
	return d.address
}

func (d *Device) Width() AddrWidth {
	return d.width
}

func (d *Device) pointer(reg uint16) ([]byte, error) {
	switch d.width {
	case Addr8:
		if reg > 0xFF {
			return nil, fmt.Errorf("%w: %#04x is not %s", ErrRegisterWidth, reg, d.width)
		}
		return []byte{byte(reg)}, nil
	case Addr16:
		b := Encode16(reg)
		return b[:], nil
	default:
		return nil, fmt.Errorf("%w: unsupported %s", ErrRegisterWidth, d.width)
	}
}

// Write sends the register pointer and payload in a single transaction.
func (d *Device) Write(ctx context.Context, reg uint16, payload []byte) error {
	ptr, err := d.pointer(reg)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(ptr)+len(payload))
	buf = append(buf, ptr...)
	buf = append(buf, payload...)
	if err := d.bus.WriteToAddr(ctx, d.address, buf); err != nil {
		return &BusError{Address: d.address, Register: reg, Op: "write", Err: err}
	}
	return nil
}

func (d *Device) WriteUint8(ctx context.Context, reg uint16, value byte) error {
	return d.Write(ctx, reg, []byte{value})
}

func (d *Device) WriteUint16(ctx context.Context, reg uint16, value uint16) error {
	b := Encode16(value)
	return d.Write(ctx, reg, b[:])
}

// Read sets the register pointer and reads n bytes back. Buses implementing
// tofpanel.AddressableTx do it with a repeated start.
func (d *Device) Read(ctx context.Context, reg uint16, n int) ([]byte, error) {
	ptr, err := d.pointer(reg)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if tx, ok := d.bus.(tofpanel.AddressableTx); ok {
		if err := tx.TxAddr(ctx, d.address, ptr, buf); err != nil {
			return nil, &BusError{Address: d.address, Register: reg, Op: "read", Err: err}
		}
		return buf, nil
	}
	if err := d.bus.WriteToAddr(ctx, d.address, ptr); err != nil {
		return nil, &BusError{Address: d.address, Register: reg, Op: "set pointer", Err: err}
	}
	if err := d.bus.ReadFromAddr(ctx, d.address, buf); err != nil {
		return nil, &BusError{Address: d.address, Register: reg, Op: "read", Err: err}
	}
	return buf, nil
}

func (d *Device) ReadUint16(ctx context.Context, reg uint16) (uint16, error) {
	buf, err := d.Read(ctx, reg, 2)
	if err != nil {
		return 0, err
	}
	v, err := Decode16(buf)
	if err != nil {
		return 0, &BusError{Address: d.address, Register: reg, Op: "read", Err: err}
	}
	return v, nil
}

// Encode16 splits v into big-endian wire order.
func Encode16(v uint16) [2]byte {
	return [2]byte{byte(v >> 8), byte(v)}
}

// Decode16 joins the first two bytes of b, big-endian.
func Decode16(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, tofpanel.ErrShortRead
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}
