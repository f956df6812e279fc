package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/tofpanel"
	"github.com/mklimuk/tofpanel/panelctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// HID report codes
const (
	reportStatus       = 0x10
	reportI2CWrite     = 0x90
	reportI2CRead      = 0x91
	reportI2CGetData   = 0x40
	statusCancelI2C    = 0x10
	respEngineBusy     = 0x01
	respReadError      = 0x41
	reportSize         = 64
	maxTransferPayload = reportSize - 4
	maxTransferLength  = 0xFFFF
	writeRetries       = 5
)

var ErrCommandFailed = errors.New("command failed")
var ErrDeviceNotFound = errors.New("MCP2221 device not found")

var _ tofpanel.I2CBus = &MCP2221{}

// MCP2221 is a Microchip MCP2221(A) USB to I2C bridge driven over HID reports.
type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
	busyBackoff  time.Duration
	id           int
	// exchange sends request and fills response with the bridge reply.
	exchange func(ctx context.Context) error
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

func NewMCP2221() *MCP2221 {
	d := &MCP2221{
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
		busyBackoff:  300 * time.Microsecond,
	}
	d.exchange = d.exchangeHID
	return d
}

// Enumerate lists attached MCP2221 bridges.
func Enumerate() []hid.DeviceInfo {
	return hid.Enumerate(VendorID, ProductID)
}

// Init selects the bridge to use. With no id exactly one bridge must be attached.
func (d *MCP2221) Init(id ...int) error {
	devs := Enumerate()
	if len(devs) == 0 {
		return ErrDeviceNotFound
	}
	if len(id) == 0 {
		if len(devs) > 1 {
			return fmt.Errorf("ambiguous device identification: %d bridges attached", len(devs))
		}
		d.id = 0
		return nil
	}
	if id[0] < 0 || id[0] >= len(devs) {
		return fmt.Errorf("no device with id %d", id[0])
	}
	d.id = id[0]
	return nil
}

// WriteToAddr sends buffer as one I2C transfer. Payloads longer than a
// report are split across reports that all carry the total length, so the
// engine keeps the transfer open until the last byte.
func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > maxTransferLength {
		return fmt.Errorf("write to %#02x: %d bytes exceeds transfer limit of %d", address, len(buffer), maxTransferLength)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	pos := 0
	for {
		end := min(pos+maxTransferPayload, len(buffer))
		if err := d.writeChunk(ctx, address, len(buffer), buffer[pos:end]); err != nil {
			return fmt.Errorf("write to %#02x failed at byte %d of %d: %w", address, pos, len(buffer), err)
		}
		pos = end
		if pos >= len(buffer) {
			return nil
		}
	}
}

// writeChunk resends the report while the engine reports busy with the
// previous chunk.
func (d *MCP2221) writeChunk(ctx context.Context, address byte, total int, chunk []byte) error {
	for attempt := 0; attempt < writeRetries; attempt++ {
		d.resetBuffers()
		encodeTransfer(d.request, reportI2CWrite, address<<1, total)
		copy(d.request[4:], chunk)
		if err := d.send(ctx); err != nil {
			return err
		}
		if d.response[1] != respEngineBusy {
			return nil
		}
		slog.DebugContext(ctx, "mcp2221 busy", "address", address, "attempt", attempt+1)
		if err := tofpanel.TimerSleeper.Sleep(ctx, d.busyBackoff); err != nil {
			return err
		}
	}
	return tofpanel.ErrBusBusy
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > maxTransferPayload {
		return fmt.Errorf("read from %#02x: %d bytes exceeds single report payload of %d", address, len(buffer), maxTransferPayload)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	encodeTransfer(d.request, reportI2CRead, address<<1+1, len(buffer))
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %#02x failed: %w", address, err)
	}
	d.resetBuffers()
	d.request[0] = reportI2CGetData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == respReadError {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	if d.response[3] == 127 {
		return fmt.Errorf("invalid data size byte from %#02x", address)
	}
	if int(d.response[3]) < len(buffer) {
		return fmt.Errorf("read %d of %d bytes from %#02x: %w", d.response[3], len(buffer), address, tofpanel.ErrShortRead)
	}
	copy(buffer, d.response[4:])
	return nil
}

func encodeTransfer(request []byte, code byte, addressByte byte, length int) {
	request[0] = code
	binary.LittleEndian.PutUint16(request[1:3], uint16(length))
	request[3] = addressByte
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = reportStatus
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

// Release cancels a pending transfer and frees the bus.
func (d *MCP2221) Release(ctx context.Context) error {
	_, err := d.ReleaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = reportStatus
	d.request[2] = statusCancelI2C
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) send(ctx context.Context) error {
	return d.exchange(ctx)
}

func (d *MCP2221) exchangeHID(ctx context.Context) error {
	devs := Enumerate()
	if len(devs) <= d.id {
		return ErrDeviceNotFound
	}
	dev, err := devs[d.id].Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.WarnContext(ctx, "could not close mcp2221 handle", "error", err)
		}
	}()
	verbose := panelctx.IsVerbose(ctx)
	if verbose {
		slog.DebugContext(ctx, "sending message to adapter", "report", hex.Dump(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	timer := time.NewTimer(d.responseWait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		slog.DebugContext(ctx, "read message from adapter", "report", hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}
