package adapter

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tofpanel"
	"github.com/mklimuk/tofpanel/distance"
)

func TestBufferToStatus(t *testing.T) {
	buf := make([]byte, reportSize)
	buf[9], buf[10] = 0x11, 0x00
	buf[11], buf[12] = 0x05, 0x00
	buf[13] = 3
	buf[14] = 0x75
	buf[15] = 0x20
	buf[16], buf[17] = 0x52, 0x00
	buf[25] = 1

	status := bufferToStatus(buf)
	assert.Equal(t, &MCP2221Status{
		I2CDataBufferCounter:   3,
		I2CSpeedDivider:        0x75,
		I2CTimeout:             0x20,
		CurrentAddress:         "5200",
		LastWriteRequestedSize: 17,
		LastWriteSentSize:      5,
		ReadPending:            1,
	}, status)
}

func TestEncodeTransfer(t *testing.T) {
	req := make([]byte, reportSize)
	encodeTransfer(req, reportI2CRead, 0x29<<1+1, 17)
	assert.Equal(t, []byte{0x91, 17, 0x00, 0x53}, req[:4])

	encodeTransfer(req, reportI2CWrite, 0x3E<<1, 2)
	assert.Equal(t, []byte{0x90, 2, 0x00, 0x7C}, req[:4])
}

// fakeBridge stands in for the HID link. It records every request report and
// emulates a register-pointer device behind the bridge: a completed write sets
// the pointer, reads answer from registers[pointer].
type fakeBridge struct {
	reports   [][]byte
	transfers [][]byte
	registers map[string][]byte
	// busy answers that many write reports with the engine busy code
	busy int
	err  error

	pending  []byte
	total    int
	pointer  []byte
	readSize int
}

func newFakeBridge(t *testing.T) (*MCP2221, *fakeBridge) {
	t.Helper()
	f := &fakeBridge{registers: make(map[string][]byte)}
	d := NewMCP2221()
	d.busyBackoff = 0
	d.exchange = func(ctx context.Context) error {
		return f.exchange(d.request, d.response)
	}
	return d, f
}

func (f *fakeBridge) exchange(request, response []byte) error {
	f.reports = append(f.reports, bytes.Clone(request))
	if f.err != nil {
		return f.err
	}
	response[0] = request[0]
	switch request[0] {
	case reportI2CWrite:
		if f.busy > 0 {
			f.busy--
			response[1] = respEngineBusy
			return nil
		}
		total := int(request[1]) | int(request[2])<<8
		if f.pending == nil {
			f.total = total
		}
		n := min(maxTransferPayload, f.total-len(f.pending))
		f.pending = append(f.pending, request[4:4+n]...)
		if len(f.pending) == f.total {
			f.transfers = append(f.transfers, f.pending)
			f.pointer = f.pending
			f.pending = nil
		}
	case reportI2CRead:
		f.readSize = int(request[1])
	case reportI2CGetData:
		data := f.registers[string(f.pointer)]
		response[3] = byte(f.readSize)
		copy(response[4:4+f.readSize], data)
	}
	return nil
}

func TestMCP2221_WriteSplitsAcrossReports(t *testing.T) {
	d, f := newFakeBridge(t)
	payload := append([]byte{0x00, 0x2D}, distance.ConfigurationBlock()...)
	require.Len(t, payload, 93)

	require.NoError(t, d.WriteToAddr(context.Background(), 0x29, payload))

	require.Len(t, f.reports, 2)
	first := append([]byte{0x90, 93, 0x00, 0x52}, payload[:60]...)
	assert.Equal(t, first, f.reports[0])
	second := make([]byte, reportSize)
	copy(second, []byte{0x90, 93, 0x00, 0x52})
	copy(second[4:], payload[60:])
	assert.Equal(t, second, f.reports[1])
	assert.Equal(t, [][]byte{payload}, f.transfers)
}

func TestMCP2221_WriteSingleReport(t *testing.T) {
	d, f := newFakeBridge(t)
	require.NoError(t, d.WriteToAddr(context.Background(), 0x3E, []byte{0x40, 'A'}))
	require.Len(t, f.reports, 1)
	assert.Equal(t, []byte{0x90, 2, 0x00, 0x7C, 0x40, 'A'}, f.reports[0][:6])
}

func TestMCP2221_WriteRetriesWhileBusy(t *testing.T) {
	d, f := newFakeBridge(t)
	f.busy = 2
	require.NoError(t, d.WriteToAddr(context.Background(), 0x3E, []byte{0x00, 0x38}))
	assert.Len(t, f.reports, 3)
	assert.Equal(t, [][]byte{{0x00, 0x38}}, f.transfers)
}

func TestMCP2221_WriteBusyGivesUp(t *testing.T) {
	d, f := newFakeBridge(t)
	f.busy = writeRetries
	err := d.WriteToAddr(context.Background(), 0x3E, []byte{0x00, 0x38})
	assert.ErrorIs(t, err, tofpanel.ErrBusBusy)
	assert.Len(t, f.reports, writeRetries)
}

func TestMCP2221_WriteErrorStopsTransfer(t *testing.T) {
	d, f := newFakeBridge(t)
	f.err = errors.New("usb gone")
	err := d.WriteToAddr(context.Background(), 0x29, make([]byte, 93))
	assert.ErrorIs(t, err, f.err)
	assert.Len(t, f.reports, 1)
}

func TestMCP2221_WriteTooLong(t *testing.T) {
	d, f := newFakeBridge(t)
	err := d.WriteToAddr(context.Background(), 0x29, make([]byte, maxTransferLength+1))
	assert.Error(t, err)
	assert.Empty(t, f.reports)
}

func TestMCP2221_ReadShort(t *testing.T) {
	d, f := newFakeBridge(t)
	f.readSize = 1
	d.exchange = func(ctx context.Context) error {
		if err := f.exchange(d.request, d.response); err != nil {
			return err
		}
		if d.request[0] == reportI2CGetData {
			d.response[3] = 1
		}
		return nil
	}
	err := d.ReadFromAddr(context.Background(), 0x29, make([]byte, 2))
	assert.ErrorIs(t, err, tofpanel.ErrShortRead)
}

func TestMCP2221_VL53L1XBringUp(t *testing.T) {
	d, f := newFakeBridge(t)
	f.registers[string([]byte{0x01, 0x0F})] = []byte{0xEA, 0xCC}
	f.registers[string([]byte{0x00, 0x22})] = []byte{0x00, 0x10}
	result := make([]byte, 17)
	result[13], result[14] = 0x01, 0x2C
	f.registers[string([]byte{0x00, 0x89})] = result

	noSleep := tofpanel.SleeperFunc(func(ctx context.Context, d time.Duration) error { return nil })
	s, err := distance.NewVL53L1X(context.Background(), d, distance.WithSleeper(noSleep))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x40), s.TimingBudget())
	assert.Contains(t, f.transfers, append([]byte{0x00, 0x2D}, distance.ConfigurationBlock()...))

	mm, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(300), mm)
}
