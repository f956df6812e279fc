package distance

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tofpanel"
	"github.com/mklimuk/tofpanel/internal/bustest"
	"github.com/mklimuk/tofpanel/regio"
)

// MockI2CBus is a mock implementation of tofpanel.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var noSleep = tofpanel.SleeperFunc(func(ctx context.Context, d time.Duration) error { return nil })

func newSensorBus(modelID uint16, outerOffset uint16) *bustest.Bus {
	bus := bustest.NewBus()
	id := regio.Encode16(modelID)
	bus.Respond(VL53L1XDefaultAddress, []byte{0x01, 0x0F}, id[:])
	offset := regio.Encode16(outerOffset)
	bus.Respond(VL53L1XDefaultAddress, []byte{0x00, 0x22}, offset[:])
	return bus
}

func resultBlock(hi, lo byte) []byte {
	block := make([]byte, resultBlockSize)
	for i := range block {
		block[i] = 0xA5
	}
	block[13] = hi
	block[14] = lo
	return block
}

func TestVL53L1X_InitSequence(t *testing.T) {
	bus := newSensorBus(0xEACC, 25)
	s, err := NewVL53L1X(context.Background(), bus, WithSleeper(bus))
	require.NoError(t, err)
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, uint16(100), s.TimingBudget())

	configWrite := append([]byte{0x00, 0x2D}, defaultConfiguration[:]...)
	expected := []bustest.Op{
		{Kind: bustest.KindWrite, Address: 0x29, Data: []byte{0x00, 0x00, 0x00}},
		{Kind: bustest.KindSleep, Delay: 100 * time.Millisecond},
		{Kind: bustest.KindWrite, Address: 0x29, Data: []byte{0x00, 0x00, 0x01}},
		{Kind: bustest.KindSleep, Delay: time.Millisecond},
		{Kind: bustest.KindWrite, Address: 0x29, Data: []byte{0x01, 0x0F}},
		{Kind: bustest.KindRead, Address: 0x29, Data: []byte{0x01, 0x0F}, Len: 2},
		{Kind: bustest.KindWrite, Address: 0x29, Data: configWrite},
		{Kind: bustest.KindWrite, Address: 0x29, Data: []byte{0x00, 0x22}},
		{Kind: bustest.KindRead, Address: 0x29, Data: []byte{0x00, 0x22}, Len: 2},
		{Kind: bustest.KindWrite, Address: 0x29, Data: []byte{0x00, 0x1E, 0x00, 0x64}},
		{Kind: bustest.KindSleep, Delay: 200 * time.Millisecond},
	}
	assert.Equal(t, expected, bus.Ops())
}

func TestVL53L1X_ConfigurationBlockSingleTransaction(t *testing.T) {
	bus := newSensorBus(0xEACC, 0)
	_, err := NewVL53L1X(context.Background(), bus, WithSleeper(noSleep))
	require.NoError(t, err)

	var blocks int
	for _, w := range bus.Writes(0x29) {
		if bytes.HasPrefix(w, []byte{0x00, 0x2D}) {
			blocks++
			assert.Len(t, w, 2+91)
		}
	}
	assert.Equal(t, 1, blocks)
	assert.Len(t, ConfigurationBlock(), 91)
}

func TestVL53L1X_WrongModelID(t *testing.T) {
	tests := []struct {
		name    string
		modelID uint16
	}{
		{"no chip pulled high", 0xFFFF},
		{"no chip pulled low", 0x0000},
		{"other st sensor", 0xEEAA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newSensorBus(tt.modelID, 25)
			s, err := NewVL53L1X(context.Background(), bus, WithSleeper(bus))
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrDeviceNotFound)

			var notFound *DeviceNotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, tt.modelID, notFound.ModelID)
			assert.Equal(t, byte(0x29), notFound.Address)

			for _, w := range bus.Writes(0x29) {
				assert.False(t, bytes.HasPrefix(w, []byte{0x00, 0x2D}), "configuration block must not be written")
				assert.False(t, bytes.HasPrefix(w, []byte{0x00, 0x22}), "calibration must not be read")
			}
			assert.NotContains(t, bus.Sleeps(), 200*time.Millisecond)
		})
	}
}

func TestVL53L1X_CustomAddressAndDelays(t *testing.T) {
	bus := bustest.NewBus()
	bus.Respond(0x30, []byte{0x01, 0x0F}, []byte{0xEA, 0xCC})
	bus.Respond(0x30, []byte{0x00, 0x22}, []byte{0x00, 0x01})
	s, err := NewVL53L1X(context.Background(), bus,
		WithAddress(0x30),
		WithSleeper(bus),
		WithResetSettle(5*time.Millisecond),
		WithBootSettle(2*time.Millisecond),
		WithReadySettle(7*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, byte(0x30), s.Address())
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 2 * time.Millisecond, 7 * time.Millisecond}, bus.Sleeps())
	assert.Empty(t, bus.Writes(0x29))
}

func TestVL53L1X_TimingBudgetWraps(t *testing.T) {
	bus := newSensorBus(0xEACC, 0x4001)
	s, err := NewVL53L1X(context.Background(), bus, WithSleeper(noSleep))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0004), s.TimingBudget())
}

func TestVL53L1X_Read(t *testing.T) {
	bus := newSensorBus(0xEACC, 25)
	s, err := NewVL53L1X(context.Background(), bus, WithSleeper(noSleep))
	require.NoError(t, err)
	bus.Reset()
	bus.Respond(0x29, []byte{0x00, 0x89}, resultBlock(0x01, 0x2C))

	mm, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(300), mm)

	ops := bus.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, []byte{0x00, 0x89}, ops[0].Data)
	assert.Equal(t, 17, ops[1].Len)
}

func TestVL53L1X_ReadShortBlock(t *testing.T) {
	bus := newSensorBus(0xEACC, 25)
	s, err := NewVL53L1X(context.Background(), bus, WithSleeper(noSleep))
	require.NoError(t, err)
	bus.Respond(0x29, []byte{0x00, 0x89}, []byte{0x00, 0x01, 0x02})

	_, err = s.Read(context.Background())
	assert.ErrorIs(t, err, tofpanel.ErrShortRead)
	var busErr *regio.BusError
	assert.ErrorAs(t, err, &busErr)
}

func TestDecodeRange(t *testing.T) {
	tests := []struct {
		name     string
		given    []byte
		expected uint16
	}{
		{"zero", resultBlock(0x00, 0x00), 0},
		{"300mm", resultBlock(0x01, 0x2C), 300},
		{"max", resultBlock(0xFF, 0xFF), 0xFFFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mm, err := decodeRange(tt.given)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, mm)
		})
	}
	_, err := decodeRange(make([]byte, 16))
	assert.ErrorIs(t, err, tofpanel.ErrShortRead)
}

func TestVL53L1X_ResetWriteFails(t *testing.T) {
	nack := errors.New("address not acknowledged")
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(0x29), []byte{0x00, 0x00, 0x00}).Return(nack).Once()

	s, err := NewVL53L1X(context.Background(), bus, WithSleeper(noSleep))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, nack)
	var busErr *regio.BusError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, uint16(0x0000), busErr.Register)
	assert.NotErrorIs(t, err, ErrDeviceNotFound)
	bus.AssertExpectations(t)
	bus.AssertNumberOfCalls(t, "WriteToAddr", 1)
}

func TestVL53L1X_ModelIDReadFails(t *testing.T) {
	timeout := errors.New("timeout")
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(0x29), mock.Anything).Return(nil)
	bus.On("ReadFromAddr", mock.Anything, byte(0x29), mock.Anything).Return(nil, timeout).Once()

	_, err := NewVL53L1X(context.Background(), bus, WithSleeper(noSleep))
	assert.ErrorIs(t, err, timeout)
	assert.NotErrorIs(t, err, ErrDeviceNotFound)
	bus.AssertNumberOfCalls(t, "WriteToAddr", 3)
}

func TestVL53L1X_ConfigurationWriteFails(t *testing.T) {
	nack := errors.New("nack")
	bus := newSensorBus(0xEACC, 25)
	bus.FailWhen = func(op bustest.Op) error {
		if op.Kind == bustest.KindWrite && bytes.HasPrefix(op.Data, []byte{0x00, 0x2D}) {
			return nack
		}
		return nil
	}
	_, err := NewVL53L1X(context.Background(), bus, WithSleeper(bus))
	assert.ErrorIs(t, err, nack)
	for _, w := range bus.Writes(0x29) {
		assert.False(t, bytes.HasPrefix(w, []byte{0x00, 0x1E}), "timing budget must not be written")
	}
}

func TestVL53L1X_CancelledDuringReset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus := newSensorBus(0xEACC, 25)
	_, err := NewVL53L1X(ctx, bus)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, bus.Writes(0x29), 1)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "identity verified", StateIdentityVerified.String())
	assert.Equal(t, "unknown", State(42).String())
}
