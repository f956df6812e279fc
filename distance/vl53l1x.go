package distance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mklimuk/tofpanel"
	"github.com/mklimuk/tofpanel/panelctx"
	"github.com/mklimuk/tofpanel/regio"
)

const VL53L1XDefaultAddress = 0x29

const vl53l1xModelID uint16 = 0xEACC

// Register map (16-bit addresses)
const (
	regSoftReset             uint16 = 0x0000
	regPartToPartRangeOffset uint16 = 0x001E
	regOuterOffset           uint16 = 0x0022
	regConfigBase            uint16 = 0x002D
	regResultRangeStatus     uint16 = 0x0089
	regModelID               uint16 = 0x010F
)

// Result block layout read from regResultRangeStatus. The final crosstalk
// corrected range of SD0 sits at bytes 13..14.
const (
	resultBlockSize = 17
	resultRangeMM   = 13
)

const (
	ResetSettle = 100 * time.Millisecond
	BootSettle  = 1 * time.Millisecond
	ReadySettle = 200 * time.Millisecond
)

// defaultConfiguration is uploaded verbatim starting at regConfigBase. It
// enables continuous ranging; the layout packs several logical registers and
// has to be written in one transaction.
var defaultConfiguration = [91]byte{
	0x00, 0x00, 0x00, 0x01, 0x02, 0x00, 0x02, 0x08,
	0x00, 0x08, 0x10, 0x01, 0x01, 0x00, 0x00, 0x00,
	0x00, 0xff, 0x00, 0x0F, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x20, 0x0b, 0x00, 0x00, 0x02, 0x0a, 0x21,
	0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x00, 0xc8,
	0x00, 0x00, 0x38, 0xff, 0x01, 0x00, 0x08, 0x00,
	0x00, 0x01, 0xdb, 0x0f, 0x01, 0xf1, 0x0d, 0x01,
	0x68, 0x00, 0x80, 0x08, 0xb8, 0x00, 0x00, 0x00,
	0x00, 0x0f, 0x89, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x01, 0x0f, 0x0d, 0x0e, 0x0e, 0x00,
	0x00, 0x02, 0xc7, 0xff, 0x9B, 0x00, 0x00, 0x00,
	0x01, 0x01, 0x40,
}

// ConfigurationBlock returns a copy of the block written during initialization.
func ConfigurationBlock() []byte {
	return append([]byte(nil), defaultConfiguration[:]...)
}

var ErrDeviceNotFound = errors.New("vl53l1x: device not found")

// DeviceNotFoundError reports an unexpected model id: either no VL53L1X
// answers at Address or a different chip does.
type DeviceNotFoundError struct {
	Address byte
	ModelID uint16
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("vl53l1x: unexpected model id %#04x at %#02x (expected %#04x), check wiring", e.ModelID, e.Address, vl53l1xModelID)
}

func (e *DeviceNotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound
}

type State int

const (
	StateUninitialized State = iota
	StateResetAsserted
	StateResetReleased
	StateIdentityVerified
	StateConfigured
	StateTimingBudgetSet
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateResetAsserted:
		return "reset asserted"
	case StateResetReleased:
		return "reset released"
	case StateIdentityVerified:
		return "identity verified"
	case StateConfigured:
		return "configured"
	case StateTimingBudgetSet:
		return "timing budget set"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

type VL53L1XOpts struct {
	Address     byte
	ResetSettle time.Duration
	BootSettle  time.Duration
	ReadySettle time.Duration
	Sleeper     tofpanel.Sleeper
}

type VL53L1XOpt func(*VL53L1XOpts)

func WithAddress(address byte) VL53L1XOpt {
	return func(o *VL53L1XOpts) {
		o.Address = address
	}
}

func WithSleeper(s tofpanel.Sleeper) VL53L1XOpt {
	return func(o *VL53L1XOpts) {
		o.Sleeper = s
	}
}

func WithResetSettle(d time.Duration) VL53L1XOpt {
	return func(o *VL53L1XOpts) {
		o.ResetSettle = d
	}
}

func WithBootSettle(d time.Duration) VL53L1XOpt {
	return func(o *VL53L1XOpts) {
		o.BootSettle = d
	}
}

func WithReadySettle(d time.Duration) VL53L1XOpt {
	return func(o *VL53L1XOpts) {
		o.ReadySettle = d
	}
}

// VL53L1X represents ST VL53L1X time-of-flight ranging sensor.
// See: https://www.st.com/resource/en/datasheet/vl53l1x.pdf
//
// Typical usage:
//
//	s, err := NewVL53L1X(ctx, bus)
//	mm, err := s.Read(ctx)
//
// Read does not check the data-ready flag. The configuration block leaves the
// sensor ranging continuously, so polling faster than the measurement period
// returns the previous sample again.
type VL53L1X struct {
	config       VL53L1XOpts
	reg          *regio.Device
	state        State
	timingBudget uint16
}

// NewVL53L1X resets the sensor, verifies its model id, uploads the
// configuration block and waits for it to settle. A model id mismatch yields
// a *DeviceNotFoundError before anything is configured. Any failure leaves
// the chip in an unknown state; construct a new driver to retry.
func NewVL53L1X(ctx context.Context, bus tofpanel.I2CBus, opts ...VL53L1XOpt) (*VL53L1X, error) {
	config := VL53L1XOpts{
		Address:     VL53L1XDefaultAddress,
		ResetSettle: ResetSettle,
		BootSettle:  BootSettle,
		ReadySettle: ReadySettle,
		Sleeper:     tofpanel.TimerSleeper,
	}
	for _, opt := range opts {
		opt(&config)
	}
	s := &VL53L1X{
		config: config,
		reg:    regio.NewDevice(bus, config.Address, regio.Addr16),
	}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *VL53L1X) init(ctx context.Context) error {
	if err := s.reset(ctx); err != nil {
		return err
	}
	if err := s.config.Sleeper.Sleep(ctx, s.config.BootSettle); err != nil {
		return fmt.Errorf("vl53l1x: boot settle interrupted: %w", err)
	}
	model, err := s.ModelID(ctx)
	if err != nil {
		return err
	}
	if model != vl53l1xModelID {
		return &DeviceNotFoundError{Address: s.config.Address, ModelID: model}
	}
	s.transition(ctx, StateIdentityVerified)

	err = s.reg.Write(ctx, regConfigBase, defaultConfiguration[:])
	if err != nil {
		return fmt.Errorf("vl53l1x: could not write configuration block: %w", err)
	}
	s.transition(ctx, StateConfigured)

	if err := s.setTimingBudget(ctx); err != nil {
		return err
	}
	s.transition(ctx, StateTimingBudgetSet)

	if err := s.config.Sleeper.Sleep(ctx, s.config.ReadySettle); err != nil {
		return fmt.Errorf("vl53l1x: ready settle interrupted: %w", err)
	}
	s.transition(ctx, StateReady)
	return nil
}

// reset pulses the soft reset register low then high.
func (s *VL53L1X) reset(ctx context.Context) error {
	err := s.reg.WriteUint8(ctx, regSoftReset, 0x00)
	if err != nil {
		return fmt.Errorf("vl53l1x: could not assert reset: %w", err)
	}
	s.transition(ctx, StateResetAsserted)
	if err := s.config.Sleeper.Sleep(ctx, s.config.ResetSettle); err != nil {
		return fmt.Errorf("vl53l1x: reset settle interrupted: %w", err)
	}
	err = s.reg.WriteUint8(ctx, regSoftReset, 0x01)
	if err != nil {
		return fmt.Errorf("vl53l1x: could not release reset: %w", err)
	}
	s.transition(ctx, StateResetReleased)
	return nil
}

// setTimingBudget scales the factory outer offset by 4 into the part-to-part
// range offset register. It must run after the configuration block upload.
func (s *VL53L1X) setTimingBudget(ctx context.Context) error {
	stored, err := s.reg.ReadUint16(ctx, regOuterOffset)
	if err != nil {
		return fmt.Errorf("vl53l1x: could not read calibration: %w", err)
	}
	budget := stored * 4
	err = s.reg.WriteUint16(ctx, regPartToPartRangeOffset, budget)
	if err != nil {
		return fmt.Errorf("vl53l1x: could not write timing budget: %w", err)
	}
	s.timingBudget = budget
	return nil
}

func (s *VL53L1X) transition(ctx context.Context, next State) {
	panelctx.Logger(ctx).DebugContext(ctx, "vl53l1x state change", "address", s.config.Address, "from", s.state, "to", next)
	s.state = next
}

// ModelID reads the identification register.
func (s *VL53L1X) ModelID(ctx context.Context) (uint16, error) {
	model, err := s.reg.ReadUint16(ctx, regModelID)
	if err != nil {
		return 0, fmt.Errorf("vl53l1x: could not read model id: %w", err)
	}
	return model, nil
}

func (s *VL53L1X) State() State {
	return s.state
}

func (s *VL53L1X) Address() byte {
	return s.config.Address
}

// TimingBudget returns the value written during initialization.
func (s *VL53L1X) TimingBudget() uint16 {
	return s.timingBudget
}

// Read returns the latest distance in millimeters.
// The sensor must have settled (construction waits for that).
func (s *VL53L1X) Read(ctx context.Context) (uint16, error) {
	block, err := s.reg.Read(ctx, regResultRangeStatus, resultBlockSize)
	if err != nil {
		return 0, fmt.Errorf("vl53l1x: could not read result block: %w", err)
	}
	return decodeRange(block)
}

func decodeRange(block []byte) (uint16, error) {
	if len(block) < resultBlockSize {
		return 0, fmt.Errorf("vl53l1x: result block of %d bytes: %w", len(block), tofpanel.ErrShortRead)
	}
	return regio.Decode16(block[resultRangeMM : resultRangeMM+2])
}
