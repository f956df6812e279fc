package display

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mklimuk/tofpanel"
	"github.com/mklimuk/tofpanel/panelctx"
	"github.com/mklimuk/tofpanel/regio"
)

const AQM1602DefaultAddress = 0x3E

// Control bytes select the instruction or the data register.
const (
	regCommand uint16 = 0x00
	regData    uint16 = 0x40
)

const (
	LineWidth = 16
	LineCount = 2
)

// ST7032 instruction set
const (
	cmdClearDisplay      = 0x01
	cmdReturnHome        = 0x02
	cmdDisplayOn         = 0x0C // display on, cursor off, blink off
	cmdFunctionSet       = 0x38 // 8-bit bus, 2 lines, normal instruction table
	cmdFunctionSetExt    = 0x39 // same with extended instruction table
	cmdInternalOSC       = 0x14
	cmdContrastLow       = 0x73
	cmdPowerIconContrast = 0x56
	cmdFollowerControl   = 0x6C
	cmdSetDDRAMAddress   = 0x80
)

var lineAddress = [LineCount]byte{0x00, 0x40}

// lineHome is the command issued before addressing each line.
var lineHome = [LineCount]byte{cmdClearDisplay, cmdReturnHome}

const (
	PowerOnDelay = 100 * time.Millisecond
	CommandDelay = 20 * time.Millisecond
	ByteDelay    = 1 * time.Millisecond
)

var ErrInvalidLine = errors.New("aqm1602: line index out of range")

type State int

const (
	StateUninitialized State = iota
	StateFunctionSet
	StateExtensionEnabled
	StateContrastSet
	StatePowerOn
	StateCleared
	StateDisplayOn
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateFunctionSet:
		return "function set"
	case StateExtensionEnabled:
		return "extension enabled"
	case StateContrastSet:
		return "contrast set"
	case StatePowerOn:
		return "power on"
	case StateCleared:
		return "cleared"
	case StateDisplayOn:
		return "display on"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// initSequence is issued in order with CommandDelay after every step.
var initSequence = []struct {
	cmd   byte
	state State
}{
	{cmdFunctionSet, StateFunctionSet},
	{cmdFunctionSetExt, StateExtensionEnabled},
	{cmdInternalOSC, StateExtensionEnabled},
	{cmdContrastLow, StateContrastSet},
	{cmdPowerIconContrast, StatePowerOn},
	{cmdFollowerControl, StatePowerOn},
	{cmdFunctionSet, StatePowerOn},
	{cmdClearDisplay, StateCleared},
	{cmdDisplayOn, StateDisplayOn},
}

type AQM1602Opts struct {
	Address      byte
	PowerOnDelay time.Duration
	CommandDelay time.Duration
	ByteDelay    time.Duration
	Sleeper      tofpanel.Sleeper
}

type AQM1602Opt func(*AQM1602Opts)

func WithAddress(address byte) AQM1602Opt {
	return func(o *AQM1602Opts) {
		o.Address = address
	}
}

func WithSleeper(s tofpanel.Sleeper) AQM1602Opt {
	return func(o *AQM1602Opts) {
		o.Sleeper = s
	}
}

func WithPowerOnDelay(d time.Duration) AQM1602Opt {
	return func(o *AQM1602Opts) {
		o.PowerOnDelay = d
	}
}

func WithCommandDelay(d time.Duration) AQM1602Opt {
	return func(o *AQM1602Opts) {
		o.CommandDelay = d
	}
}

func WithByteDelay(d time.Duration) AQM1602Opt {
	return func(o *AQM1602Opts) {
		o.ByteDelay = d
	}
}

// AQM1602 represents Xiamen Zettler AQM1602 16x2 character LCD (ST7032 controller).
// See: https://akizukidenshi.com/catalog/g/gP-08779/
//
// Typical usage:
//
//	d, err := NewAQM1602(ctx, bus)
//	err = d.Print(ctx, 0, "hello")
type AQM1602 struct {
	config AQM1602Opts
	reg    *regio.Device
	state  State
}

// NewAQM1602 runs the fixed initialization sequence. There is no identity
// check: any device acknowledging at the address is accepted.
func NewAQM1602(ctx context.Context, bus tofpanel.I2CBus, opts ...AQM1602Opt) (*AQM1602, error) {
	config := AQM1602Opts{
		Address:      AQM1602DefaultAddress,
		PowerOnDelay: PowerOnDelay,
		CommandDelay: CommandDelay,
		ByteDelay:    ByteDelay,
		Sleeper:      tofpanel.TimerSleeper,
	}
	for _, opt := range opts {
		opt(&config)
	}
	d := &AQM1602{
		config: config,
		reg:    regio.NewDevice(bus, config.Address, regio.Addr8),
	}
	if err := d.init(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *AQM1602) init(ctx context.Context) error {
	if err := d.config.Sleeper.Sleep(ctx, d.config.PowerOnDelay); err != nil {
		return fmt.Errorf("aqm1602: power on wait interrupted: %w", err)
	}
	for _, step := range initSequence {
		if err := d.WriteCommand(ctx, step.cmd); err != nil {
			return fmt.Errorf("aqm1602: init command %#02x failed: %w", step.cmd, err)
		}
		// commands issued before the controller finishes executing are dropped
		if err := d.config.Sleeper.Sleep(ctx, d.config.CommandDelay); err != nil {
			return fmt.Errorf("aqm1602: init interrupted: %w", err)
		}
		d.transition(ctx, step.state)
	}
	d.transition(ctx, StateReady)
	return nil
}

func (d *AQM1602) transition(ctx context.Context, next State) {
	if next == d.state {
		return
	}
	panelctx.Logger(ctx).DebugContext(ctx, "aqm1602 state change", "address", d.config.Address, "from", d.state, "to", next)
	d.state = next
}

func (d *AQM1602) State() State {
	return d.state
}

func (d *AQM1602) Address() byte {
	return d.config.Address
}

// WriteCommand sends one instruction byte and waits for its execution.
func (d *AQM1602) WriteCommand(ctx context.Context, cmd byte) error {
	if err := d.reg.WriteUint8(ctx, regCommand, cmd); err != nil {
		return err
	}
	return d.config.Sleeper.Sleep(ctx, d.config.ByteDelay)
}

// WriteData sends one character byte to display RAM and waits for its execution.
func (d *AQM1602) WriteData(ctx context.Context, data byte) error {
	if err := d.reg.WriteUint8(ctx, regData, data); err != nil {
		return err
	}
	return d.config.Sleeper.Sleep(ctx, d.config.ByteDelay)
}

// PrintLine writes text at the start of line 0 or 1. Text longer than
// LineWidth is truncated. Addressing line 0 clears the whole display first;
// addressing line 1 does not, so characters left over from a longer string
// stay visible after the new text.
func (d *AQM1602) PrintLine(ctx context.Context, line int, text []byte) error {
	if line < 0 || line >= LineCount {
		return fmt.Errorf("%w: %d", ErrInvalidLine, line)
	}
	if len(text) > LineWidth {
		text = text[:LineWidth]
	}
	if err := d.WriteCommand(ctx, lineHome[line]); err != nil {
		return fmt.Errorf("aqm1602: could not home line %d: %w", line, err)
	}
	if err := d.WriteCommand(ctx, cmdSetDDRAMAddress|lineAddress[line]); err != nil {
		return fmt.Errorf("aqm1602: could not address line %d: %w", line, err)
	}
	for i, c := range text {
		if err := d.WriteData(ctx, c); err != nil {
			return fmt.Errorf("aqm1602: could not write character %d of line %d: %w", i, line, err)
		}
	}
	return nil
}

func (d *AQM1602) Print(ctx context.Context, line int, s string) error {
	return d.PrintLine(ctx, line, []byte(s))
}

// Clear blanks both lines and returns the cursor home.
func (d *AQM1602) Clear(ctx context.Context) error {
	if err := d.WriteCommand(ctx, cmdClearDisplay); err != nil {
		return fmt.Errorf("aqm1602: could not clear display: %w", err)
	}
	return nil
}
