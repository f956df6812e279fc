// Package panel runs the read-and-display loop shared by the host CLI and
// the microcontroller firmware.
package panel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mklimuk/tofpanel"
	"github.com/mklimuk/tofpanel/panelctx"
)

const (
	Title           = "VL54L1X for Nano"
	ReadyText       = "READY"
	DefaultInterval = 500 * time.Millisecond
)

type DistanceReader interface {
	Read(ctx context.Context) (uint16, error)
}

type LineDisplay interface {
	Print(ctx context.Context, line int, s string) error
}

// Publisher forwards samples elsewhere, e.g. to an MQTT broker.
type Publisher interface {
	PublishDistance(ctx context.Context, mm uint16, at time.Time) error
}

type Opts struct {
	Interval  time.Duration
	Sleeper   tofpanel.Sleeper
	Publisher Publisher
	Now       func() time.Time
}

type Opt func(o *Opts)

func WithInterval(d time.Duration) Opt {
	return func(o *Opts) { o.Interval = d }
}

func WithSleeper(s tofpanel.Sleeper) Opt {
	return func(o *Opts) { o.Sleeper = s }
}

func WithPublisher(p Publisher) Opt {
	return func(o *Opts) { o.Publisher = p }
}

func WithClock(now func() time.Time) Opt {
	return func(o *Opts) { o.Now = now }
}

type Panel struct {
	sensor  DistanceReader
	display LineDisplay
	opts    Opts
}

func New(sensor DistanceReader, display LineDisplay, opts ...Opt) *Panel {
	o := Opts{
		Interval: DefaultInterval,
		Sleeper:  tofpanel.TimerSleeper,
		Now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Panel{sensor: sensor, display: display, opts: o}
}

// Greet shows the banner on line 0 and the ready marker on line 1.
func (p *Panel) Greet(ctx context.Context) error {
	if err := p.display.Print(ctx, 0, Title); err != nil {
		return fmt.Errorf("could not print title: %w", err)
	}
	if err := p.display.Print(ctx, 1, ReadyText); err != nil {
		return fmt.Errorf("could not print ready marker: %w", err)
	}
	return nil
}

// Format renders a sample the way it appears on line 0, e.g. "300mm".
func Format(mm uint16) string {
	return strconv.FormatUint(uint64(mm), 10) + "mm"
}

// Step takes one sample, shows it and publishes it. Line 1 is rewritten with
// an empty string, which leaves the previous contents of that line visible.
func (p *Panel) Step(ctx context.Context) (uint16, error) {
	mm, err := p.sensor.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not read distance: %w", err)
	}
	log := panelctx.Logger(ctx)
	log.InfoContext(ctx, "range", "mm", mm)
	if err := p.display.Print(ctx, 0, Format(mm)); err != nil {
		return mm, fmt.Errorf("could not print distance: %w", err)
	}
	if err := p.display.Print(ctx, 1, ""); err != nil {
		return mm, fmt.Errorf("could not print status line: %w", err)
	}
	if p.opts.Publisher != nil {
		// telemetry is best effort
		if err := p.opts.Publisher.PublishDistance(ctx, mm, p.opts.Now()); err != nil {
			log.WarnContext(ctx, "could not publish distance", "error", err)
		}
	}
	return mm, nil
}

// Run greets and then steps every interval until ctx is done. A cancelled
// context ends the loop without error; any bus failure is returned.
func (p *Panel) Run(ctx context.Context) error {
	if err := p.Greet(ctx); err != nil {
		return err
	}
	for {
		if _, err := p.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := p.opts.Sleeper.Sleep(ctx, p.opts.Interval); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}
