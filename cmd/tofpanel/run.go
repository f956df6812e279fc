package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tofpanel/cmd/tofpanel/console"
	"github.com/mklimuk/tofpanel/config"
	"github.com/mklimuk/tofpanel/panel"
	"github.com/mklimuk/tofpanel/telemetry"
)

var runCmd = cli.Command{
	Name:  "run",
	Usage: "show live distance readings on the display",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Usage:   "time between readings",
		},
		&cli.StringFlag{
			Name:  "broker",
			Usage: "MQTT broker url, enables telemetry",
		},
	},
	Action: func(c *cli.Context) error {
		if c.IsSet("interval") {
			cfg.Interval = c.Duration("interval")
		}
		if c.IsSet("broker") {
			cfg.MQTT.Broker = c.String("broker")
		}
		if err := cfg.Validate(); err != nil {
			return console.Exit(2, "configuration error: %s", console.Red(err))
		}
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		b := newBuses(cfg.Adapter)
		defer func() {
			if err := b.Close(); err != nil {
				slog.Warn("could not close buses", "error", err)
			}
		}()
		sensor, err := openSensor(ctx, b, cfg)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		lcd, err := openDisplay(ctx, b, cfg)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		opts := []panel.Opt{panel.WithInterval(cfg.Interval)}
		if cfg.MQTT.Enabled() {
			pub, err := openPublisher(ctx, cfg.MQTT)
			if err != nil {
				return console.Exit(1, "telemetry error: %s", console.Red(err))
			}
			defer func() { _ = pub.Close() }()
			opts = append(opts, panel.WithPublisher(pub))
		}
		if err := panel.New(sensor, lcd, opts...).Run(ctx); err != nil {
			return console.Exit(1, "panel stopped: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "stopped")
		return nil
	},
}

func openPublisher(ctx context.Context, m config.MQTT) (*telemetry.MQTTPublisher, error) {
	enc, err := telemetry.EncoderFor(m.Format)
	if err != nil {
		return nil, err
	}
	return telemetry.NewMQTTPublisher(ctx, m.Broker, m.Topic,
		telemetry.WithClientID(m.ClientID),
		telemetry.WithQoS(m.QoS),
		telemetry.WithTimeout(m.Timeout),
		telemetry.WithEncoder(enc),
	)
}
