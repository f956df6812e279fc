package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tofpanel/cmd/tofpanel/console"
	"github.com/mklimuk/tofpanel/panel"
)

var rangeCmd = cli.Command{
	Name:  "range",
	Usage: "ranging sensor commands",
	Subcommands: cli.Commands{
		&rangeReadCmd,
	},
}

var rangeReadCmd = cli.Command{
	Name:  "read",
	Usage: "take a single distance reading",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Value:   1,
			Usage:   "number of readings",
		},
	},
	Action: func(c *cli.Context) error {
		b := newBuses(cfg.Adapter)
		defer func() { _ = b.Close() }()
		sensor, err := openSensor(c.Context, b, cfg)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		for i := 0; i < c.Int("count"); i++ {
			mm, err := sensor.Read(c.Context)
			if err != nil {
				return console.Exit(1, "error getting distance read: %s", console.Red(err))
			}
			console.PInfof(console.PictoRuler, "%s", console.White(panel.Format(mm)))
		}
		return nil
	},
}
