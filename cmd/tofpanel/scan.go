package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tofpanel"
	"github.com/mklimuk/tofpanel/cmd/tofpanel/console"
)

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "list addresses that acknowledge on a bus",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "bus",
			Usage: "bus path or number, defaults to the ranging sensor bus",
		},
	},
	Action: func(c *cli.Context) error {
		path := cfg.Ranging.Bus
		if c.IsSet("bus") {
			path = c.String("bus")
		}
		b := newBuses(cfg.Adapter)
		defer func() { _ = b.Close() }()
		bus, err := b.get(path)
		if err != nil {
			return console.Exit(1, "could not open bus: %s", console.Red(err))
		}
		found, err := tofpanel.Scan(c.Context, bus)
		if err != nil {
			return console.Exit(1, "scan interrupted: %s", console.Red(err))
		}
		console.PInfof(console.PictoSearch, "%s scan result: [%s]", path, formatAddresses(found))
		return nil
	},
}

func formatAddresses(addrs []byte) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = fmt.Sprintf("%#02x", a)
	}
	return strings.Join(parts, ", ")
}
