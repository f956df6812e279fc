package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tofpanel/cmd/tofpanel/console"
)

var configCmd = cli.Command{
	Name:  "config",
	Usage: "configuration commands",
	Subcommands: cli.Commands{
		&configShowCmd,
	},
}

var configShowCmd = cli.Command{
	Name:  "show",
	Usage: "print the effective configuration",
	Action: func(c *cli.Context) error {
		if err := cfg.Encode(console.Writer()); err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		return nil
	},
}
