package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tofpanel/cmd/tofpanel/console"
	"github.com/mklimuk/tofpanel/config"
	"github.com/mklimuk/tofpanel/panelctx"
)

// cfg is the effective configuration: defaults, then the config file, then flags.
var cfg = config.Default()

func main() {
	os.Exit(run())
}

func run() int {
	app := cli.NewApp()
	app.Name = "tofpanel"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", config.Version, config.Date, config.Commit)
	app.Usage = "time-of-flight ranging panel"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a YAML configuration file",
			EnvVars: []string{"TOFPANEL_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Usage:   "bus adapter: generic, i2cdev, mcp2221, nanopi or mock",
		},
	}
	app.Before = func(c *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stdout, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if c.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		logger := slog.New(charm)
		slog.SetDefault(logger)
		c.Context = panelctx.WithLogger(panelctx.SetVerbose(c.Context, c.Bool("verbose")), logger)

		loaded, err := config.Load(c.String("config"))
		if err != nil {
			return console.Exit(2, "configuration error: %s", console.Red(err))
		}
		if c.IsSet("adapter") {
			loaded.Adapter = c.String("adapter")
			if err := loaded.Validate(); err != nil {
				return console.Exit(2, "configuration error: %s", console.Red(err))
			}
		}
		cfg = loaded
		return nil
	}
	app.Commands = cli.Commands{
		&runCmd,
		&rangeCmd,
		&displayCmd,
		&scanCmd,
		&usbCmd,
		&mcp2221Cmd,
		&configCmd,
	}
	err := app.Run(os.Args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			log.Printf("unexpected error: %v", err)
			return exerr.ExitCode()
		}
		log.Printf("unexpected error: %v", err)
		return 1
	}
	return 0
}
