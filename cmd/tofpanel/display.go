package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tofpanel/cmd/tofpanel/console"
)

var displayCmd = cli.Command{
	Name:    "display",
	Aliases: []string{"lcd"},
	Usage:   "character display commands",
	Subcommands: cli.Commands{
		&displayPrintCmd,
		&displayClearCmd,
		&displayReplCmd,
	},
}

var displayPrintCmd = cli.Command{
	Name:      "print",
	Usage:     "print text on a display line",
	ArgsUsage: "TEXT",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "line",
			Aliases: []string{"l"},
			Usage:   "line index, 0 or 1",
		},
	},
	Action: func(c *cli.Context) error {
		b := newBuses(cfg.Adapter)
		defer func() { _ = b.Close() }()
		lcd, err := openDisplay(c.Context, b, cfg)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		text := strings.Join(c.Args().Slice(), " ")
		if err := lcd.Print(c.Context, c.Int("line"), text); err != nil {
			return console.Exit(1, "print error: %s", console.Red(err))
		}
		return nil
	},
}

var displayClearCmd = cli.Command{
	Name:  "clear",
	Usage: "clear the display",
	Action: func(c *cli.Context) error {
		b := newBuses(cfg.Adapter)
		defer func() { _ = b.Close() }()
		lcd, err := openDisplay(c.Context, b, cfg)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if err := lcd.Clear(c.Context); err != nil {
			return console.Exit(1, "clear error: %s", console.Red(err))
		}
		return nil
	},
}

var displayReplCmd = cli.Command{
	Name:  "repl",
	Usage: "interactive display shell",
	Action: func(c *cli.Context) error {
		b := newBuses(cfg.Adapter)
		defer func() { _ = b.Close() }()
		lcd, err := openDisplay(c.Context, b, cfg)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "lcd> ",
			InterruptPrompt: "^C",
			EOFPrompt:       "quit",
			AutoComplete: readline.NewPrefixCompleter(
				readline.PcItem("print"),
				readline.PcItem("clear"),
				readline.PcItem("help"),
				readline.PcItem("quit"),
			),
		})
		if err != nil {
			return console.Exit(1, "could not start prompt: %s", console.Red(err))
		}
		defer func() { _ = rl.Close() }()
		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			quit, err := execReplLine(c.Context, lcd, line, rl.Stdout())
			if err != nil {
				console.Errorf("%s", err)
			}
			if quit {
				return nil
			}
		}
	},
}

var errUsage = errors.New("usage: print <line> <text> | clear | help | quit")

// execReplLine runs one shell line against the display and reports whether
// the shell should exit.
func execReplLine(ctx context.Context, lcd lineDisplay, line string, out io.Writer) (bool, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return false, fmt.Errorf("could not parse input: %w", err)
	}
	if len(args) == 0 {
		return false, nil
	}
	switch args[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		_, _ = fmt.Fprintln(out, errUsage.Error())
		return false, nil
	case "clear":
		return false, lcd.Clear(ctx)
	case "print":
		if len(args) < 2 {
			return false, errUsage
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return false, fmt.Errorf("invalid line %q: %w", args[1], err)
		}
		return false, lcd.Print(ctx, n, strings.Join(args[2:], " "))
	}
	return false, fmt.Errorf("unknown command %q: %w", args[0], errUsage)
}
