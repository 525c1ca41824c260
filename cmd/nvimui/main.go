// Package main is the entry point for nvimui, a headless external UI for
// a remote Neovim.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/dshills/nvimui/internal/app"
	"github.com/dshills/nvimui/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// cli holds the parsed command line.
type cli struct {
	opts    app.Options
	dump    bool
	help    bool
	version bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	c, flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if c.help {
		printHelp(flags, stderr)
		return 0
	}
	if c.version {
		fmt.Fprintf(stdout, "nvimui %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, c.opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	code := 0
	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		code = 1
	}

	if c.dump {
		if err := application.DumpScreen(stdout); err != nil {
			fmt.Fprintf(stderr, "Error: dump screen: %v\n", err)
			code = 1
		}
	}

	// Detach gets a fresh context; ctx may already be cancelled by a signal.
	if err := application.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(stderr, "Error: shutdown: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

func parseFlags(args []string, stderr io.Writer) (*cli, *pflag.FlagSet, error) {
	c := &cli{}
	flags := pflag.NewFlagSet("nvimui", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { printHelp(flags, stderr) }

	flags.StringVarP(&c.opts.ConfigPath, "config", "c", "", "Path to configuration file (.toml or .yaml)")
	flags.BoolVar(&c.opts.WatchConfig, "watch", false, "Reload the log level when the configuration file changes")
	flags.StringVarP(&c.opts.Server, "server", "s", "", "Connect to a listening editor (socket path or host:port)")
	flags.StringVar(&c.opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&c.opts.Record, "record", "", "Record the session to a trace file")
	flags.StringVar(&c.opts.Replay, "replay", "", "Replay a recorded trace instead of connecting")
	flags.IntVar(&c.opts.Width, "width", 0, "UI width in cells")
	flags.IntVar(&c.opts.Height, "height", 0, "UI height in cells")
	flags.BoolVar(&c.dump, "dump", false, "Print every grid's text on exit")
	flags.BoolVarP(&c.version, "version", "v", false, "Show version information")
	flags.BoolVarP(&c.help, "help", "h", false, "Show help message")

	if err := flags.Parse(args); err != nil {
		return nil, flags, err
	}

	if c.opts.LogLevel != "" && !logging.ValidLevel(c.opts.LogLevel) {
		return nil, flags, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", c.opts.LogLevel)
	}
	if c.opts.Width < 0 || c.opts.Height < 0 {
		return nil, flags, fmt.Errorf("invalid size %dx%d", c.opts.Width, c.opts.Height)
	}
	if c.opts.Replay != "" && (c.opts.Server != "" || c.opts.Record != "") {
		return nil, flags, errors.New("--replay cannot be combined with --server or --record")
	}

	// Remaining arguments go to the embedded editor.
	c.opts.Args = flags.Args()
	return c, flags, nil
}

func printHelp(flags *pflag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `nvimui - headless external UI for Neovim

Usage: nvimui [options] [-- editor args...]

Options:
`)
	flags.SetOutput(w)
	flags.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  nvimui file.go                         Embed nvim and open a file
  nvimui --server /tmp/nvim.sock         Attach to a running editor
  nvimui --record s.trace file.go        Record the session
  nvimui --replay s.trace --dump         Replay a recording and print the screen
`)
}
