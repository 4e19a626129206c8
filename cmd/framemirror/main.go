// framemirror replays a producer scenario into a frame mirror and serves it.
//
// One-shot mode (no --admin, --view or --watch): the scenario is played until every
// announcement has settled, the tree is optionally exported as CBOR, a summary is
// printed and the process exits. --inspect prints an earlier export instead.
//
// Otherwise the runtime keeps running: --admin serves the admin endpoints, --view
// opens the terminal tree viewer and --watch replays the scenario in a fresh session
// every time the file changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/evan-idocoding/framekit"
	"github.com/evan-idocoding/framekit/config"
	"github.com/evan-idocoding/framekit/internal/scenario"
	"github.com/evan-idocoding/framekit/internal/viewer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	scenarioPath string
	adminAddr    string
	exportPath   string
	logLevel     string
	logFile      string
	inspectPath  string
	diag         bool
	watch        bool
	view         bool
}

func (o *options) oneShot() bool {
	return !o.view && !o.watch && o.adminAddr == ""
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("framemirror", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default: $"+config.EnvPath+")")
	flagSet.StringVarP(&opts.scenarioPath, "scenario", "s", "", "YAML scenario to replay")
	flagSet.StringVar(&opts.adminAddr, "admin", "", "admin listen address, overrides admin.addr")
	flagSet.StringVar(&opts.exportPath, "export", "", "write the settled tree to this file as CBOR")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error, overrides log.level")
	flagSet.StringVar(&opts.logFile, "log-file", "", "append log records to this file")
	flagSet.StringVar(&opts.inspectPath, "inspect", "", "print an exported CBOR file and exit")
	flagSet.BoolVar(&opts.diag, "diag", false, "with --inspect, print CBOR diagnostic notation")
	flagSet.BoolVarP(&opts.watch, "watch", "w", false, "replay the scenario whenever it changes")
	flagSet.BoolVarP(&opts.view, "view", "v", false, "open the terminal tree viewer")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if opts.inspectPath != "" {
		return inspectExport(stdout, opts.inspectPath, opts.diag)
	}
	if opts.watch && opts.scenarioPath == "" {
		return errors.New("--watch requires --scenario")
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.adminAddr != "" {
		cfg.Admin.Addr = opts.adminAddr
	}
	opts.adminAddr = cfg.Admin.Addr
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	var sc *scenario.Scenario
	if opts.scenarioPath != "" {
		if sc, err = scenario.Load(opts.scenarioPath); err != nil {
			return err
		}
		cfg.Mirror.RootName = sc.Root
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logOut, closeLog, err := openLogOutput(opts, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	rt := framekit.New(framekit.Spec{
		Config:    cfg,
		LogOutput: logOut,
		Signals:   framekit.SignalSpec{Disable: true},
	})
	p := newPlayback(rt, rt.Logger.With("component", "scenario"))

	if opts.oneShot() {
		return runOneShot(ctx, rt, p, sc, opts, stdout)
	}
	return runServing(ctx, rt, p, sc, opts)
}

func openLogOutput(opts options, stderr io.Writer) (io.Writer, func(), error) {
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	}
	if opts.view {
		// The viewer owns the terminal.
		return io.Discard, func() {}, nil
	}
	return stderr, func() {}, nil
}

func runOneShot(ctx context.Context, rt *framekit.Runtime, p *playback, sc *scenario.Scenario, opts options, stdout io.Writer) error {
	defer shutdown(rt)
	if sc != nil {
		if err := p.play(ctx, sc); err != nil {
			return err
		}
	}
	if opts.exportPath != "" {
		if err := exportFrames(opts.exportPath, rt.Mirror); err != nil {
			return err
		}
	}
	return printSummary(stdout, rt.Mirror)
}

func runServing(ctx context.Context, rt *framekit.Runtime, p *playback, sc *scenario.Scenario, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if sc != nil {
		go func() {
			if err := p.play(ctx, sc); err != nil && ctx.Err() == nil {
				rt.Logger.Error("scenario playback failed", slog.Any("error", err))
				return
			}
			if opts.exportPath != "" && ctx.Err() == nil {
				if err := exportFrames(opts.exportPath, rt.Mirror); err != nil {
					rt.Logger.Error("export failed", slog.Any("error", err))
				}
			}
		}()
	}
	if opts.watch {
		go func() {
			err := scenario.Watch(ctx, opts.scenarioPath, func(next *scenario.Scenario) {
				p.replay(ctx, next)
			}, scenario.WatchOptions{Logger: rt.Logger.With("component", "watch")})
			if err != nil && ctx.Err() == nil {
				rt.Logger.Error("scenario watch stopped", slog.Any("error", err))
			}
		}()
	}

	if !opts.view {
		return rt.Run(ctx)
	}
	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer shutdown(rt)
	return viewer.Run(ctx, rt.Mirror, rt.Config.Mirror.TickInterval.Std())
}

func shutdown(rt *framekit.Runtime) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		rt.Logger.Warn("shutdown", slog.Any("error", err))
	}
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `framemirror replays a frame scenario into a mirror.

Usage:
  framemirror [flags]

Examples:
  # Replay once and export the settled tree
  framemirror --scenario robot.yaml --export robot.cbor

  # Serve the admin endpoints and replay on every save
  framemirror --scenario robot.yaml --watch --admin 127.0.0.1:8089

  # Print an export
  framemirror --inspect robot.cbor

  # Browse the tree in the terminal
  framemirror --scenario robot.yaml --view

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
