package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/exepirit/telesto-go/internal/config"
	"github.com/exepirit/telesto-go/internal/log"
	"github.com/exepirit/telesto-go/pkg/telesto"
	"github.com/exepirit/telesto-go/pkg/telesto/serial"
)

type app struct {
	cfg       config.Config
	logger    *slog.Logger
	transport *telesto.StreamTransport
	driver    *telesto.Driver
	radio     *telesto.Radio
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// parse CLI flags
	configPath := flag.String("config", "", "TOML configuration file")
	port := flag.String("port", "", "Serial port of the module")
	baud := flag.Int("baud", 0, "UART baud rate (default 115200)")
	timeout := flag.Duration("timeout", 0, "Confirmation timeout (default 500ms)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := lookup(flag.Arg(0))
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}
	args := flag.Args()[1:]
	if len(args) < cmd.minArgs {
		fmt.Fprintf(os.Stderr, "usage: telesto %s %s\n", cmd.name, cmd.args)
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fail(err)
		}
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *timeout != 0 {
		cfg.Driver.Timeout = *timeout
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	logger, err := log.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fail(err)
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	if cmd.needsDevice {
		if err := a.open(); err != nil {
			fail(err)
		}
		defer a.transport.Close()
	}

	if err := a.execute(ctx, cmd, args); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "telesto:", err)
	os.Exit(1)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "usage: telesto [flags] <command> [args]")
	fmt.Fprintln(out, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-14s %-12s %s\n", c.name, c.args, c.help)
	}
	fmt.Fprintln(out, "\nflags:")
	flag.PrintDefaults()
}

// open connects to the module and builds the driver.
func (a *app) open() error {
	if a.cfg.Serial.Port == "" {
		return errors.New("no serial port configured, use -port")
	}
	codecCfg, err := a.cfg.CodecConfig()
	if err != nil {
		return err
	}

	transport, err := serial.Open(a.cfg.Serial.Port, a.cfg.SerialConfig(), a.logger)
	if err != nil {
		return err
	}

	a.transport = transport
	a.driver = telesto.NewDriver(transport,
		telesto.WithCodecConfig(codecCfg),
		telesto.WithLogger(a.logger),
		telesto.WithTimeout(a.cfg.Driver.Timeout),
		telesto.WithFrameTimeout(a.cfg.Driver.FrameTimeout),
		telesto.WithPollInterval(a.cfg.Driver.PollInterval),
		telesto.WithReassemblerCapacity(a.cfg.Driver.Capacity),
	)
	a.radio = telesto.NewRadio(a.driver)
	return nil
}

// execute runs cmd while the driver loop runs alongside. The loop stops when
// the command returns.
func (a *app) execute(ctx context.Context, cmd command, args []string) error {
	if a.driver == nil {
		return cmd.run(ctx, a, args)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		err := a.driver.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer stop()
		start := time.Now()
		err := cmd.run(gctx, a, args)
		a.logger.Debug("Command finished", "command", cmd.name, "took", time.Since(start), "error", err)
		return err
	})
	return g.Wait()
}
