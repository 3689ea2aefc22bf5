package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"brightctl/internal/auto"
	"brightctl/internal/backlight"
	"brightctl/internal/config"
	appLog "brightctl/internal/log"
	"brightctl/internal/sensor"
	"brightctl/internal/transition"
)

// Set at build time: go build -ldflags "-X main.version=1.2.3"
var version = "dev"

const usageText = `brightctl [--config path] <brightness|max|min|off> [duration_ms]
brightctl [--config path] --auto [--once]
brightctl [--config path] --showlux
brightctl [--config path] --print-config`

var errUsage = errors.New("usage")

// app wires the command to its hardware. Tests swap the constructors.
type app struct {
	stdout      io.Writer
	openBackend func(*config.Config) (backlight.Backend, error)
	openSensor  func(*config.Config) (sensor.LightSensor, error)
}

func newApp(stdout io.Writer) *app {
	return &app{
		stdout:      stdout,
		openBackend: backlight.New,
		openSensor:  sensor.Open,
	}
}

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := newApp(os.Stdout).command().Run(ctx, os.Args); err != nil {
		appLog.Error("brightctl failed", err)
		os.Exit(1)
	}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:            "brightctl",
		Usage:           "set or automatically adjust the display backlight",
		UsageText:       usageText,
		Version:         version,
		Writer:          a.stdout,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file (.conf INI or .yaml)",
				Sources: cli.EnvVars("BRIGHTCTL_CONFIG"),
				Value:   "/etc/brightctl.conf",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "logging level: debug, info, warn, error",
				Sources: cli.EnvVars("BRIGHTCTL_LOG_LEVEL"),
				Value:   "info",
			},
			&cli.BoolFlag{
				Name:  "auto",
				Usage: "adjust brightness from the ambient light sensor",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "with --auto, adjust once and exit",
			},
			&cli.BoolFlag{
				Name:  "showlux",
				Usage: "print ambient light readings",
			},
			&cli.BoolFlag{
				Name:  "print-config",
				Usage: "print the effective config as YAML and exit",
			},
		},
		Action: a.run,
	}
}

func (a *app) run(ctx context.Context, cmd *cli.Command) error {
	level, err := appLog.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	appLog.SetLevel(level)

	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	appLog.Debug("effective config",
		"config_path", configPath,
		"backend", cfg.Backend,
		"sensor", cfg.Sensor,
		"max_brightness", cfg.MaxBrightness,
		"measurement_interval_ms", cfg.MeasurementIntervalMs,
	)

	if cmd.Bool("print-config") {
		return config.Dump(a.stdout, cfg)
	}

	args := cmd.Args().Slice()
	autoMode, showLux, once := cmd.Bool("auto"), cmd.Bool("showlux"), cmd.Bool("once")

	switch {
	case autoMode && showLux:
		return fmt.Errorf("%w: --auto and --showlux are mutually exclusive", errUsage)
	case (autoMode || showLux) && len(args) > 0:
		return fmt.Errorf("%w: unexpected arguments %q", errUsage, args)
	case once && !autoMode:
		return fmt.Errorf("%w: --once requires --auto", errUsage)
	case showLux:
		return a.showLux(ctx, cfg)
	case autoMode:
		return a.auto(ctx, cfg, once)
	}

	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w:\n%s", errUsage, usageText)
	}
	target, err := parseTarget(args[0], cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	var duration time.Duration
	if len(args) == 2 {
		duration, err = parseDuration(args[1])
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
	}
	return a.set(ctx, cfg, target, duration)
}

func (a *app) set(ctx context.Context, cfg *config.Config, target int, duration time.Duration) error {
	b, err := a.openBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}
	defer b.Close()

	current, err := b.Current()
	if err != nil {
		return err
	}
	current = backlight.Clamp(current, cfg.MaxBrightness)
	appLog.Debug("transition", "from", current, "to", target, "duration", duration)
	if err := transition.New(b).Run(ctx, current, target, duration); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			appLog.Info("transition interrupted", "target", target)
			return nil
		}
		return err
	}
	return nil
}

func (a *app) auto(ctx context.Context, cfg *config.Config, once bool) error {
	b, err := a.openBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}
	defer b.Close()

	s, err := a.openSensor(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize light sensor: %w", err)
	}
	defer s.Close()

	loop := auto.New(cfg, s, b)
	switch {
	case once:
		return loop.Once(ctx)
	case cfg.AutoSchedule != "":
		return loop.RunSchedule(ctx, cfg.AutoSchedule)
	default:
		return loop.Run(ctx)
	}
}

func (a *app) showLux(ctx context.Context, cfg *config.Config) error {
	s, err := a.openSensor(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize light sensor: %w", err)
	}
	defer s.Close()

	return auto.New(cfg, s, nil).ShowLux(ctx, a.stdout)
}

// parseTarget resolves max/min/off through cfg, or parses a number in
// [0, max_brightness].
func parseTarget(arg string, cfg *config.Config) (int, error) {
	switch arg {
	case "max":
		return cfg.MaxBrightness, nil
	case "min":
		return cfg.MinBrightness, nil
	case "off":
		return cfg.OffBrightness, nil
	}
	v, err := strconv.Atoi(arg)
	if err != nil || v < 0 || v > cfg.MaxBrightness {
		return 0, fmt.Errorf("invalid brightness value %q: use a number between 0-%d or 'max'/'min'/'off'", arg, cfg.MaxBrightness)
	}
	return v, nil
}

func parseDuration(arg string) (time.Duration, error) {
	ms, err := strconv.Atoi(arg)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("invalid transition time %q: use a non-negative number of milliseconds", arg)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
