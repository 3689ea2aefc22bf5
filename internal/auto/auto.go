// Package auto adjusts the backlight from ambient light readings.
//
// A Loop has two phases. Init waits for the sensor's first measurement to be
// ready. After that every adjustment reads lux, maps it to a target
// brightness and runs an eased transition from the backend's current value.
//
// Sensor read failures during adjustments are logged and retried on the next
// tick. Backend failures end the loop.
package auto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/robfig/cron/v3"

	"brightctl/internal/backlight"
	"brightctl/internal/config"
	appLog "brightctl/internal/log"
	"brightctl/internal/sensor"
	"brightctl/internal/transition"
)

// ErrSensorRead marks a failed sensor reading. Loops treat it as retryable.
var ErrSensorRead = errors.New("sensor read failed")

// Loop holds everything one auto-brightness run needs.
type Loop struct {
	Sensor  sensor.LightSensor
	Backend backlight.Backend
	Engine  *transition.Engine
	Mapping Mapping

	Interval   time.Duration
	Transition time.Duration
	Warmup     time.Duration

	// Sleep paces Init and the interval loop. Nil uses transition.Sleep.
	Sleep transition.Sleeper
}

// New builds a Loop from cfg around an opened sensor and backend.
func New(cfg *config.Config, s sensor.LightSensor, b backlight.Backend) *Loop {
	return &Loop{
		Sensor:     s,
		Backend:    b,
		Engine:     transition.New(b),
		Mapping:    MappingFromConfig(cfg),
		Interval:   time.Duration(cfg.MeasurementIntervalMs) * time.Millisecond,
		Transition: time.Duration(cfg.AutoTransitionTimeMs) * time.Millisecond,
		Warmup:     time.Duration(cfg.SensorWarmupMs) * time.Millisecond,
	}
}

// Init waits for the sensor's first measurement.
func (l *Loop) Init(ctx context.Context) error {
	return l.sleep(ctx, l.Warmup)
}

// Step performs one adjustment: read lux, map it, transition to it.
func (l *Loop) Step(ctx context.Context) error {
	lux, err := l.Sensor.ReadLux(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSensorRead, err)
	}
	target := LuxToBrightness(lux, l.Mapping)

	current, err := l.Backend.Current()
	if err != nil {
		return fmt.Errorf("auto: read current brightness: %w", err)
	}
	current = backlight.Clamp(current, l.Mapping.MaxBrightness)

	appLog.Debug("auto adjust", "lux", fmt.Sprintf("%.2f", lux), "current", current, "target", target)
	return l.Engine.Run(ctx, current, target, l.Transition)
}

// Once runs Init and a single Step. Any failure, including a sensor read,
// is returned.
func (l *Loop) Once(ctx context.Context) error {
	if err := l.Init(ctx); err != nil {
		return err
	}
	return l.Step(ctx)
}

// Run adjusts brightness every Interval until ctx is done. It returns nil
// on cancellation and an error only for non-sensor failures.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Init(ctx); err != nil {
		return ignoreCanceled(ctx, err)
	}
	appLog.Info("auto brightness running", "interval", l.Interval, "transition", l.Transition)

	for {
		if err := l.step(ctx); err != nil {
			return ignoreCanceled(ctx, err)
		}
		if err := l.sleep(ctx, l.Interval); err != nil {
			return ignoreCanceled(ctx, err)
		}
	}
}

// RunSchedule adjusts once immediately and then on every tick of the cron
// expression spec. Ticks that arrive while an adjustment is still running
// are skipped.
func (l *Loop) RunSchedule(ctx context.Context, spec string) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("auto: schedule %q: %w", spec, err)
	}
	if err := l.Init(ctx); err != nil {
		return ignoreCanceled(ctx, err)
	}
	if err := l.step(ctx); err != nil {
		return ignoreCanceled(ctx, err)
	}

	errCh := make(chan error, 1)
	logger := cronLogger{}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	c.Schedule(sched, cron.FuncJob(func() {
		if err := l.step(ctx); err != nil && ctx.Err() == nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}))

	appLog.Info("auto brightness scheduled", "schedule", spec, "transition", l.Transition)
	c.Start()
	defer func() { <-c.Stop().Done() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// ShowLux prints a reading to w every Interval until ctx is done.
func (l *Loop) ShowLux(ctx context.Context, w io.Writer) error {
	if err := l.Init(ctx); err != nil {
		return ignoreCanceled(ctx, err)
	}
	for {
		lux, err := l.Sensor.ReadLux(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			appLog.Error("error reading light sensor", err)
		} else if _, err := fmt.Fprintf(w, "Lux: %.2f\n", lux); err != nil {
			return err
		}
		if err := l.sleep(ctx, l.Interval); err != nil {
			return ignoreCanceled(ctx, err)
		}
	}
}

// step is Step with sensor failures logged and swallowed.
func (l *Loop) step(ctx context.Context) error {
	err := l.Step(ctx)
	if errors.Is(err, ErrSensorRead) && ctx.Err() == nil {
		appLog.Error("error reading light sensor", err)
		return nil
	}
	return err
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) error {
	if l.Sleep == nil {
		return transition.Sleep(ctx, d)
	}
	return l.Sleep(ctx, d)
}

func ignoreCanceled(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// cronLogger routes scheduler messages into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
