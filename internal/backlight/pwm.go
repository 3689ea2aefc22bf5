package backlight

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PWMConfig describes how brightness values map onto the PWM output.
type PWMConfig struct {
	// Range is the number of duty steps; brightness is scaled into
	// 0..Range before it is converted to a periph.io duty cycle.
	Range         int
	FrequencyHz   int
	MaxBrightness int
}

// pwmPin is the part of gpio.PinOut the backend needs.
type pwmPin interface {
	PWM(duty gpio.Duty, f physic.Frequency) error
	Halt() error
	String() string
}

// PWM drives the backlight enable line of a panel with a PWM signal.
//
// The hardware cannot be read back, so Current reports the last value
// written by this process. If anything else changes the pin, Current is
// stale until the next Set.
type PWM struct {
	pin  pwmPin
	cfg  PWMConfig
	freq physic.Frequency
	last int
}

// OpenPWM initializes periph.io, resolves BCM pin number pinNum and starts
// it at duty 0.
func OpenPWM(pinNum int, cfg PWMConfig) (*PWM, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("backlight: failed to initialize GPIO: %w", err)
	}
	name := fmt.Sprintf("GPIO%d", pinNum)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("backlight: gpio %s not found", name)
	}
	return NewPWM(p, cfg)
}

// NewPWM wraps an already resolved pin. The initial duty 0 write doubles as
// a check that the pin supports PWM.
func NewPWM(pin pwmPin, cfg PWMConfig) (*PWM, error) {
	if cfg.Range <= 0 {
		return nil, errors.New("backlight: pwm range must be > 0")
	}
	if cfg.FrequencyHz <= 0 {
		return nil, errors.New("backlight: pwm frequency must be > 0")
	}
	if cfg.MaxBrightness <= 0 {
		return nil, errors.New("backlight: max brightness must be > 0")
	}
	b := &PWM{
		pin:  pin,
		cfg:  cfg,
		freq: physic.Frequency(cfg.FrequencyHz) * physic.Hertz,
	}
	if err := b.pin.PWM(0, b.freq); err != nil {
		return nil, fmt.Errorf("backlight: failed to initialize PWM on %s: %w", pin, err)
	}
	return b, nil
}

// Current returns the last value set, not a hardware reading.
func (b *PWM) Current() (int, error) {
	return b.last, nil
}

// Set clamps value to [0, MaxBrightness], scales it into the PWM range and
// updates the duty cycle.
func (b *PWM) Set(value int) error {
	clamped := min(max(value, 0), b.cfg.MaxBrightness)
	if err := b.pin.PWM(b.duty(clamped), b.freq); err != nil {
		return fmt.Errorf("backlight: pwm write on %s: %w", b.pin, err)
	}
	b.last = clamped
	return nil
}

// Level returns the PWM range step for a clamped brightness.
func (b *PWM) Level(brightness int) int {
	lvl := int(int64(brightness) * int64(b.cfg.Range) / int64(b.cfg.MaxBrightness))
	return min(max(lvl, 0), b.cfg.Range)
}

func (b *PWM) duty(brightness int) gpio.Duty {
	return gpio.Duty(int64(b.Level(brightness)) * int64(gpio.DutyMax) / int64(b.cfg.Range))
}

// Close stops the PWM output.
func (b *PWM) Close() error {
	return b.pin.Halt()
}

func (b *PWM) String() string {
	return "pwm(" + b.pin.String() + ")"
}
