// Package backlight writes brightness values to the display. Two backends
// exist: a sysfs value file and a GPIO pin driven with PWM. The backend is
// chosen once at startup from the config.
package backlight

import (
	"errors"
	"fmt"

	"brightctl/internal/config"
)

// ErrUnknownBackend is returned by New for an unsupported backend selector.
var ErrUnknownBackend = errors.New("unknown backend")

// Backend reads and writes the backlight brightness.
type Backend interface {
	// Current returns the brightness as the backend last knows it.
	Current() (int, error)
	// Set writes a new brightness value.
	Set(value int) error
	// Close releases the backend's file or pin.
	Close() error
}

// New constructs the backend selected by cfg.Backend. Construction failures
// are setup failures and should abort the run.
func New(cfg *config.Config) (Backend, error) {
	switch cfg.Backend {
	case config.BackendSysfs:
		return NewSysfs(cfg.BrightnessPath), nil
	case config.BackendGPIO:
		b, err := OpenPWM(cfg.GPIOPin, PWMConfig{
			Range:         cfg.PWMRange,
			FrequencyHz:   cfg.PWMFrequencyHz,
			MaxBrightness: cfg.MaxBrightness,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Clamp bounds a value read back from a backend to [0, maxBrightness]. The
// hardware may report values the config does not allow, e.g. a sysfs device
// whose own maximum is above max_brightness.
func Clamp(v, maxBrightness int) int {
	return min(max(v, 0), maxBrightness)
}
