// Package sensor opens the ambient light sensor named in the config.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"brightctl/internal/config"
	appLog "brightctl/internal/log"
	"brightctl/internal/veml7700"
)

// ErrUnknownSensor is returned by Open for an unsupported sensor selector.
var ErrUnknownSensor = errors.New("unknown sensor")

// LightSensor abstracts how we obtain ambient light readings. The VEML7700
// adapter is used on the device; the mock adapter lets auto mode run on
// machines without I2C.
type LightSensor interface {
	// ReadLux returns the current light level in lux.
	ReadLux(ctx context.Context) (float64, error)

	// Close releases any resources.
	Close() error
}

// veml7700Sensor owns the I2C bus it opened.
type veml7700Sensor struct {
	bus i2c.BusCloser
	dev *veml7700.Dev
}

// mockSensor returns base ± variation lux.
type mockSensor struct {
	rnd       *rand.Rand
	base      float64
	variation float64
}

// Open constructs the sensor selected by cfg.Sensor. Any failure here is a
// setup failure.
func Open(cfg *config.Config) (LightSensor, error) {
	switch cfg.Sensor {
	case config.SensorVEML7700:
		return OpenVEML7700(cfg.I2CBus)
	case config.SensorMock:
		return NewMock(cfg.MinLuxThreshold+(cfg.MaxLuxThreshold-cfg.MinLuxThreshold)/2, (cfg.MaxLuxThreshold-cfg.MinLuxThreshold)/2), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSensor, cfg.Sensor)
	}
}

// OpenVEML7700 initializes periph.io, opens busName ("" for the first
// bus, typically /dev/i2c-1 on Raspberry Pi) and configures a VEML7700 at
// its fixed address with gain x1 and 100ms integration.
func OpenVEML7700(busName string) (LightSensor, error) {
	if runtime.GOOS != "linux" {
		return nil, errors.New("sensor: i2c unavailable on this platform")
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("sensor: periph host init failed: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("sensor: failed to open I2C bus %q: %w", busName, err)
	}

	s, err := newVEML7700(bus)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	appLog.Debug("light sensor ready", "sensor", s.dev.String(), "bus", bus.String())
	return s, nil
}

func newVEML7700(bus i2c.BusCloser) (*veml7700Sensor, error) {
	dev, err := veml7700.NewI2C(bus, veml7700.DefaultAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("sensor: failed to configure light sensor: %w", err)
	}
	return &veml7700Sensor{bus: bus, dev: dev}, nil
}

func (s *veml7700Sensor) ReadLux(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.dev.Lux()
}

func (s *veml7700Sensor) Close() error {
	return errors.Join(s.dev.Halt(), s.bus.Close())
}

// NewMock constructs a sensor that generates readings around base.
// variation is the +/- range (e.g. 100 around 500 gives 400-600).
func NewMock(base, variation float64) LightSensor {
	return &mockSensor{
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		base:      base,
		variation: variation,
	}
}

func (m *mockSensor) ReadLux(_ context.Context) (float64, error) {
	lux := m.base + (m.rnd.Float64()-0.5)*2*m.variation
	if lux < 0 {
		lux = 0
	}
	return lux, nil
}

func (m *mockSensor) Close() error {
	return nil
}
