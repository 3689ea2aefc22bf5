// Package veml7700 drives the Vishay VEML7700 ambient light sensor over I2C
// using periph.io.
//
// The device exposes 16-bit little-endian registers. Only the configuration
// register (ALS_CONF) and the ambient light output (ALS) are used here.
package veml7700

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
)

// DefaultAddr is the fixed 7-bit I2C address of the VEML7700.
const DefaultAddr uint16 = 0x10

// Gain is the ALS_GAIN field of the configuration register.
type Gain byte

const (
	Gain1       Gain = 0x00 // x1
	Gain2       Gain = 0x01 // x2
	GainEighth  Gain = 0x02 // x1/8
	GainQuarter Gain = 0x03 // x1/4
)

// IntegrationTime is the ALS_IT field of the configuration register.
type IntegrationTime byte

const (
	IT25ms  IntegrationTime = 0x0c
	IT50ms  IntegrationTime = 0x08
	IT100ms IntegrationTime = 0x00
	IT200ms IntegrationTime = 0x01
	IT400ms IntegrationTime = 0x02
	IT800ms IntegrationTime = 0x03
)

const (
	regALSConf byte = 0x00
	regALS     byte = 0x04

	gainShift = 11
	itShift   = 6
	shutdown  = 0x0001

	// Lux per count at gain x2 and 800ms integration; every other setting
	// scales from this one.
	baseResolution = 0.0036
)

// Opts holds the sensor configuration applied by NewI2C.
type Opts struct {
	Gain            Gain
	IntegrationTime IntegrationTime
}

// DefaultOpts is gain x1 with 100ms integration, which resolves
// 0.0576 lux per count.
var DefaultOpts = Opts{Gain: Gain1, IntegrationTime: IT100ms}

// Dev is a handle to a configured VEML7700.
type Dev struct {
	d          *i2c.Dev
	mu         sync.Mutex
	opts       Opts
	resolution float64
	halted     bool
}

// NewI2C configures the sensor at addr on bus and powers it on. A nil opts
// selects DefaultOpts.
func NewI2C(bus i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	res, err := Resolution(opts.Gain, opts.IntegrationTime)
	if err != nil {
		return nil, err
	}
	dev := &Dev{
		d:          &i2c.Dev{Bus: bus, Addr: addr},
		opts:       *opts,
		resolution: res,
	}
	if err := dev.writeReg(regALSConf, dev.configWord()); err != nil {
		return nil, fmt.Errorf("veml7700: configure: %w", err)
	}
	return dev, nil
}

// Resolution returns the lux represented by one ALS count for the given
// settings.
func Resolution(g Gain, it IntegrationTime) (float64, error) {
	var gain float64
	switch g {
	case Gain1:
		gain = 1
	case Gain2:
		gain = 2
	case GainEighth:
		gain = 0.125
	case GainQuarter:
		gain = 0.25
	default:
		return 0, fmt.Errorf("veml7700: invalid gain 0x%02x", byte(g))
	}

	var ms float64
	switch it {
	case IT25ms:
		ms = 25
	case IT50ms:
		ms = 50
	case IT100ms:
		ms = 100
	case IT200ms:
		ms = 200
	case IT400ms:
		ms = 400
	case IT800ms:
		ms = 800
	default:
		return 0, fmt.Errorf("veml7700: invalid integration time 0x%02x", byte(it))
	}

	return baseResolution * (800 / ms) * (2 / gain), nil
}

// ReadRaw returns the raw ALS count.
func (dev *Dev) ReadRaw() (uint16, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.halted {
		return 0, errors.New("veml7700: device is halted")
	}
	return dev.readReg(regALS)
}

// Lux reads the ambient light level.
func (dev *Dev) Lux() (float64, error) {
	raw, err := dev.ReadRaw()
	if err != nil {
		return 0, fmt.Errorf("veml7700: read ALS: %w", err)
	}
	return float64(raw) * dev.resolution, nil
}

// Halt puts the sensor in shutdown mode.
func (dev *Dev) Halt() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.halted {
		return nil
	}
	if err := dev.writeReg(regALSConf, dev.configWord()|shutdown); err != nil {
		return err
	}
	dev.halted = true
	return nil
}

func (dev *Dev) String() string {
	return fmt.Sprintf("veml7700{addr: 0x%02x, gain: 0x%02x, it: 0x%02x}", dev.d.Addr, byte(dev.opts.Gain), byte(dev.opts.IntegrationTime))
}

func (dev *Dev) configWord() uint16 {
	return uint16(dev.opts.Gain)<<gainShift | uint16(dev.opts.IntegrationTime)<<itShift
}

func (dev *Dev) writeReg(reg byte, v uint16) error {
	return dev.d.Tx([]byte{reg, byte(v), byte(v >> 8)}, nil)
}

func (dev *Dev) readReg(reg byte) (uint16, error) {
	r := make([]byte, 2)
	if err := dev.d.Tx([]byte{reg}, r); err != nil {
		return 0, err
	}
	return uint16(r[0]) | uint16(r[1])<<8, nil
}
