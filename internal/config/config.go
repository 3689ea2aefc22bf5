package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Backend selectors.
const (
	BackendSysfs = "sysfs"
	BackendGPIO  = "gpio"
)

// Sensor selectors.
const (
	SensorVEML7700 = "veml7700"
	SensorMock     = "mock"
)

// ErrUnknownKey is wrapped by Load when a config file names a key that
// Config does not have.
var ErrUnknownKey = errors.New("unknown config key")

// Config is the top-level application configuration. All fields have
// defaults (see DefaultConfig); file values override them by key.
type Config struct {
	// Backend selects how brightness is written: "sysfs" or "gpio".
	Backend string `yaml:"backend"`

	// BrightnessPath is the sysfs value file used by the sysfs backend.
	BrightnessPath string `yaml:"brightness_path"`

	// GPIOPin is the BCM pin number driven by the gpio backend.
	GPIOPin int `yaml:"gpio_pin"`
	// PWMRange is the duty range of the gpio backend (0..PWMRange).
	PWMRange int `yaml:"pwm_range"`
	// PWMFrequencyHz is the PWM carrier frequency of the gpio backend.
	PWMFrequencyHz int `yaml:"pwm_frequency_hz"`

	MaxBrightness int `yaml:"max_brightness"`
	MinBrightness int `yaml:"min_brightness"`
	OffBrightness int `yaml:"off_brightness"`

	// Lux thresholds for the automatic mapping. At or below MinLuxThreshold
	// the backlight goes to MinBrightness, at or above MaxLuxThreshold to
	// MaxBrightness.
	MinLuxThreshold float64 `yaml:"min_lux_threshold"`
	MaxLuxThreshold float64 `yaml:"max_lux_threshold"`

	MeasurementIntervalMs int `yaml:"measurement_interval_ms"`
	AutoTransitionTimeMs  int `yaml:"auto_transition_time_ms"`

	// Sensor selects the ambient light sensor: "veml7700" or "mock".
	Sensor string `yaml:"sensor"`
	// I2CBus is the periph.io bus name; empty selects the first bus.
	I2CBus string `yaml:"i2c_bus"`
	// SensorWarmupMs is how long to wait after configuring the sensor
	// before the first reading.
	SensorWarmupMs int `yaml:"sensor_warmup_ms"`

	// AutoSchedule, if set, is a cron expression (e.g. "*/5 * * * *")
	// on which auto mode adjusts brightness instead of polling every
	// MeasurementIntervalMs.
	AutoSchedule string `yaml:"auto_schedule"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend:               BackendSysfs,
		BrightnessPath:        "/sys/class/backlight/10-0045/brightness",
		GPIOPin:               -1,
		PWMRange:              100,
		PWMFrequencyHz:        100,
		MaxBrightness:         255,
		MinBrightness:         1,
		OffBrightness:         0,
		MinLuxThreshold:       15,
		MaxLuxThreshold:       250,
		MeasurementIntervalMs: 200,
		AutoTransitionTimeMs:  1000,
		Sensor:                SensorVEML7700,
		I2CBus:                "",
		SensorWarmupMs:        100,
		AutoSchedule:          "",
	}
}

// Load loads configuration from the given path.
//
// Behavior:
//   - If the file does not exist, the defaults are returned without error.
//   - Files ending in .yaml or .yml are decoded as YAML.
//   - Anything else is parsed as INI-style key = value lines.
//
// In both formats unknown keys are rejected and the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, cfg)
	default:
		err = decodeINI(bytes.NewReader(data), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty document: keep defaults.
			return nil
		}
		return err
	}
	return nil
}

// decodeINI applies key = value lines from r on top of cfg. Blank lines,
// '#'/';' comments and [section] headers are skipped.
func decodeINI(r io.Reader, cfg *Config) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid line (missing '=') at line %d", lineNo)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			return fmt.Errorf("invalid key at line %d", lineNo)
		}

		if err := cfg.set(key, value); err != nil {
			return fmt.Errorf("config error at line %d: %w", lineNo, err)
		}
	}
	return sc.Err()
}

func (c *Config) set(key, value string) error {
	switch key {
	case "backend":
		c.Backend = value
	case "brightness_path":
		c.BrightnessPath = value
	case "gpio_pin":
		return setInt(key, value, &c.GPIOPin)
	case "pwm_range":
		return setInt(key, value, &c.PWMRange)
	case "pwm_frequency_hz":
		return setInt(key, value, &c.PWMFrequencyHz)
	case "max_brightness":
		return setInt(key, value, &c.MaxBrightness)
	case "min_brightness":
		return setInt(key, value, &c.MinBrightness)
	case "off_brightness":
		return setInt(key, value, &c.OffBrightness)
	case "min_lux_threshold":
		return setFloat(key, value, &c.MinLuxThreshold)
	case "max_lux_threshold":
		return setFloat(key, value, &c.MaxLuxThreshold)
	case "measurement_interval_ms":
		return setInt(key, value, &c.MeasurementIntervalMs)
	case "auto_transition_time_ms":
		return setInt(key, value, &c.AutoTransitionTimeMs)
	case "sensor":
		c.Sensor = value
	case "i2c_bus":
		c.I2CBus = value
	case "sensor_warmup_ms":
		return setInt(key, value, &c.SensorWarmupMs)
	case "auto_schedule":
		c.AutoSchedule = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func setInt(key, value string, dst *int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer for %s: %q", key, value)
	}
	*dst = v
	return nil
}

func setFloat(key, value string, dst *float64) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid float for %s: %q", key, value)
	}
	*dst = v
	return nil
}

// Validate checks the invariants between fields. It returns the first
// violation found.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSysfs:
		if c.BrightnessPath == "" {
			return errors.New("brightness_path must not be empty for sysfs backend")
		}
	case BackendGPIO:
		if c.GPIOPin < 0 {
			return errors.New("gpio_pin must be >= 0 for gpio backend")
		}
		if c.PWMRange <= 0 {
			return errors.New("pwm_range must be > 0 for gpio backend")
		}
		if c.PWMFrequencyHz <= 0 {
			return errors.New("pwm_frequency_hz must be > 0 for gpio backend")
		}
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendSysfs, BackendGPIO, c.Backend)
	}

	if c.MaxBrightness <= 0 {
		return errors.New("max_brightness must be > 0")
	}
	if c.MinBrightness < 0 {
		return errors.New("min_brightness must be >= 0")
	}
	if c.OffBrightness < 0 {
		return errors.New("off_brightness must be >= 0")
	}
	if c.MinBrightness > c.MaxBrightness {
		return errors.New("min_brightness must be <= max_brightness")
	}
	if c.OffBrightness > c.MaxBrightness {
		return errors.New("off_brightness must be <= max_brightness")
	}
	if !finite(c.MinLuxThreshold) || !finite(c.MaxLuxThreshold) {
		return errors.New("lux thresholds must be finite numbers")
	}
	if c.MinLuxThreshold < 0 || c.MaxLuxThreshold < 0 {
		return errors.New("lux thresholds must be >= 0")
	}
	if c.MinLuxThreshold > c.MaxLuxThreshold {
		return errors.New("min_lux_threshold must be <= max_lux_threshold")
	}
	if c.MeasurementIntervalMs <= 0 {
		return errors.New("measurement_interval_ms must be > 0")
	}
	if c.AutoTransitionTimeMs < 0 {
		return errors.New("auto_transition_time_ms must be >= 0")
	}
	if c.SensorWarmupMs < 0 {
		return errors.New("sensor_warmup_ms must be >= 0")
	}

	switch c.Sensor {
	case SensorVEML7700, SensorMock:
	default:
		return fmt.Errorf("sensor must be %q or %q, got %q", SensorVEML7700, SensorMock, c.Sensor)
	}

	if c.AutoSchedule != "" {
		if _, err := cron.ParseStandard(c.AutoSchedule); err != nil {
			return fmt.Errorf("auto_schedule: %w", err)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Dump writes cfg to w as YAML. The output is itself a loadable config
// file when saved with a .yaml extension.
func Dump(w io.Writer, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
