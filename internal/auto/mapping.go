package auto

import (
	"math"

	"brightctl/internal/config"
)

// Mapping pairs two lux thresholds with the brightness used at each end.
type Mapping struct {
	MinLux, MaxLux               float64
	MinBrightness, MaxBrightness int
}

// MappingFromConfig takes the thresholds and brightness bounds from cfg.
func MappingFromConfig(cfg *config.Config) Mapping {
	return Mapping{
		MinLux:        cfg.MinLuxThreshold,
		MaxLux:        cfg.MaxLuxThreshold,
		MinBrightness: cfg.MinBrightness,
		MaxBrightness: cfg.MaxBrightness,
	}
}

// LuxToBrightness clamps to MinBrightness at or below MinLux and to
// MaxBrightness at or above MaxLux, and interpolates linearly in between,
// rounding to the nearest integer. A NaN reading maps to MinBrightness.
func LuxToBrightness(lux float64, m Mapping) int {
	if !(lux > m.MinLux) {
		return m.MinBrightness
	}
	if lux >= m.MaxLux {
		return m.MaxBrightness
	}
	frac := (lux - m.MinLux) / (m.MaxLux - m.MinLux)
	v := int(math.Round(frac*float64(m.MaxBrightness-m.MinBrightness))) + m.MinBrightness
	return min(max(v, m.MinBrightness), m.MaxBrightness)
}
