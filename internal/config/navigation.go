package config

import (
	"time"
)

// NavigationConfig bounds GPS sampling, deviation-triggered recomputation and
// the heading animation loop. The two-stage deviation debounce (sustained
// duration + cooldown) keeps external routing API spend bounded under noisy GPS.
type NavigationConfig struct {
	// GPS samples are throttled to this interval before they may trigger a
	// backend write or a deviation check.
	LocationInterval time.Duration `yaml:"location_interval"`

	// A fix older than this is considered stale.
	LocationMaxAge time.Duration `yaml:"location_max_age"`

	// Minimum movement before a bearing is derived from consecutive samples.
	HeadingNoiseFloorMeters float64 `yaml:"heading_noise_floor_meters"`

	// Heading smoothing animation tick and per-tick interpolation factor.
	HeadingTick   time.Duration `yaml:"heading_tick"`
	HeadingFactor float64       `yaml:"heading_factor"`

	// Off-route distance threshold.
	DeviationThresholdMeters float64 `yaml:"deviation_threshold_meters"`

	// The provider must stay off-route at least this long before an automatic
	// recomputation fires.
	MinTimeOffRoute time.Duration `yaml:"min_time_off_route"`

	// Minimum interval between automatic recomputations.
	MinRecalcInterval time.Duration `yaml:"min_recalc_interval"`

	// Debounce for rapid repeated manual recalculation taps.
	ManualRecalcDebounce time.Duration `yaml:"manual_recalc_debounce"`
}

func loadNavigationConfig() *NavigationConfig {
	return &NavigationConfig{
		LocationInterval:         getEnvAsDuration("NAV_LOCATION_INTERVAL", 5*time.Second),
		LocationMaxAge:           getEnvAsDuration("NAV_LOCATION_MAX_AGE", 30*time.Second),
		HeadingNoiseFloorMeters:  getEnvAsFloat64("NAV_HEADING_NOISE_FLOOR_M", 5),
		HeadingTick:              getEnvAsDuration("NAV_HEADING_TICK", 50*time.Millisecond),
		HeadingFactor:            getEnvAsFloat64("NAV_HEADING_FACTOR", 0.15),
		DeviationThresholdMeters: getEnvAsFloat64("NAV_DEVIATION_THRESHOLD_M", 50),
		MinTimeOffRoute:          getEnvAsDuration("NAV_MIN_TIME_OFF_ROUTE", 10*time.Second),
		MinRecalcInterval:        getEnvAsDuration("NAV_MIN_RECALC_INTERVAL", 2*time.Minute),
		ManualRecalcDebounce:     getEnvAsDuration("NAV_MANUAL_RECALC_DEBOUNCE", 3*time.Second),
	}
}
