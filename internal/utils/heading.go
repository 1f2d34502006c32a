package utils

import (
	"math"
)

// NormalizeHeading wraps a heading in degrees into [0, 360).
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// HeadingDelta returns the signed shortest angular difference from current to
// target, in (-180, 180].
func HeadingDelta(current, target float64) float64 {
	delta := math.Mod(target-current, 360)
	if delta > 180 {
		delta -= 360
	} else if delta <= -180 {
		delta += 360
	}
	return delta
}

// InterpolateHeading advances current toward target along the shorter arc by
// the given factor (0..1). Interpolating 350 toward 10 at 0.5 yields 0, never
// 180. The result is always in [0, 360).
func InterpolateHeading(current, target, factor float64) float64 {
	if factor <= 0 {
		return NormalizeHeading(current)
	}
	if factor >= 1 {
		return NormalizeHeading(target)
	}
	return NormalizeHeading(current + HeadingDelta(current, target)*factor)
}
