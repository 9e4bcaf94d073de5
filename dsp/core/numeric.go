package core

import "math"

const defaultEpsilon = 1e-12

// Clamp limits value to the inclusive range [min, max]. NaN maps to min.
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min || math.IsNaN(value) {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// ClampUnit limits value to [0, 1].
func ClampUnit(value float64) float64 {
	return Clamp(value, 0, 1)
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// NearlyEqual reports whether a and b are equal within eps.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff <= eps
	}

	return diff/largest <= eps
}

// FlushDenormals converts tiny denormal-like values to exact zero.
func FlushDenormals(x float64) float64 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0
	}

	return x
}

// MapUnit maps a normalized value in [0, 1] linearly onto [lo, hi].
func MapUnit(norm, lo, hi float64) float64 {
	return lo + ClampUnit(norm)*(hi-lo)
}
