package utils

import (
	"math"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// WrapRad maps an angle into (-pi, pi].
func WrapRad(rad float64) float64 {
	if rad > -math.Pi && rad <= math.Pi {
		return rad
	}
	wrapped := math.Mod(rad+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// WrapDeg maps an angle into (-180, 180].
func WrapDeg(deg float64) float64 {
	if deg > -180 && deg <= 180 {
		return deg
	}
	wrapped := math.Mod(deg+180, 360)
	if wrapped <= 0 {
		wrapped += 360
	}
	return wrapped - 180
}

// AngleDiffRad returns the signed shortest rotation from a to b, in (-pi, pi].
func AngleDiffRad(a, b float64) float64 {
	return WrapRad(b - a)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Float64AlmostEqual compares two float64s and returns if the difference between them is less than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

// Square returns n*n; math.Pow( x, 2 ) is slow.
func Square(n float64) float64 {
	return n * n
}
