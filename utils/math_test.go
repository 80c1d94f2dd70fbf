package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestWrapRad(t *testing.T) {
	for _, tc := range []struct {
		in, out float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{5 * math.Pi / 2, math.Pi / 2},
		{0.1 - 4*math.Pi, 0.1},
	} {
		test.That(t, WrapRad(tc.in), test.ShouldAlmostEqual, tc.out, 1e-9)
	}
}

func TestWrapDeg(t *testing.T) {
	test.That(t, WrapDeg(180), test.ShouldAlmostEqual, 180.0)
	test.That(t, WrapDeg(-180), test.ShouldAlmostEqual, 180.0)
	test.That(t, WrapDeg(190), test.ShouldAlmostEqual, -170.0)
	test.That(t, WrapDeg(-350), test.ShouldAlmostEqual, 10.0)
	test.That(t, WrapDeg(720), test.ShouldAlmostEqual, 0.0)
}

func TestAngleDiffRad(t *testing.T) {
	test.That(t, AngleDiffRad(DegToRad(170), DegToRad(-170)), test.ShouldAlmostEqual, DegToRad(20), 1e-9)
	test.That(t, AngleDiffRad(DegToRad(-170), DegToRad(170)), test.ShouldAlmostEqual, DegToRad(-20), 1e-9)
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(5, -1, 1), test.ShouldEqual, 1.0)
	test.That(t, Clamp(-5, -1, 1), test.ShouldEqual, -1.0)
	test.That(t, Clamp(0.5, -1, 1), test.ShouldEqual, 0.5)
}
