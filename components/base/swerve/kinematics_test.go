package swerve

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/tickbot-robotics/tickbot/spatialmath"
)

const half = 0.3

func squareKinematics(t *testing.T) *Kinematics {
	t.Helper()
	k, err := NewKinematics(
		r2.Point{X: half, Y: half},
		r2.Point{X: half, Y: -half},
		r2.Point{X: -half, Y: half},
		r2.Point{X: -half, Y: -half},
	)
	test.That(t, err, test.ShouldBeNil)
	return k
}

func TestNewKinematicsErrors(t *testing.T) {
	_, err := NewKinematics(r2.Point{X: 1})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewKinematics(r2.Point{X: 1}, r2.Point{X: 1})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestToModuleStates(t *testing.T) {
	k := squareKinematics(t)

	t.Run("translation", func(t *testing.T) {
		for _, s := range k.ToModuleStates(spatialmath.ChassisSpeeds{Vx: 0, Vy: 2}) {
			test.That(t, s.Speed, test.ShouldAlmostEqual, 2.)
			test.That(t, s.Angle, test.ShouldAlmostEqual, math.Pi/2)
		}
	})

	t.Run("rotation", func(t *testing.T) {
		states := k.ToModuleStates(spatialmath.ChassisSpeeds{Omega: 1})
		radius := math.Hypot(half, half)
		for _, s := range states {
			test.That(t, s.Speed, test.ShouldAlmostEqual, radius)
		}
		// front left module moves toward -x, +y... perpendicular to its offset
		test.That(t, states[0].Angle, test.ShouldAlmostEqual, 3*math.Pi/4)
		test.That(t, states[3].Angle, test.ShouldAlmostEqual, -math.Pi/4)
	})
}

func TestForwardKinematicsInvertsInverse(t *testing.T) {
	k := squareKinematics(t)
	for _, speeds := range []spatialmath.ChassisSpeeds{
		{Vx: 1},
		{Vx: -0.5, Vy: 1.2, Omega: 0.7},
		{Omega: -2},
	} {
		got, err := k.ToChassisSpeeds(k.ToModuleStates(speeds))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Vx, test.ShouldAlmostEqual, speeds.Vx)
		test.That(t, got.Vy, test.ShouldAlmostEqual, speeds.Vy)
		test.That(t, got.Omega, test.ShouldAlmostEqual, speeds.Omega)
	}

	_, err := k.ToChassisSpeeds([]ModuleState{{}, {}})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestToTwist(t *testing.T) {
	k := squareKinematics(t)
	deltas := make([]ModulePosition, 4)
	for i := range deltas {
		deltas[i] = ModulePosition{Distance: 0.1, Angle: 0}
	}
	tw, err := k.ToTwist(deltas)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tw.DX, test.ShouldAlmostEqual, 0.1)
	test.That(t, tw.DY, test.ShouldAlmostEqual, 0.)
	test.That(t, tw.DTheta, test.ShouldAlmostEqual, 0.)
}

func TestDesaturate(t *testing.T) {
	states := []ModuleState{{Speed: 4}, {Speed: -2}, {Speed: 1}}
	DesaturateWheelSpeeds(states, 2)
	test.That(t, states[0].Speed, test.ShouldAlmostEqual, 2.)
	test.That(t, states[1].Speed, test.ShouldAlmostEqual, -1.)
	test.That(t, states[2].Speed, test.ShouldAlmostEqual, 0.5)

	slow := []ModuleState{{Speed: 1}}
	DesaturateWheelSpeeds(slow, 2)
	test.That(t, slow[0].Speed, test.ShouldEqual, 1.)
}

func TestOptimize(t *testing.T) {
	s := ModuleState{Speed: 1, Angle: math.Pi}
	o := s.Optimize(0)
	test.That(t, o.Speed, test.ShouldEqual, -1.)
	test.That(t, o.Angle, test.ShouldAlmostEqual, 0.)

	s = ModuleState{Speed: 1, Angle: math.Pi / 4}
	test.That(t, s.Optimize(0), test.ShouldResemble, s)

	s = ModuleState{Speed: 2, Angle: -math.Pi / 2}
	o = s.Optimize(3 * math.Pi / 4)
	test.That(t, o.Speed, test.ShouldEqual, -2.)
	test.That(t, o.Angle, test.ShouldAlmostEqual, math.Pi/2)
}
