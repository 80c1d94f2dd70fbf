package swerve

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/tickbot-robotics/tickbot/components/motor"
	"github.com/tickbot-robotics/tickbot/components/motor/fake"
	"github.com/tickbot-robotics/tickbot/spatialmath"
)

func TestModuleRefresh(t *testing.T) {
	ctx := context.Background()
	drive, steer := fake.NewMotor("d"), fake.NewMotor("s")
	drive.SetPosition(1.5)
	steer.SetPosition(2*math.Pi + 0.25)
	m := NewModule("fl", r2.Point{X: 1}, drive, steer)

	test.That(t, m.Refresh(ctx), test.ShouldBeNil)
	test.That(t, m.Position().Distance, test.ShouldEqual, 1.5)
	test.That(t, m.Angle(), test.ShouldAlmostEqual, 0.25)

	steer.Fail(errors.New("unplugged"))
	drive.SetPosition(3)
	err := m.Refresh(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "fl steer position")
	test.That(t, m.Position().Distance, test.ShouldEqual, 3.)
	test.That(t, m.Angle(), test.ShouldAlmostEqual, 0.25)
}

func TestModuleSetDesiredState(t *testing.T) {
	ctx := context.Background()
	drive, steer := fake.NewMotor("d"), fake.NewMotor("s")
	// three full turns wound up, pointing at 0
	steer.SetPosition(6 * math.Pi)
	m := NewModule("fl", r2.Point{}, drive, steer)
	test.That(t, m.Refresh(ctx), test.ShouldBeNil)

	t.Run("small turn", func(t *testing.T) {
		test.That(t, m.SetDesiredState(ctx, ModuleState{Speed: 1, Angle: 0.5}), test.ShouldBeNil)
		_, v := drive.Mode()
		test.That(t, v, test.ShouldEqual, 1.)
		mode, target := steer.Mode()
		test.That(t, mode, test.ShouldEqual, motor.ModePosition)
		test.That(t, target, test.ShouldAlmostEqual, 6*math.Pi+0.5)
	})

	t.Run("reverses instead of turning around", func(t *testing.T) {
		test.That(t, m.SetDesiredState(ctx, ModuleState{Speed: 1, Angle: math.Pi - 0.1}), test.ShouldBeNil)
		_, v := drive.Mode()
		test.That(t, v, test.ShouldEqual, -1.)
		_, target := steer.Mode()
		test.That(t, target, test.ShouldAlmostEqual, 6*math.Pi-0.1)
	})

	t.Run("holds steering when stopped", func(t *testing.T) {
		before := steer.Requests()
		test.That(t, m.SetDesiredState(ctx, ModuleState{Speed: 0, Angle: 2}), test.ShouldBeNil)
		test.That(t, steer.Requests(), test.ShouldEqual, before)
		_, v := drive.Mode()
		test.That(t, v, test.ShouldEqual, 0.)
	})

	t.Run("stop", func(t *testing.T) {
		test.That(t, m.Stop(ctx), test.ShouldBeNil)
		test.That(t, drive.Output(), test.ShouldEqual, 0.)
		mode, _ := steer.Mode()
		test.That(t, mode, test.ShouldEqual, motor.ModePower)
	})
}

func TestOdometry(t *testing.T) {
	k := squareKinematics(t)
	positions := func(d, angle float64) []ModulePosition {
		out := make([]ModulePosition, 4)
		for i := range out {
			out[i] = ModulePosition{Distance: d, Angle: angle}
		}
		return out
	}

	o, err := NewOdometry(k, 0.3, positions(0, 0), spatialmath.NewPose(1, 2, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, o.Pose().Heading, test.ShouldEqual, 0.)

	pose, err := o.Update(0.3, positions(0.5, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.X(), test.ShouldAlmostEqual, 1.5)
	test.That(t, pose.Y(), test.ShouldAlmostEqual, 2.)

	pose, err = o.Update(0.3, positions(1.0, math.Pi/2))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.X(), test.ShouldAlmostEqual, 1.5)
	test.That(t, pose.Y(), test.ShouldAlmostEqual, 2.5)

	// gyro turned a quarter turn in place
	pose, err = o.Update(0.3+math.Pi/2, positions(1.0, math.Pi/2))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Heading, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, pose.X(), test.ShouldAlmostEqual, 1.5)

	_, err = o.Update(0, positions(0, 0)[:2])
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, o.Reset(spatialmath.NewZeroPose(), 0, positions(0, 0)[:3]), test.ShouldNotBeNil)
}
