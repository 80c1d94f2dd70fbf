package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/tickbot-robotics/tickbot/components/motor"
)

func TestFakeMotorModes(t *testing.T) {
	ctx := context.Background()
	m := NewMotor("m")
	m.SetMaxVelocity(2)

	test.That(t, m.SetPower(ctx, 0.5), test.ShouldBeNil)
	m.Step(time.Second)
	pos, err := m.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldAlmostEqual, 1.0)

	test.That(t, m.SetTarget(ctx, motor.ModeVelocity, -1), test.ShouldBeNil)
	m.Step(500 * time.Millisecond)
	pos, _ = m.Position(ctx)
	test.That(t, pos, test.ShouldAlmostEqual, 0.5)
	at, err := m.IsAtTarget(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, at, test.ShouldBeTrue)

	test.That(t, m.SetTarget(ctx, motor.ModePosition, 3), test.ShouldBeNil)
	m.Step(time.Second)
	at, _ = m.IsAtTarget(ctx)
	test.That(t, at, test.ShouldBeFalse)
	m.Step(time.Second)
	pos, _ = m.Position(ctx)
	test.That(t, pos, test.ShouldAlmostEqual, 3.0)
	at, _ = m.IsAtTarget(ctx)
	test.That(t, at, test.ShouldBeTrue)
}

func TestFakeMotorErrors(t *testing.T) {
	ctx := context.Background()
	m := NewMotor("m")

	err := m.SetPower(ctx, 1.5)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "outside [-1, 1]")

	m.SetFaults(motor.FaultOverCurrent)
	test.That(t, m.SetPower(ctx, 0.5), test.ShouldNotBeNil)
	test.That(t, m.SetPower(ctx, 0), test.ShouldBeNil)
	m.SetFaults()

	m.Fail(errors.New("can timeout"))
	test.That(t, motor.Stop(ctx, m), test.ShouldNotBeNil)
	_, err = m.Position(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	m.Fail(nil)
	test.That(t, motor.Stop(ctx, m), test.ShouldBeNil)
	test.That(t, m.Output(), test.ShouldEqual, 0.0)
}
