package arm_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/components/arm"
	"github.com/tickbot-robotics/tickbot/components/motor"
	fakemotor "github.com/tickbot-robotics/tickbot/components/motor/fake"
	"github.com/tickbot-robotics/tickbot/config"
	"github.com/tickbot-robotics/tickbot/logging"
)

func testConfig() arm.Config {
	return arm.Config{
		Positions:   map[string]float64{arm.PositionRest: 0, "ground": -0.5, "score": 1.2},
		Tolerance:   0.02,
		MinPosition: -1,
		MaxPosition: 2,
	}
}

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(*arm.Config)
		err    string
	}{
		{"valid", func(*arm.Config) {}, ""},
		{"no rest", func(c *arm.Config) { delete(c.Positions, arm.PositionRest) }, `missing config key "arm.positions.rest"`},
		{"no tolerance", func(c *arm.Config) { c.Tolerance = 0 }, "arm needs a positive tolerance"},
		{"inverted range", func(c *arm.Config) { c.MinPosition = 3 }, "arm min_position 3 must be below max_position 2"},
		{"out of range", func(c *arm.Config) { c.Positions["high"] = 5 }, `arm position "high" (5) is outside [-1, 2]`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.modify(&cfg)
			err := cfg.Validate("arm")
			if tc.err == "" {
				test.That(t, err, test.ShouldBeNil)
				return
			}
			test.That(t, err, test.ShouldBeError, errors.New(tc.err))
		})
	}
}

func TestConfigFromProvider(t *testing.T) {
	p := config.AttributeMap{"arm": map[string]interface{}{
		"positions":    map[string]interface{}{"rest": 0.1, "score": "1.5"},
		"tolerance":    0.05,
		"min_position": -1,
		"max_position": 2,
	}}
	cfg, err := arm.ConfigFromProvider(p, "arm")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Positions["score"], test.ShouldEqual, 1.5)
	test.That(t, cfg.MoveTimeout, test.ShouldEqual, arm.DefaultMoveTimeout)

	_, err = arm.ConfigFromProvider(config.AttributeMap{}, "arm")
	test.That(t, config.IsMissingKey(err), test.ShouldBeTrue)
}

func TestMoveTo(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	m := fakemotor.NewMotor("pivot")
	m.SetMaxVelocity(2)
	a, err := arm.New(testConfig(), m, logger)
	test.That(t, err, test.ShouldBeNil)

	_, err = a.NewMoveTo("nowhere")
	test.That(t, err, test.ShouldNotBeNil)

	move, err := a.NewMoveTo("score")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.SetAction(ctx, move, false), test.ShouldBeTrue)
	mode, value := m.Mode()
	test.That(t, mode, test.ShouldEqual, motor.ModePosition)
	test.That(t, value, test.ShouldEqual, 1.2)

	ticks := 0
	for !move.IsDone() && ticks < 100 {
		a.Tick(ctx)
		m.Step(20 * time.Millisecond)
		ticks++
	}
	// 1.2 rad at 2 rad/s is 30 steps, seen by the refresh of the next tick
	test.That(t, ticks, test.ShouldEqual, 31)
	test.That(t, move.State(), test.ShouldEqual, action.Done)
	test.That(t, a.AtTarget(), test.ShouldBeTrue)
	test.That(t, a.Position(), test.ShouldAlmostEqual, 1.2)
	test.That(t, a.CurrentAction(), test.ShouldBeNil)
}

func TestMoveToCancelZeroes(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	m := fakemotor.NewMotor("pivot")
	a, err := arm.New(testConfig(), m, logger)
	test.That(t, err, test.ShouldBeNil)

	move, err := a.NewMoveTo("ground")
	test.That(t, err, test.ShouldBeNil)
	a.SetAction(ctx, move, false)
	a.Tick(ctx)
	a.CancelAction(ctx)

	mode, value := m.Mode()
	test.That(t, mode, test.ShouldEqual, motor.ModePower)
	test.That(t, value, test.ShouldEqual, 0)
	_, has := a.Target()
	test.That(t, has, test.ShouldBeFalse)
	test.That(t, move.State(), test.ShouldEqual, action.Canceled)
}

func TestMoveToRetriesRejectedCommand(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	m := fakemotor.NewMotor("pivot")
	a, err := arm.New(testConfig(), m, logger)
	test.That(t, err, test.ShouldBeNil)

	m.Fail(errors.New("can timeout"))
	move := a.NewMoveToAngle(0.5)
	a.SetAction(ctx, move, false)
	test.That(t, logs.FilterMessage("hardware request failed").Len(), test.ShouldEqual, 1)

	m.Fail(nil)
	a.Tick(ctx)
	mode, value := m.Mode()
	test.That(t, mode, test.ShouldEqual, motor.ModePosition)
	test.That(t, value, test.ShouldEqual, 0.5)
	test.That(t, move.IsDone(), test.ShouldBeFalse)

	err = a.SetTarget(ctx, 10)
	test.That(t, err, test.ShouldNotBeNil)
	target, _ := a.Target()
	test.That(t, target, test.ShouldEqual, 0.5)
}

func TestRefreshFaults(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	m := fakemotor.NewMotor("pivot")
	a, err := arm.New(testConfig(), m, logger)
	test.That(t, err, test.ShouldBeNil)

	m.SetFaults(motor.FaultOverTemp)
	a.Tick(ctx)
	a.Tick(ctx)
	test.That(t, a.Faulted(), test.ShouldBeTrue)
	test.That(t, logs.FilterMessage("arm motor faulted").Len(), test.ShouldEqual, 1)
}
