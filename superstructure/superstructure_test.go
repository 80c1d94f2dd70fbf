package superstructure_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/components/arm"
	"github.com/tickbot-robotics/tickbot/components/intake"
	"github.com/tickbot-robotics/tickbot/components/motor"
	fakemotor "github.com/tickbot-robotics/tickbot/components/motor/fake"
	"github.com/tickbot-robotics/tickbot/config"
	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/superstructure"
	"github.com/tickbot-robotics/tickbot/testutils/inject"
)

const tick = 20 * time.Millisecond

var tunables = config.AttributeMap{
	"superstructure": map[string]interface{}{
		"collect": map[string]interface{}{
			"ground":  map[string]interface{}{"deploy_position": "ground", "roller_power": 0.8, "timeout": "1s"},
			"station": map[string]interface{}{"deploy_position": "station", "roller_power": 0.5, "timeout": "3s"},
		},
		"score": map[string]interface{}{"position": "score"},
	},
}

// sensor is a piece sensor fired by hand.
type sensor struct {
	pending bool
}

func (s *sensor) Fired() bool {
	fired := s.pending
	s.pending = false
	return fired
}

type rig struct {
	s      *superstructure.Superstructure
	pivot  *fakemotor.Motor
	roller *fakemotor.Motor
	sensor *sensor
	clk    *clock.Mock
	events *inject.EventLog
	logs   *observer.ObservedLogs
}

func newRig(t *testing.T, preloaded bool) *rig {
	t.Helper()
	logger, logs := logging.NewObservedTestLogger(t)
	r := &rig{
		pivot:  fakemotor.NewMotor("pivot"),
		roller: fakemotor.NewMotor("roller"),
		sensor: &sensor{},
		clk:    clock.NewMock(),
		events: &inject.EventLog{},
		logs:   logs,
	}
	r.pivot.SetMaxVelocity(2)

	a, err := arm.New(arm.Config{
		Positions:   map[string]float64{arm.PositionRest: 0, "ground": -0.5, "station": 0.8, "score": 1.2},
		Tolerance:   0.02,
		MinPosition: -1,
		MaxPosition: 2,
		MoveTimeout: time.Second,
	}, r.recorded("arm", r.pivot), logger)
	test.That(t, err, test.ShouldBeNil)

	in, err := intake.New(intake.Config{
		IntakePower: 0.8,
		HoldPower:   0.1,
		EjectPower:  -1,
		EjectTime:   200 * time.Millisecond,
		Preloaded:   preloaded,
	}, r.recorded("roller", r.roller), r.sensor, r.clk, logger)
	test.That(t, err, test.ShouldBeNil)

	r.s, err = superstructure.New(a, in, r.clk, logger)
	test.That(t, err, test.ShouldBeNil)
	return r
}

// recorded wraps m so every output command lands in the event log.
func (r *rig) recorded(name string, m motor.Motor) motor.Motor {
	in := inject.NewMotor(m)
	in.SetPowerFunc = func(ctx context.Context, power float64) error {
		r.events.Record(fmt.Sprintf("%s.power %g", name, power))
		return m.SetPower(ctx, power)
	}
	in.SetTargetFunc = func(ctx context.Context, mode motor.ControlMode, value float64) error {
		r.events.Record(fmt.Sprintf("%s.target %g", name, value))
		return m.SetTarget(ctx, mode, value)
	}
	return in
}

func (r *rig) tick(ctx context.Context) {
	r.s.Tick(ctx)
	r.pivot.Step(tick)
	r.roller.Step(tick)
	r.clk.Add(tick)
}

// runUntilDone ticks until a is done, calling each (if set) before every tick.
func (r *rig) runUntilDone(ctx context.Context, a action.Action, limit int, each func()) int {
	ticks := 0
	for !a.IsDone() && ticks < limit {
		if each != nil {
			each()
		}
		r.tick(ctx)
		ticks++
	}
	return ticks
}

func (r *rig) transitions() []string {
	var out []string
	for _, e := range r.logs.FilterMessage("state transition").All() {
		fields := e.ContextMap()
		out = append(out, fmt.Sprintf("%v->%v", fields["from"], fields["to"]))
	}
	return out
}

func (r *rig) grabbing() bool {
	current := r.s.Intake().CurrentAction()
	return current != nil && current.Name() == "grab"
}

func TestCollectAcquires(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)
	collect, err := superstructure.NewCollect(r.s, superstructure.CollectGround, tunables)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.s.SetAction(ctx, collect, false), test.ShouldBeTrue)

	waited := 0
	ticks := r.runUntilDone(ctx, collect, 500, func() {
		if r.grabbing() {
			waited++
			if waited == 5 {
				r.sensor.pending = true
			}
		}
	})
	test.That(t, ticks, test.ShouldBeLessThan, 500)
	test.That(t, collect.State(), test.ShouldEqual, action.Done)
	test.That(t, collect.Acquired(), test.ShouldBeTrue)
	test.That(t, collect.Recovered(), test.ShouldBeFalse)
	test.That(t, r.s.Intake().HasPiece(), test.ShouldBeTrue)
	test.That(t, r.s.Arm().Position(), test.ShouldAlmostEqual, 0, 0.02)
	test.That(t, r.transitions(), test.ShouldResemble, []string{
		"deploying->intaking",
		"intaking->stowing",
		"stowing->finished",
	})
	test.That(t, r.logs.FilterMessage("safe state").Len(), test.ShouldEqual, 0)
}

func TestCollectNeverAcquiresRecovers(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)
	collect, err := superstructure.NewCollect(r.s, superstructure.CollectGround, tunables)
	test.That(t, err, test.ShouldBeNil)
	r.s.SetAction(ctx, collect, false)

	ticks := r.runUntilDone(ctx, collect, 1000, nil)
	test.That(t, ticks, test.ShouldBeLessThan, 1000)
	test.That(t, collect.State(), test.ShouldEqual, action.Done)
	test.That(t, collect.Acquired(), test.ShouldBeFalse)
	test.That(t, collect.Recovered(), test.ShouldBeTrue)
	test.That(t, r.transitions(), test.ShouldResemble, []string{
		"deploying->intaking",
		"intaking->recovering",
		"recovering->finished",
	})
	test.That(t, r.logs.FilterMessage("safe state").Len(), test.ShouldEqual, 1)
	test.That(t, r.roller.Output(), test.ShouldEqual, 0)
	test.That(t, r.s.Arm().Position(), test.ShouldAlmostEqual, 0, 0.02)

	// Entering recovery zeroes both actuators before the arm is sent to rest.
	events := r.events.Events()
	rest := -1
	for i, e := range events {
		if e == "arm.target 0" {
			rest = i
			break
		}
	}
	test.That(t, rest, test.ShouldBeGreaterThanOrEqualTo, 2)
	test.That(t, events[rest-2:rest], test.ShouldResemble, []string{"arm.power 0", "roller.power 0"})
}

func TestCollectDeployFailureRecovers(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)
	r.pivot.SetPosition(0.3)
	r.pivot.SetMaxVelocity(0)
	collect, err := superstructure.NewCollect(r.s, superstructure.CollectGround, tunables)
	test.That(t, err, test.ShouldBeNil)
	r.s.SetAction(ctx, collect, false)

	r.runUntilDone(ctx, collect, 1000, nil)
	test.That(t, collect.State(), test.ShouldEqual, action.Done)
	test.That(t, collect.Recovered(), test.ShouldBeTrue)
	test.That(t, r.transitions(), test.ShouldResemble, []string{
		"deploying->recovering",
		"recovering->finished",
	})
	// the rest move timed out too, which leaves the arm at zero output
	mode, value := r.pivot.Mode()
	test.That(t, mode, test.ShouldEqual, motor.ModePower)
	test.That(t, value, test.ShouldEqual, 0)
	test.That(t, r.roller.Output(), test.ShouldEqual, 0)
}

func TestCollectVariants(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)
	collect, err := superstructure.NewCollect(r.s, superstructure.CollectStation, tunables)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, collect.Variant(), test.ShouldEqual, superstructure.CollectStation)
	test.That(t, collect.Name(), test.ShouldEqual, "collect station")

	r.s.SetAction(ctx, collect, false)
	r.runUntilDone(ctx, collect, 500, func() {
		if r.grabbing() {
			test.That(t, r.s.Arm().Position(), test.ShouldAlmostEqual, 0.8, 0.02)
			test.That(t, r.roller.Output(), test.ShouldEqual, 0.5)
			r.sensor.pending = true
		}
	})
	test.That(t, collect.Acquired(), test.ShouldBeTrue)

	for _, v := range superstructure.CollectVariants {
		_, err := superstructure.NewCollect(r.s, v, config.AttributeMap{})
		test.That(t, config.IsMissingKey(err), test.ShouldBeTrue)
	}

	bad := config.AttributeMap{"superstructure": map[string]interface{}{
		"collect": map[string]interface{}{
			"ground": map[string]interface{}{"deploy_position": "moon", "roller_power": 0.8, "timeout": "1s"},
		},
	}}
	_, err = superstructure.NewCollect(r.s, superstructure.CollectGround, bad)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `no position named "moon"`)
}

func TestCollectConfigNumericTimeoutIsSeconds(t *testing.T) {
	numeric := config.AttributeMap{"superstructure": map[string]interface{}{
		"collect": map[string]interface{}{
			"ground": map[string]interface{}{"deploy_position": "ground", "roller_power": 0.8, "timeout": 2.0},
		},
	}}
	cfg, err := superstructure.CollectConfigFromProvider(numeric, superstructure.CollectGround)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Timeout, test.ShouldEqual, 2*time.Second)
}

func TestCollectAlreadyHolding(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, true)
	collect, err := superstructure.NewCollect(r.s, superstructure.CollectGround, tunables)
	test.That(t, err, test.ShouldBeNil)
	r.s.SetAction(ctx, collect, false)
	test.That(t, collect.IsDone(), test.ShouldBeTrue)
	test.That(t, collect.Acquired(), test.ShouldBeTrue)
	test.That(t, r.events.Events(), test.ShouldBeEmpty)
}

func TestCollectCancel(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)
	collect, err := superstructure.NewCollect(r.s, superstructure.CollectGround, tunables)
	test.That(t, err, test.ShouldBeNil)
	r.s.SetAction(ctx, collect, false)
	for i := 0; i < 100 && !r.grabbing(); i++ {
		r.tick(ctx)
	}
	test.That(t, r.grabbing(), test.ShouldBeTrue)
	test.That(t, r.roller.Output(), test.ShouldEqual, 0.8)

	r.s.CancelAction(ctx)
	test.That(t, collect.State(), test.ShouldEqual, action.Canceled)
	test.That(t, r.roller.Output(), test.ShouldEqual, 0)
}

func TestReleaseWithoutPieceAborts(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)
	release := r.s.NewRelease()
	r.s.SetAction(ctx, release, false)
	test.That(t, release.IsDone(), test.ShouldBeTrue)

	aborted := r.logs.FilterMessage("action aborted").All()
	test.That(t, aborted, test.ShouldHaveLength, 1)
	test.That(t, aborted[0].ContextMap()["reason"], test.ShouldEqual, "no piece held")
	test.That(t, r.roller.Requests(), test.ShouldEqual, 0)
}

func TestScorePipeline(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, true)
	score, err := superstructure.NewScore(r.s, tunables)
	test.That(t, err, test.ShouldBeNil)
	r.s.SetAction(ctx, score, false)

	sawEject := false
	ticks := r.runUntilDone(ctx, score, 500, func() {
		if r.roller.Output() == -1 {
			sawEject = true
			test.That(t, r.s.Arm().Position(), test.ShouldAlmostEqual, 1.2, 0.02)
		}
	})
	test.That(t, ticks, test.ShouldBeLessThan, 500)
	test.That(t, sawEject, test.ShouldBeTrue)
	test.That(t, score.State(), test.ShouldEqual, action.Done)
	test.That(t, score.Recovered(), test.ShouldBeFalse)
	test.That(t, r.s.Intake().HasPiece(), test.ShouldBeFalse)
	test.That(t, r.s.Arm().Position(), test.ShouldAlmostEqual, 0, 0.02)
	test.That(t, r.transitions(), test.ShouldResemble, []string{
		"raising->releasing",
		"releasing->stowing",
		"stowing->finished",
	})
}

func TestScoreRaiseFailureRecovers(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, true)
	r.pivot.SetMaxVelocity(0.1)
	score, err := superstructure.NewScore(r.s, tunables)
	test.That(t, err, test.ShouldBeNil)
	r.s.SetAction(ctx, score, false)

	r.runUntilDone(ctx, score, 1000, nil)
	test.That(t, score.Recovered(), test.ShouldBeTrue)
	test.That(t, r.transitions(), test.ShouldResemble, []string{
		"raising->recovering",
		"recovering->finished",
	})
	// the piece was never released
	test.That(t, r.s.Intake().HasPiece(), test.ShouldBeTrue)
}

func TestScoreWithoutPieceAborts(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)
	score, err := superstructure.NewScore(r.s, tunables)
	test.That(t, err, test.ShouldBeNil)
	r.s.SetAction(ctx, score, false)
	test.That(t, score.IsDone(), test.ShouldBeTrue)
	test.That(t, r.events.Events(), test.ShouldBeEmpty)

	_, err = superstructure.NewScore(r.s, config.AttributeMap{})
	test.That(t, config.IsMissingKey(err), test.ShouldBeTrue)
}

func TestTreeAndDescribe(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)
	test.That(t, r.s.Arm().Path(), test.ShouldEqual, "superstructure/arm")
	test.That(t, r.s.Intake().Path(), test.ShouldEqual, "superstructure/intake")

	collect, err := superstructure.NewCollect(r.s, superstructure.CollectGround, tunables)
	test.That(t, err, test.ShouldBeNil)
	r.s.SetAction(ctx, collect, false)
	test.That(t, collect.Describe(0), test.ShouldStartWith, "collect ground [running] (deploying)\n  move to ground with timeout on arm [running]")
}
