package subsystem

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/testutils/inject"
)

func newTree(t *testing.T) (*Subsystem, *Subsystem, *Subsystem) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	root := New("robot", logger)
	drive := New("drive", logger)
	arm := New("arm", logger)
	test.That(t, root.AddChild(drive), test.ShouldBeNil)
	test.That(t, root.AddChild(arm), test.ShouldBeNil)
	return root, drive, arm
}

func TestTreeStructure(t *testing.T) {
	logger := logging.NewTestLogger(t)
	root, drive, arm := newTree(t)
	wrist := New("wrist", logger)
	test.That(t, arm.AddChild(wrist), test.ShouldBeNil)

	test.That(t, wrist.Path(), test.ShouldEqual, "robot/arm/wrist")
	test.That(t, wrist.Parent(), test.ShouldEqual, arm)
	test.That(t, wrist.Root(), test.ShouldEqual, root)
	test.That(t, root.Children(), test.ShouldResemble, []*Subsystem{drive, arm})

	found, ok := root.Find("arm/wrist")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, found, test.ShouldEqual, wrist)
	_, ok = root.Find("arm/elbow")
	test.That(t, ok, test.ShouldBeFalse)

	var order []string
	root.Walk(func(s *Subsystem) { order = append(order, s.Name()) })
	test.That(t, order, test.ShouldResemble, []string{"robot", "drive", "arm", "wrist"})
}

func TestAddChildErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	root, drive, _ := newTree(t)

	err := root.AddChild(drive)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already has parent")

	err = root.AddChild(New("drive", logger))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already has a child named")

	err = drive.AddChild(root)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cycle")

	test.That(t, root.AddChild(nil), test.ShouldNotBeNil)
}

func TestCancelBeforeReplace(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	s := New("arm", logger)
	log := &inject.EventLog{}

	a := inject.NewAction("a", logger, log)
	b := inject.NewAction("b", logger, log)
	test.That(t, s.SetAction(ctx, a, true), test.ShouldBeTrue)
	test.That(t, s.SetAction(ctx, b, true), test.ShouldBeTrue)
	test.That(t, log.Events(), test.ShouldResemble, []string{"a.start", "a.cancel", "b.start"})
	test.That(t, s.CurrentAction(), test.ShouldEqual, b)

	c := inject.NewAction("c", logger, log)
	b.Finish()
	test.That(t, s.SetAction(ctx, c, false), test.ShouldBeTrue)
	test.That(t, b.CancelCalls, test.ShouldEqual, 0)
}

func TestSetActionWithoutInterrupt(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	s := New("arm", logger)
	a := inject.NewAction("a", logger, nil)
	b := inject.NewAction("b", logger, nil)

	test.That(t, s.SetAction(ctx, a, false), test.ShouldBeTrue)
	test.That(t, s.SetAction(ctx, b, false), test.ShouldBeFalse)
	test.That(t, s.CurrentAction(), test.ShouldEqual, a)
	test.That(t, a.CancelCalls, test.ShouldEqual, 0)
	test.That(t, b.StartCalls, test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("action rejected").Len(), test.ShouldEqual, 1)

	test.That(t, s.SetAction(ctx, a, false), test.ShouldBeTrue)
	test.That(t, a.StartCalls, test.ShouldEqual, 1)
}

func TestMutualExclusionAcrossTicks(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	s := New("arm", logger)
	running := 0
	maxRunning := 0
	var all []*inject.Action
	for i := 0; i < 5; i++ {
		a := inject.NewAction("a", logger, nil)
		a.StartFunc = func(ctx context.Context, a *inject.Action) {
			running++
			if running > maxRunning {
				maxRunning = running
			}
		}
		a.CancelFunc = func(ctx context.Context, a *inject.Action) { running-- }
		all = append(all, a)
	}
	for _, a := range all {
		s.SetAction(ctx, a, true)
		s.Tick(ctx)
		active := 0
		for _, other := range all {
			if other.State() == action.Running {
				active++
			}
		}
		test.That(t, active, test.ShouldEqual, 1)
	}
	test.That(t, maxRunning, test.ShouldEqual, 1)
}

func TestTickRunsAndClears(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	s := New("arm", logger)
	a := inject.NewAction("a", logger, nil)
	a.RunFunc = inject.FinishAfter(2)
	s.SetAction(ctx, a, true)

	s.Tick(ctx)
	test.That(t, s.CurrentAction(), test.ShouldEqual, a)
	s.Tick(ctx)
	test.That(t, s.CurrentAction(), test.ShouldBeNil)
	s.Tick(ctx)
	s.Tick(ctx)
	test.That(t, a.RunCalls, test.ShouldEqual, 2)
}

func TestActionDoneInStartNeverRuns(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	s := New("intake", logger)
	a := inject.NewAction("noop", logger, nil)
	a.StartFunc = func(ctx context.Context, a *inject.Action) { a.Finish() }

	test.That(t, s.SetAction(ctx, a, false), test.ShouldBeTrue)
	test.That(t, s.CurrentAction(), test.ShouldBeNil)
	s.Tick(ctx)
	test.That(t, a.RunCalls, test.ShouldEqual, 0)
}

func TestDefaultAction(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	var defaults []*inject.Action
	s := New("arm", logger, WithDefaultAction(func() action.Action {
		d := inject.NewAction("hold", logger, nil)
		defaults = append(defaults, d)
		return d
	}))

	s.Tick(ctx)
	test.That(t, defaults, test.ShouldHaveLength, 1)
	test.That(t, s.CurrentAction(), test.ShouldEqual, defaults[0])
	test.That(t, s.Busy(), test.ShouldBeFalse)

	move := inject.NewAction("move", logger, nil)
	move.RunFunc = inject.FinishAfter(1)
	test.That(t, s.SetAction(ctx, move, false), test.ShouldBeTrue)
	test.That(t, defaults[0].State(), test.ShouldEqual, action.Canceled)
	test.That(t, s.Busy(), test.ShouldBeTrue)

	s.Tick(ctx)
	test.That(t, s.CurrentAction(), test.ShouldBeNil)
	s.Tick(ctx)
	test.That(t, defaults, test.ShouldHaveLength, 2)
	test.That(t, s.CurrentAction(), test.ShouldEqual, defaults[1])

	s.SetDefaultAction(nil)
	s.CancelAction(ctx)
	s.Tick(ctx)
	test.That(t, s.CurrentAction(), test.ShouldBeNil)
	test.That(t, defaults, test.ShouldHaveLength, 2)
}

func TestTwoPhaseTick(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	log := &inject.EventLog{}
	sensor := 0
	refreshed := 0

	root := New("robot", logger, WithRefresh(func(ctx context.Context) error {
		log.Record("robot.refresh")
		return nil
	}))
	arm := New("arm", logger, WithRefresh(func(ctx context.Context) error {
		log.Record("arm.refresh")
		refreshed = sensor
		return nil
	}))
	test.That(t, root.AddChild(arm), test.ShouldBeNil)

	var seen []int
	parentAction := inject.NewAction("parent", logger, log)
	parentAction.RunFunc = func(ctx context.Context, a *inject.Action) { sensor++ }
	childAction := inject.NewAction("child", logger, log)
	childAction.RunFunc = func(ctx context.Context, a *inject.Action) { seen = append(seen, refreshed) }
	root.SetAction(ctx, parentAction, true)
	arm.SetAction(ctx, childAction, true)

	root.Tick(ctx)
	root.Tick(ctx)

	test.That(t, log.Events(), test.ShouldResemble, []string{
		"parent.start", "child.start",
		"robot.refresh", "arm.refresh", "parent.run", "child.run",
		"robot.refresh", "arm.refresh", "parent.run", "child.run",
	})
	// the child sees the snapshot taken before its parent ran this tick
	test.That(t, seen, test.ShouldResemble, []int{0, 1})
}

func TestRefreshErrorDoesNotStopTick(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	s := New("drive", logger, WithRefresh(func(ctx context.Context) error {
		return errors.New("bus timeout")
	}))
	a := inject.NewAction("a", logger, nil)
	s.SetAction(ctx, a, true)
	s.Tick(ctx)
	test.That(t, a.ActiveRuns, test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("refresh failed").Len(), test.ShouldEqual, 1)
}

func TestLogHardwareError(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	s := New("drive", logger)
	test.That(t, s.LogHardwareError("fl_drive", nil), test.ShouldBeFalse)
	test.That(t, s.LogHardwareError("fl_drive", errors.New("rejected")), test.ShouldBeTrue)
	entries := logs.FilterMessage("hardware request failed").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].ContextMap()["device"], test.ShouldEqual, "fl_drive")
}

func TestDescribeTree(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	root, _, arm := newTree(t)
	arm.SetAction(ctx, inject.NewAction("raise", logger, nil), true)
	test.That(t, root.Describe(0), test.ShouldEqual, "robot\n  drive\n  arm:\n      raise [running]")
}
