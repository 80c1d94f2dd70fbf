// Package motion drives a holonomic base along trajectories.
package motion

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/control"
	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/motionplan/trajectory"
	"github.com/tickbot-robotics/tickbot/spatialmath"
	"github.com/tickbot-robotics/tickbot/utils"
)

// DefaultTimeout is how long a follower keeps correcting after the last sample before giving up.
const DefaultTimeout = time.Second

// Base is the drivetrain surface a path follower commands.
type Base interface {
	Name() string
	// Pose is the estimated field pose as of the last refresh.
	Pose() spatialmath.Pose
	ResetPose(ctx context.Context, pose spatialmath.Pose) error
	// Drive applies robot-relative speeds.
	Drive(ctx context.Context, speeds spatialmath.ChassisSpeeds) error
	Stop(ctx context.Context) error
}

// A DistanceCallback runs Fn once per follower run, on the first tick the distance travelled
// since Start reaches Distance.
type DistanceCallback struct {
	Distance float64
	Fn       func(ctx context.Context)
}

type armedCallback struct {
	DistanceCallback
	fired bool
}

// Options tune a path follower.
type Options struct {
	// SeedPose resets the base pose to the start of the path on Start. Only the first path of a
	// routine should do this; later paths would discard a corrected estimate.
	SeedPose bool
	// Mirror reflects the path about x = MidlineX.
	Mirror   bool
	MidlineX float64
	// Period is the tick period. Zero means trajectory.DefaultSamplePeriod.
	Period time.Duration
	// Timeout bounds the time spent past the last sample. Zero means DefaultTimeout.
	Timeout   time.Duration
	Callbacks []DistanceCallback
	// Clock drives the timeout. Nil means the wall clock.
	Clock clock.Clock
}

// FollowPath tracks a trajectory with a HolonomicController. The path is either fixed at
// construction or generated on Start from the current pose through a list of waypoints.
type FollowPath struct {
	action.Base

	base            Base
	controller      *control.HolonomicController
	period          time.Duration
	seedPose        bool
	timeout         *utils.Timer
	callbacks       []*armedCallback
	path            *trajectory.Trajectory
	waypoints       []trajectory.Waypoint
	constraints     control.Constraints
	turnConstraints control.Constraints

	active    *trajectory.Trajectory
	index     int
	lastIndex int
	traveled  float64
	lastPose  spatialmath.Pose
	reference trajectory.Sample
}

// NewFollowPath returns an action that follows path. With opts.Mirror the path is mirrored once,
// here.
func NewFollowPath(
	base Base,
	path *trajectory.Trajectory,
	cfg control.HolonomicConfig,
	opts Options,
	logger logging.Logger,
) (*FollowPath, error) {
	if path == nil {
		return nil, errors.New("path follower needs a trajectory")
	}
	if opts.Mirror {
		path = path.Mirror(opts.MidlineX)
	}
	f, err := newFollower("follow "+path.Name(), base, cfg, opts, logger)
	if err != nil {
		return nil, err
	}
	f.path = path
	return f, nil
}

// NewFollowWaypoints returns an action that, on Start, generates a path from the base's current
// pose through waypoints and follows it. With opts.Mirror the waypoints are mirrored once, here.
// SeedPose is ignored since the path already starts at the current pose.
func NewFollowWaypoints(
	base Base,
	name string,
	waypoints []trajectory.Waypoint,
	constraints control.Constraints,
	cfg control.HolonomicConfig,
	opts Options,
	logger logging.Logger,
) (*FollowPath, error) {
	if len(waypoints) == 0 {
		return nil, errors.Errorf("path %q needs at least one waypoint", name)
	}
	if err := constraints.Validate(name); err != nil {
		return nil, err
	}
	if opts.Mirror {
		waypoints = MirrorWaypoints(waypoints, opts.MidlineX)
	}
	opts.SeedPose = false
	f, err := newFollower("follow "+name, base, cfg, opts, logger)
	if err != nil {
		return nil, err
	}
	f.waypoints = append([]trajectory.Waypoint(nil), waypoints...)
	f.constraints = constraints
	return f, nil
}

func newFollower(name string, base Base, cfg control.HolonomicConfig, opts Options, logger logging.Logger) (*FollowPath, error) {
	if base == nil {
		return nil, errors.New("path follower needs a base")
	}
	controller, err := control.NewHolonomicController(cfg)
	if err != nil {
		return nil, err
	}
	if opts.Period == 0 {
		opts.Period = trajectory.DefaultSamplePeriod
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Period < 0 || opts.Timeout < 0 {
		return nil, errors.Errorf("%s needs a positive period and timeout", name)
	}
	callbacks := lo.Map(opts.Callbacks, func(cb DistanceCallback, _ int) *armedCallback {
		return &armedCallback{DistanceCallback: cb}
	})
	sort.SliceStable(callbacks, func(i, j int) bool { return callbacks[i].Distance < callbacks[j].Distance })
	return &FollowPath{
		Base:            action.NewBase(name, logger),
		base:            base,
		controller:      controller,
		period:          opts.Period,
		seedPose:        opts.SeedPose,
		timeout:         utils.NewTimer(opts.Clock, opts.Timeout),
		callbacks:       callbacks,
		turnConstraints: cfg.RotationConstraints,
	}, nil
}

// MirrorWaypoints reflects waypoints about x = midline.
func MirrorWaypoints(waypoints []trajectory.Waypoint, midline float64) []trajectory.Waypoint {
	return lo.Map(waypoints, func(w trajectory.Waypoint, _ int) trajectory.Waypoint {
		return trajectory.Waypoint{X: 2*midline - w.X, Y: w.Y, Rotation: utils.WrapRad(math.Pi - w.Rotation)}
	})
}

// Start resolves the path, seeds the pose if asked to and arms the callbacks.
func (f *FollowPath) Start(ctx context.Context) {
	if !f.Begin() {
		return
	}
	f.index = 0
	f.traveled = 0
	f.timeout.Stop()
	for _, cb := range f.callbacks {
		cb.fired = false
	}

	path := f.path
	if path == nil {
		var generated *trajectory.Trajectory
		var err error
		start := f.base.Pose()
		if trajectory.InPlace(start, f.waypoints) {
			// Only the heading changes, so the turn is profiled under the rotation constraints.
			goal := f.waypoints[len(f.waypoints)-1].Rotation
			generated, err = trajectory.GenerateTurn(f.Name(), start, goal, f.turnConstraints, f.period)
		} else {
			generated, err = trajectory.Generate(f.Name(), start, f.waypoints, f.constraints, f.period)
		}
		if err != nil {
			f.Abort(err.Error())
			return
		}
		path = generated
	}
	f.active = path
	f.lastIndex = int(path.Duration() / f.period)
	if path.Duration()%f.period != 0 {
		f.lastIndex++
	}

	if f.seedPose {
		utils.LogHardwareError(f.Logger(), f.base.Name(), f.base.ResetPose(ctx, path.Initial().RobotPose()))
	}
	f.lastPose = f.base.Pose()
	f.controller.Reset(f.lastPose)
	f.reference = path.Initial()
}

// Run advances the reference one tick and drives toward it.
func (f *FollowPath) Run(ctx context.Context) {
	if !f.ShouldRun() {
		return
	}
	pose := f.base.Pose()
	f.traveled += pose.Distance(f.lastPose)
	f.lastPose = pose
	f.fireCallbacks(ctx)

	if f.index < f.lastIndex {
		f.index++
	}
	f.reference = f.active.Sample((time.Duration(f.index) * f.period).Seconds())
	speeds := f.controller.Calculate(pose, f.reference.Reference(), f.period)

	if f.PastEnd() {
		f.timeout.StartIfStopped()
		switch {
		case f.controller.AtReference():
			f.finish(ctx, "converged")
			return
		case f.timeout.Expired():
			f.finish(ctx, "timed out")
			return
		}
	}
	utils.LogHardwareError(f.Logger(), f.base.Name(), f.base.Drive(ctx, speeds))
}

func (f *FollowPath) finish(ctx context.Context, how string) {
	pe := f.controller.PoseError()
	f.Logger().Infow("path ended", "result", how,
		"error_x", pe.Point.X, "error_y", pe.Point.Y, "error_heading", pe.Heading)
	f.MarkDone()
	utils.LogHardwareError(f.Logger(), f.base.Name(), f.base.Stop(ctx))
}

func (f *FollowPath) fireCallbacks(ctx context.Context) {
	due := lo.Filter(f.callbacks, func(cb *armedCallback, _ int) bool {
		return !cb.fired && f.traveled >= cb.Distance
	})
	for _, cb := range due {
		cb.fired = true
		f.Logger().Debugw("distance callback", "distance", cb.Distance, "traveled", f.traveled)
		if cb.Fn != nil {
			cb.Fn(ctx)
		}
	}
}

// Cancel stops the base.
func (f *FollowPath) Cancel(ctx context.Context) {
	if f.MarkCanceled() {
		utils.LogHardwareError(f.Logger(), f.base.Name(), f.base.Stop(ctx))
	}
}

// PastEnd reports whether the reference has reached the last sample.
func (f *FollowPath) PastEnd() bool {
	return f.active != nil && f.index >= f.lastIndex
}

// Traveled is the distance covered since Start.
func (f *FollowPath) Traveled() float64 {
	return f.traveled
}

// Reference is the sample being tracked.
func (f *FollowPath) Reference() trajectory.Sample {
	return f.reference
}

// Path is the trajectory being followed, or nil before a generated path's Start.
func (f *FollowPath) Path() *trajectory.Trajectory {
	if f.active != nil {
		return f.active
	}
	return f.path
}

// Controller exposes the tracking controller.
func (f *FollowPath) Controller() *control.HolonomicController {
	return f.controller
}

// Describe includes tick progress through the path.
func (f *FollowPath) Describe(indent int) string {
	if f.active == nil {
		return f.Base.Describe(indent)
	}
	return fmt.Sprintf("%s (%d/%d)", f.Base.Describe(indent), f.index, f.lastIndex)
}
