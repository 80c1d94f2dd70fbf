// Package robot assembles the subsystem tree from configuration, drives it at a fixed period and
// schedules routines onto it.
package robot

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/components/arm"
	"github.com/tickbot-robotics/tickbot/components/base/swerve"
	"github.com/tickbot-robotics/tickbot/components/board"
	"github.com/tickbot-robotics/tickbot/components/intake"
	"github.com/tickbot-robotics/tickbot/components/motor"
	"github.com/tickbot-robotics/tickbot/config"
	"github.com/tickbot-robotics/tickbot/control"
	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/motionplan/trajectory"
	"github.com/tickbot-robotics/tickbot/services/motion"
	"github.com/tickbot-robotics/tickbot/subsystem"
	"github.com/tickbot-robotics/tickbot/superstructure"
	"github.com/tickbot-robotics/tickbot/utils"
)

// RootName is the name of the root of the subsystem tree.
const RootName = "robot"

// DefaultPeriod is the tick period when none is given.
const DefaultPeriod = 20 * time.Millisecond

// Configuration paths read at construction.
const (
	DrivePath           = "drive.swerve"
	FollowerPath        = "drive.follower"
	FollowerTimeoutPath = "drive.follower_timeout"
	ConstraintsPath     = "drive.path_constraints"
	MidlinePath         = "field.midline_x"
	TrajectoryDirPath   = "trajectories.dir"
	ArmPath             = "arm"
	IntakePath          = "intake"
)

// Hardware is every device the robot commands or reads.
type Hardware struct {
	Drive     swerve.Devices
	ArmMotor  motor.Motor
	Roller    motor.Motor
	BeamBreak board.DigitalInput
}

// FollowerConfig is what every path follower the robot builds shares.
type FollowerConfig struct {
	Controller  control.HolonomicConfig
	Timeout     time.Duration
	Constraints control.Constraints
	MidlineX    float64
}

// FollowerConfigFromProvider reads the follower tunables.
func FollowerConfigFromProvider(p config.Provider) (FollowerConfig, error) {
	controller, err := control.HolonomicConfigFromProvider(p, FollowerPath)
	if err != nil {
		return FollowerConfig{}, err
	}
	timeout, err := config.DurationOr(p, FollowerTimeoutPath, motion.DefaultTimeout)
	if err != nil {
		return FollowerConfig{}, err
	}
	var constraints control.Constraints
	if err := config.Decode(p, ConstraintsPath, &constraints); err != nil {
		return FollowerConfig{}, err
	}
	if err := constraints.Validate(ConstraintsPath); err != nil {
		return FollowerConfig{}, err
	}
	midline, err := config.Float64(p, MidlinePath)
	if err != nil {
		return FollowerConfig{}, err
	}
	return FollowerConfig{Controller: controller, Timeout: timeout, Constraints: constraints, MidlineX: midline}, nil
}

// A Robot is the root of the subsystem tree together with what routines need to build actions
// against it.
type Robot struct {
	root           *subsystem.Subsystem
	drive          *swerve.Drivetrain
	superstructure *superstructure.Superstructure
	library        *trajectory.Library
	follower       FollowerConfig
	detector       *board.EdgeDetector

	cfg      config.Provider
	logger   logging.Logger
	clk      clock.Clock
	period   time.Duration
	mirror   bool
	routines map[string]RoutineBuilder

	// mu serializes ticks with scheduling from other goroutines.
	mu      sync.Mutex
	ticks   *atomic.Int64
	running *atomic.Bool
	workers utils.StoppableWorkers
}

// New builds the robot described by p on hw. Every configuration section is read and validated
// before any device is touched; a configuration error fails construction.
func New(ctx context.Context, p config.Provider, hw Hardware, logger logging.Logger, opts ...Option) (*Robot, error) {
	var o options
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.clk == nil {
		o.clk = clock.New()
	}
	if o.period == 0 {
		o.period = DefaultPeriod
	}
	if o.period < 0 {
		return nil, errors.Errorf("tick period must be positive, got %v", o.period)
	}

	driveCfg, err := swerve.ConfigFromProvider(p, DrivePath)
	if err != nil {
		return nil, err
	}
	armCfg, err := arm.ConfigFromProvider(p, ArmPath)
	if err != nil {
		return nil, err
	}
	intakeCfg, err := intake.ConfigFromProvider(p, IntakePath)
	if err != nil {
		return nil, err
	}
	follower, err := FollowerConfigFromProvider(p)
	if err != nil {
		return nil, err
	}
	// routine sections are validated up front too
	for _, v := range superstructure.CollectVariants {
		if _, err := superstructure.CollectConfigFromProvider(p, v); err != nil {
			return nil, err
		}
	}
	if _, err := superstructure.ScoreConfigFromProvider(p); err != nil {
		return nil, err
	}

	r := &Robot{
		follower: follower,
		cfg:      p,
		logger:   logger,
		clk:      o.clk,
		period:   o.period,
		mirror:   o.mirror,
		routines: lo.Assign(registeredRoutines(), o.routines),
		ticks:    atomic.NewInt64(0),
		running:  atomic.NewBool(false),
	}

	r.library, err = loadLibrary(ctx, p, logger.Sublogger("trajectories"))
	if err != nil {
		return nil, err
	}

	r.drive, err = swerve.New(ctx, driveCfg, hw.Drive, logger)
	if err != nil {
		return nil, err
	}
	armSub, err := arm.New(armCfg, hw.ArmMotor, logger)
	if err != nil {
		return nil, err
	}
	sensor := o.pieceSensor
	if sensor == nil {
		if hw.BeamBreak == nil {
			return nil, errors.New("intake needs a beam break input or a piece sensor")
		}
		r.detector = board.NewEdgeDetector(hw.BeamBreak, intakeCfg.Edge(), intakeCfg.BeamBreak.PollPeriod,
			logger.Sublogger("beam_break"))
		sensor = r.detector
	}
	intakeSub, err := intake.New(intakeCfg, hw.Roller, sensor, r.clk, logger)
	if err != nil {
		r.closeDetector()
		return nil, err
	}
	r.superstructure, err = superstructure.New(armSub, intakeSub, r.clk, logger)
	if err != nil {
		r.closeDetector()
		return nil, err
	}

	r.root = subsystem.New(RootName, logger)
	for _, child := range []*subsystem.Subsystem{r.drive.Subsystem, r.superstructure.Subsystem} {
		if err := r.root.AddChild(child); err != nil {
			r.closeDetector()
			return nil, err
		}
	}
	logger.Infow("robot built", "period", r.period, "mirror", r.mirror, "routines", r.Routines())
	return r, nil
}

func loadLibrary(ctx context.Context, p config.Provider, logger logging.Logger) (*trajectory.Library, error) {
	dir, err := config.String(p, TrajectoryDirPath)
	if config.IsMissingKey(err) {
		return trajectory.NewLibrary(logger), nil
	}
	if err != nil {
		return nil, err
	}
	return trajectory.LoadLibrary(ctx, dir, logger)
}

func (r *Robot) closeDetector() {
	if r.detector != nil {
		r.detector.Close()
	}
}

// Root returns the root of the subsystem tree.
func (r *Robot) Root() *subsystem.Subsystem {
	return r.root
}

// Drive returns the drivetrain.
func (r *Robot) Drive() *swerve.Drivetrain {
	return r.drive
}

// Superstructure returns the superstructure.
func (r *Robot) Superstructure() *superstructure.Superstructure {
	return r.superstructure
}

// Library returns the pre-baked trajectories.
func (r *Robot) Library() *trajectory.Library {
	return r.library
}

// Follower returns the shared follower tunables.
func (r *Robot) Follower() FollowerConfig {
	return r.follower
}

// Config returns the provider routines are built from.
func (r *Robot) Config() config.Provider {
	return r.cfg
}

// Logger returns the robot's logger.
func (r *Robot) Logger() logging.Logger {
	return r.logger
}

// Clock returns the clock ticks and timeouts run on.
func (r *Robot) Clock() clock.Clock {
	return r.clk
}

// Period returns the tick period.
func (r *Robot) Period() time.Duration {
	return r.period
}

// Mirrored reports whether paths are mirrored about the field midline.
func (r *Robot) Mirrored() bool {
	return r.mirror
}

// Ticks returns how many ticks have run.
func (r *Robot) Ticks() int64 {
	return r.ticks.Load()
}

// Routines returns the names of the routines this robot can schedule, sorted.
func (r *Robot) Routines() []string {
	names := lo.Keys(r.routines)
	sort.Strings(names)
	return names
}

// NewFollowPath returns a follower for the named library path, mirrored if the robot is.
func (r *Robot) NewFollowPath(name string, seedPose bool, callbacks ...motion.DistanceCallback) (*motion.FollowPath, error) {
	path, err := r.library.Get(name)
	if err != nil {
		return nil, err
	}
	return motion.NewFollowPath(r.drive, path, r.follower.Controller, r.followOptions(seedPose, callbacks),
		r.drive.Logger())
}

// NewFollowWaypoints returns a follower that drives from wherever the robot is through waypoints.
func (r *Robot) NewFollowWaypoints(
	name string,
	waypoints []trajectory.Waypoint,
	callbacks ...motion.DistanceCallback,
) (*motion.FollowPath, error) {
	return motion.NewFollowWaypoints(r.drive, name, waypoints, r.follower.Constraints, r.follower.Controller,
		r.followOptions(false, callbacks), r.drive.Logger())
}

func (r *Robot) followOptions(seedPose bool, callbacks []motion.DistanceCallback) motion.Options {
	return motion.Options{
		SeedPose:  seedPose,
		Mirror:    r.mirror,
		MidlineX:  r.follower.MidlineX,
		Period:    r.period,
		Timeout:   r.follower.Timeout,
		Callbacks: callbacks,
		Clock:     r.clk,
	}
}

// Tick advances the whole tree by one period.
func (r *Robot) Tick(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.root.Tick(ctx)
	r.ticks.Inc()
}

// Schedule builds a fresh instance of the named routine and makes it the root's action, canceling
// whatever routine was running. If the routine cannot be built the error is logged and returned,
// nothing is scheduled and the robot keeps running.
func (r *Robot) Schedule(ctx context.Context, name string) (action.Action, error) {
	builder, ok := r.routines[name]
	if !ok {
		err := errors.Errorf("unknown routine %q", name)
		r.logger.Errorw("routine not scheduled", "routine", name, "error", err)
		return nil, err
	}
	a, err := builder(ctx, r, r.cfg)
	if err != nil {
		r.logger.Errorw("routine not scheduled", "routine", name, "error", err)
		return nil, errors.Wrapf(err, "building routine %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.root.SetAction(ctx, a, true)
	r.logger.Infow("routine scheduled", "routine", name)
	return a, nil
}

// Start ticks the robot every period on a background goroutine until Stop is called or ctx is
// done.
func (r *Robot) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("robot is already running")
	}
	ticker := r.clk.Ticker(r.period)
	r.workers = utils.NewStoppableWorkersWithContext(ctx, func(ctx context.Context) {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			r.Tick(ctx)
		}
	})
	r.logger.Infow("tick driver started", "period", r.period)
	return nil
}

// Running reports whether the background driver is running.
func (r *Robot) Running() bool {
	return r.running.Load()
}

// Stop stops the background driver and waits for the tick in progress to finish.
func (r *Robot) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}
	r.workers.Stop()
	r.logger.Infow("tick driver stopped", "ticks", r.Ticks())
}

// Close stops the driver, cancels every action in the tree and zeroes every actuator.
func (r *Robot) Close(ctx context.Context) error {
	r.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.root.Walk(func(s *subsystem.Subsystem) { s.CancelAction(ctx) })
	err := multierr.Combine(
		r.drive.Stop(ctx),
		r.superstructure.SafeState(ctx, "robot closed"),
	)
	r.closeDetector()
	return err
}

// Describe renders the tree and every running action.
func (r *Robot) Describe() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root.Describe(0)
}
