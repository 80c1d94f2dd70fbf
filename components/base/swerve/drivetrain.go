package swerve

import (
	"context"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/tickbot-robotics/tickbot/components/motor"
	"github.com/tickbot-robotics/tickbot/components/movementsensor"
	"github.com/tickbot-robotics/tickbot/config"
	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/spatialmath"
	"github.com/tickbot-robotics/tickbot/subsystem"
)

// SubsystemName is the drivetrain's name in the subsystem tree.
const SubsystemName = "drive"

// ModuleConfig places one module relative to the robot center, in meters.
type ModuleConfig struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Config describes a swerve drivetrain.
type Config struct {
	Modules  []ModuleConfig `json:"modules"`
	MaxSpeed float64        `json:"max_speed"`
	// Period is the control loop period used to discretize commands.
	Period time.Duration `json:"period"`
}

// Validate checks the configuration found at path.
func (c *Config) Validate(path string) error {
	if len(c.Modules) < 2 {
		return errors.Errorf("%s needs at least 2 modules", path)
	}
	names := lo.Map(c.Modules, func(m ModuleConfig, _ int) string { return m.Name })
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return errors.Errorf("%s has duplicate module names %v", path, dups)
	}
	if lo.Contains(names, "") {
		return errors.Errorf("%s has a module without a name", path)
	}
	if !(c.MaxSpeed > 0) {
		return errors.Errorf("%s needs a positive max_speed", path)
	}
	if c.Period <= 0 {
		return errors.Errorf("%s needs a positive period", path)
	}
	return nil
}

// ConfigFromProvider decodes and validates the drivetrain section at path.
func ConfigFromProvider(p config.Provider, path string) (Config, error) {
	var cfg Config
	if err := config.Decode(p, path, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Devices are the drivetrain's hardware, keyed by module name.
type Devices struct {
	Drive map[string]motor.Motor
	Steer map[string]motor.Motor
	Gyro  movementsensor.Gyro
}

// A Drivetrain is the swerve subsystem. Its refresh phase snapshots module states and the gyro
// and advances odometry; everything else reads that snapshot.
type Drivetrain struct {
	*subsystem.Subsystem

	cfg     Config
	modules []*Module
	gyro    movementsensor.Gyro
	kin     *Kinematics
	odom    *Odometry

	heading     float64
	measured    spatialmath.ChassisSpeeds
	lastCommand spatialmath.ChassisSpeeds
}

// New builds a drivetrain and takes an initial sensor snapshot with the pose at the origin.
func New(ctx context.Context, cfg Config, devices Devices, logger logging.Logger) (*Drivetrain, error) {
	if err := cfg.Validate(SubsystemName); err != nil {
		return nil, err
	}
	if devices.Gyro == nil {
		return nil, errors.New("swerve drivetrain needs a gyro")
	}
	d := &Drivetrain{cfg: cfg, gyro: devices.Gyro}
	offsets := make([]r2.Point, 0, len(cfg.Modules))
	for _, mc := range cfg.Modules {
		drive, ok := devices.Drive[mc.Name]
		if !ok {
			return nil, errors.Errorf("no drive motor for module %q", mc.Name)
		}
		steer, ok := devices.Steer[mc.Name]
		if !ok {
			return nil, errors.Errorf("no steer motor for module %q", mc.Name)
		}
		offset := r2.Point{X: mc.X, Y: mc.Y}
		d.modules = append(d.modules, NewModule(mc.Name, offset, drive, steer))
		offsets = append(offsets, offset)
	}
	kin, err := NewKinematics(offsets...)
	if err != nil {
		return nil, err
	}
	d.kin = kin
	d.Subsystem = subsystem.New(SubsystemName, logger,
		subsystem.WithRefresh(d.refresh),
		subsystem.WithDefaultAction(d.newIdleAction),
	)

	if err := d.readSensors(ctx); err != nil {
		return nil, errors.Wrap(err, "initial drivetrain read")
	}
	odom, err := NewOdometry(kin, d.heading, d.positions(), spatialmath.NewZeroPose())
	if err != nil {
		return nil, err
	}
	d.odom = odom
	return d, nil
}

func (d *Drivetrain) readSensors(ctx context.Context) error {
	var errs error
	for _, m := range d.modules {
		errs = multierr.Combine(errs, m.Refresh(ctx))
	}
	heading, err := d.gyro.Heading(ctx)
	if err != nil {
		errs = multierr.Combine(errs, errors.Wrap(err, "gyro heading"))
	} else {
		d.heading = heading
	}
	return errs
}

func (d *Drivetrain) positions() []ModulePosition {
	return lo.Map(d.modules, func(m *Module, _ int) ModulePosition { return m.Position() })
}

func (d *Drivetrain) states() []ModuleState {
	return lo.Map(d.modules, func(m *Module, _ int) ModuleState { return m.State() })
}

// refresh takes this tick's snapshot. Odometry is not advanced on a tick with a failed read.
func (d *Drivetrain) refresh(ctx context.Context) error {
	if err := d.readSensors(ctx); err != nil {
		return err
	}
	if _, err := d.odom.Update(d.heading, d.positions()); err != nil {
		return err
	}
	speeds, err := d.kin.ToChassisSpeeds(d.states())
	if err != nil {
		return err
	}
	d.measured = speeds
	return nil
}

// Pose returns the pose estimated at the last refresh.
func (d *Drivetrain) Pose() spatialmath.Pose {
	return d.odom.Pose()
}

// ResetPose declares the robot to be at pose from now on.
func (d *Drivetrain) ResetPose(ctx context.Context, pose spatialmath.Pose) error {
	if err := d.odom.Reset(pose, d.heading, d.positions()); err != nil {
		return err
	}
	d.Logger().Infow("pose reset", "pose", pose.String())
	return nil
}

// MeasuredSpeeds returns the robot-relative speeds at the last refresh.
func (d *Drivetrain) MeasuredSpeeds() spatialmath.ChassisSpeeds {
	return d.measured
}

// LastCommand returns the most recent speeds passed to Drive.
func (d *Drivetrain) LastCommand() spatialmath.ChassisSpeeds {
	return d.lastCommand
}

// Modules returns the modules in configuration order.
func (d *Drivetrain) Modules() []*Module {
	return append([]*Module(nil), d.modules...)
}

// Kinematics returns the drivetrain kinematics.
func (d *Drivetrain) Kinematics() *Kinematics {
	return d.kin
}

// MaxSpeed returns the fastest any module may be driven.
func (d *Drivetrain) MaxSpeed() float64 {
	return d.cfg.MaxSpeed
}

// Drive commands robot-relative speeds. Module speeds are scaled down together if any would exceed
// the maximum. Every module is commanded even if some requests fail.
func (d *Drivetrain) Drive(ctx context.Context, speeds spatialmath.ChassisSpeeds) error {
	d.lastCommand = speeds
	states := d.kin.ToModuleStates(speeds.Discretize(d.cfg.Period.Seconds()))
	DesaturateWheelSpeeds(states, d.cfg.MaxSpeed)
	var errs error
	for i, m := range d.modules {
		errs = multierr.Combine(errs, m.SetDesiredState(ctx, states[i]))
	}
	return errs
}

// DriveFieldRelative commands field-relative speeds using the estimated heading.
func (d *Drivetrain) DriveFieldRelative(ctx context.Context, vx, vy, omega float64) error {
	return d.Drive(ctx, spatialmath.FromFieldRelative(vx, vy, omega, d.Pose().Heading))
}

// Stop zeroes every module motor.
func (d *Drivetrain) Stop(ctx context.Context) error {
	d.lastCommand = spatialmath.ChassisSpeeds{}
	var errs error
	for _, m := range d.modules {
		errs = multierr.Combine(errs, m.Stop(ctx))
	}
	return errs
}
