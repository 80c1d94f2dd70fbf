// Package arm implements a single-joint pivot arm subsystem driven to named positions by a
// closed loop position controller.
package arm

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/tickbot-robotics/tickbot/components/motor"
	"github.com/tickbot-robotics/tickbot/config"
	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/subsystem"
)

// SubsystemName is the arm's name in the subsystem tree.
const SubsystemName = "arm"

// PositionRest is the position every configuration must name. The arm returns there to recover.
const PositionRest = "rest"

// DefaultMoveTimeout bounds a move when the configuration does not.
const DefaultMoveTimeout = 2 * time.Second

// Config describes the arm.
type Config struct {
	// Positions maps position names to joint angles in radians.
	Positions   map[string]float64 `json:"positions"`
	Tolerance   float64            `json:"tolerance"`
	MinPosition float64            `json:"min_position"`
	MaxPosition float64            `json:"max_position"`
	MoveTimeout time.Duration      `json:"move_timeout"`
}

// Validate checks the configuration found at path.
func (c *Config) Validate(path string) error {
	if _, ok := c.Positions[PositionRest]; !ok {
		return config.NewMissingKeyError(path + ".positions." + PositionRest)
	}
	if !(c.Tolerance > 0) {
		return errors.Errorf("%s needs a positive tolerance", path)
	}
	if !(c.MinPosition < c.MaxPosition) {
		return errors.Errorf("%s min_position %v must be below max_position %v", path, c.MinPosition, c.MaxPosition)
	}
	for _, name := range c.positionNames() {
		if p := c.Positions[name]; p < c.MinPosition || p > c.MaxPosition {
			return errors.Errorf("%s position %q (%v) is outside [%v, %v]", path, name, p, c.MinPosition, c.MaxPosition)
		}
	}
	if c.MoveTimeout < 0 {
		return errors.Errorf("%s move_timeout must not be negative", path)
	}
	return nil
}

func (c *Config) positionNames() []string {
	names := lo.Keys(c.Positions)
	sort.Strings(names)
	return names
}

// ConfigFromProvider decodes and validates the arm section at path.
func ConfigFromProvider(p config.Provider, path string) (Config, error) {
	var cfg Config
	if err := config.Decode(p, path, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(path); err != nil {
		return Config{}, err
	}
	if cfg.MoveTimeout == 0 {
		cfg.MoveTimeout = DefaultMoveTimeout
	}
	return cfg, nil
}

// Arm is the arm subsystem. Its refresh phase snapshots the joint position and faults.
type Arm struct {
	*subsystem.Subsystem

	cfg   Config
	motor motor.Motor

	position  float64
	target    float64
	hasTarget bool
	faults    []motor.Fault
}

// New returns an arm driven by m.
func New(cfg Config, m motor.Motor, logger logging.Logger) (*Arm, error) {
	if err := cfg.Validate(SubsystemName); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("arm needs a motor")
	}
	if cfg.MoveTimeout == 0 {
		cfg.MoveTimeout = DefaultMoveTimeout
	}
	a := &Arm{cfg: cfg, motor: m}
	a.Subsystem = subsystem.New(SubsystemName, logger, subsystem.WithRefresh(a.refresh))
	return a, nil
}

func (a *Arm) refresh(ctx context.Context) error {
	pos, err := a.motor.Position(ctx)
	if err != nil {
		return errors.Wrap(err, "arm position")
	}
	a.position = pos
	faults, err := a.motor.Faults(ctx)
	if err != nil {
		return errors.Wrap(err, "arm faults")
	}
	if len(faults) > 0 && len(a.faults) == 0 {
		a.Logger().Warnw("arm motor faulted", "faults", faults)
	}
	a.faults = faults
	return nil
}

// Config returns the arm configuration.
func (a *Arm) Config() Config {
	return a.cfg
}

// Motor returns the joint motor.
func (a *Arm) Motor() motor.Motor {
	return a.motor
}

// Position returns the joint angle at the last refresh.
func (a *Arm) Position() float64 {
	return a.position
}

// Target returns the commanded angle, if there is one.
func (a *Arm) Target() (float64, bool) {
	return a.target, a.hasTarget
}

// AtTarget reports whether the last refreshed angle is within tolerance of the commanded one.
func (a *Arm) AtTarget() bool {
	return a.hasTarget && math.Abs(a.position-a.target) <= a.cfg.Tolerance
}

// Faulted reports whether the motor had active faults at the last refresh.
func (a *Arm) Faulted() bool {
	return len(a.faults) > 0
}

// NamedPosition looks up a configured position.
func (a *Arm) NamedPosition(name string) (float64, error) {
	pos, ok := a.cfg.Positions[name]
	if !ok {
		return 0, errors.Errorf("arm has no position named %q (have %v)", name, a.cfg.positionNames())
	}
	return pos, nil
}

// SetTarget commands the joint to pos. Targets outside the configured range are rejected.
func (a *Arm) SetTarget(ctx context.Context, pos float64) error {
	if pos < a.cfg.MinPosition || pos > a.cfg.MaxPosition {
		return errors.Errorf("arm target %v is outside [%v, %v]", pos, a.cfg.MinPosition, a.cfg.MaxPosition)
	}
	if err := a.motor.SetTarget(ctx, motor.ModePosition, pos); err != nil {
		return err
	}
	a.target = pos
	a.hasTarget = true
	return nil
}

// Stop drops the target and zeroes the motor output.
func (a *Arm) Stop(ctx context.Context) error {
	a.hasTarget = false
	return motor.Stop(ctx, a.motor)
}
