package swerve

import (
	"context"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/tickbot-robotics/tickbot/components/motor"
	"github.com/tickbot-robotics/tickbot/utils"
)

// minModuleSpeed is the wheel speed below which a module holds its steering angle.
const minModuleSpeed = 1e-3

// A Module is one wheel: a drive motor reporting meters and m/s and a steering motor reporting
// radians. Reads are cached by Refresh.
type Module struct {
	name   string
	offset r2.Point
	drive  motor.Motor
	steer  motor.Motor

	distance float64
	speed    float64
	rawAngle float64
}

// NewModule returns a module at offset from the robot center.
func NewModule(name string, offset r2.Point, drive, steer motor.Motor) *Module {
	return &Module{name: name, offset: offset, drive: drive, steer: steer}
}

// Name returns the module's name.
func (m *Module) Name() string {
	return m.name
}

// Offset returns the module's position relative to the robot center.
func (m *Module) Offset() r2.Point {
	return m.offset
}

// Refresh reads the motors. Values that fail to read keep their previous snapshot.
func (m *Module) Refresh(ctx context.Context) error {
	var errs error
	if d, err := m.drive.Position(ctx); err != nil {
		errs = multierr.Combine(errs, errors.Wrapf(err, "%s drive position", m.name))
	} else {
		m.distance = d
	}
	if v, err := m.drive.Velocity(ctx); err != nil {
		errs = multierr.Combine(errs, errors.Wrapf(err, "%s drive velocity", m.name))
	} else {
		m.speed = v
	}
	if a, err := m.steer.Position(ctx); err != nil {
		errs = multierr.Combine(errs, errors.Wrapf(err, "%s steer position", m.name))
	} else {
		m.rawAngle = a
	}
	return errs
}

// Angle returns the steering angle from the last Refresh, in (-pi, pi].
func (m *Module) Angle() float64 {
	return utils.WrapRad(m.rawAngle)
}

// State returns the measured speed and angle.
func (m *Module) State() ModuleState {
	return ModuleState{Speed: m.speed, Angle: m.Angle()}
}

// Position returns the measured distance and angle.
func (m *Module) Position() ModulePosition {
	return ModulePosition{Distance: m.distance, Angle: m.Angle()}
}

// SetDesiredState optimizes desired against the measured angle and commands both motors. Below
// a minimal speed the steering is left where it is.
func (m *Module) SetDesiredState(ctx context.Context, desired ModuleState) error {
	if math.Abs(desired.Speed) < minModuleSpeed {
		return errors.Wrapf(m.drive.SetTarget(ctx, motor.ModeVelocity, 0), "%s drive", m.name)
	}
	current := m.Angle()
	optimized := desired.Optimize(current)
	// the steering motor is continuous; aim for the nearest equivalent raw position
	steerTarget := m.rawAngle + utils.AngleDiffRad(current, optimized.Angle)
	return multierr.Combine(
		errors.Wrapf(m.drive.SetTarget(ctx, motor.ModeVelocity, optimized.Speed), "%s drive", m.name),
		errors.Wrapf(m.steer.SetTarget(ctx, motor.ModePosition, steerTarget), "%s steer", m.name),
	)
}

// Stop zeroes both motors.
func (m *Module) Stop(ctx context.Context) error {
	return motor.StopAll(ctx, m.drive, m.steer)
}
