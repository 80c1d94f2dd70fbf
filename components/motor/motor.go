// Package motor defines the narrow facade the control core uses to talk to a motor controller.
// Vendor bindings implement Motor; nothing above this package touches hardware directly.
package motor

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ControlMode selects what a SetTarget value means.
type ControlMode int

const (
	// ModePower is open loop output between -1 and 1.
	ModePower ControlMode = iota
	// ModeVelocity is closed loop velocity in mechanism units per second.
	ModeVelocity
	// ModePosition is closed loop position in mechanism units.
	ModePosition
)

func (m ControlMode) String() string {
	switch m {
	case ModePower:
		return "power"
	case ModeVelocity:
		return "velocity"
	case ModePosition:
		return "position"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Fault is a sticky fault reported by a motor controller.
type Fault string

// Faults reported by the fake and expected from vendor bindings.
const (
	FaultOverCurrent  Fault = "over_current"
	FaultUnderVoltage Fault = "under_voltage"
	FaultOverTemp     Fault = "over_temperature"
	FaultSensor       Fault = "sensor"
)

// A Motor is one physical actuator behind a motor controller.
type Motor interface {
	// Name identifies the motor in logs.
	Name() string

	// Position returns the mechanism position in configured units.
	Position(ctx context.Context) (float64, error)

	// Velocity returns the mechanism velocity in configured units per second.
	Velocity(ctx context.Context) (float64, error)

	// SetPower commands open loop output between -1 and 1.
	SetPower(ctx context.Context, powerPct float64) error

	// SetTarget commands a closed loop target for the given mode.
	SetTarget(ctx context.Context, mode ControlMode, value float64) error

	// IsAtTarget reports whether the last closed loop target is reached within the controller's tolerance.
	IsAtTarget(ctx context.Context) (bool, error)

	// Faults returns the currently active faults.
	Faults(ctx context.Context) ([]Fault, error)
}

// Stop zeroes a motor's output.
func Stop(ctx context.Context, m Motor) error {
	return m.SetPower(ctx, 0)
}

// StopAll zeroes every motor, attempting all of them even if some fail.
func StopAll(ctx context.Context, motors ...Motor) error {
	var errs error
	for _, m := range motors {
		if err := m.SetPower(ctx, 0); err != nil {
			errs = multierr.Combine(errs, errors.Wrapf(err, "stopping %s", m.Name()))
		}
	}
	return errs
}
