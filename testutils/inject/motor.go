package inject

import (
	"context"

	"github.com/tickbot-robotics/tickbot/components/motor"
)

// Motor is an injected motor.
type Motor struct {
	motor.Motor
	PositionFunc   func(ctx context.Context) (float64, error)
	VelocityFunc   func(ctx context.Context) (float64, error)
	SetPowerFunc   func(ctx context.Context, power float64) error
	SetTargetFunc  func(ctx context.Context, mode motor.ControlMode, value float64) error
	IsAtTargetFunc func(ctx context.Context) (bool, error)
	FaultsFunc     func(ctx context.Context) ([]motor.Fault, error)
}

// NewMotor returns a new injected motor wrapping m, which may be nil if every func is set.
func NewMotor(m motor.Motor) *Motor {
	return &Motor{Motor: m}
}

// Position calls the injected Position or the real version.
func (m *Motor) Position(ctx context.Context) (float64, error) {
	if m.PositionFunc == nil {
		return m.Motor.Position(ctx)
	}
	return m.PositionFunc(ctx)
}

// Velocity calls the injected Velocity or the real version.
func (m *Motor) Velocity(ctx context.Context) (float64, error) {
	if m.VelocityFunc == nil {
		return m.Motor.Velocity(ctx)
	}
	return m.VelocityFunc(ctx)
}

// SetPower calls the injected SetPower or the real version.
func (m *Motor) SetPower(ctx context.Context, power float64) error {
	if m.SetPowerFunc == nil {
		return m.Motor.SetPower(ctx, power)
	}
	return m.SetPowerFunc(ctx, power)
}

// SetTarget calls the injected SetTarget or the real version.
func (m *Motor) SetTarget(ctx context.Context, mode motor.ControlMode, value float64) error {
	if m.SetTargetFunc == nil {
		return m.Motor.SetTarget(ctx, mode, value)
	}
	return m.SetTargetFunc(ctx, mode, value)
}

// IsAtTarget calls the injected IsAtTarget or the real version.
func (m *Motor) IsAtTarget(ctx context.Context) (bool, error) {
	if m.IsAtTargetFunc == nil {
		return m.Motor.IsAtTarget(ctx)
	}
	return m.IsAtTargetFunc(ctx)
}

// Faults calls the injected Faults or the real version.
func (m *Motor) Faults(ctx context.Context) ([]motor.Fault, error) {
	if m.FaultsFunc == nil {
		return m.Motor.Faults(ctx)
	}
	return m.FaultsFunc(ctx)
}
