// Package fake implements a fake motor whose state is advanced explicitly by Step.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tickbot-robotics/tickbot/components/motor"
)

const (
	defaultMaxVelocity = 5.0
	defaultTolerance   = 0.01
)

var _ motor.Motor = &Motor{}

// A Motor integrates its commanded output each Step. Power mode moves at power*MaxVelocity,
// velocity mode at the target, position mode toward the target at MaxVelocity.
type Motor struct {
	name string

	mu          sync.Mutex
	mode        motor.ControlMode
	target      float64
	position    float64
	velocity    float64
	faults      []motor.Fault
	failErr     error
	maxVelocity float64
	tolerance   float64
	requests    int
}

// NewMotor returns a fake motor at position zero.
func NewMotor(name string) *Motor {
	return &Motor{name: name, maxVelocity: defaultMaxVelocity, tolerance: defaultTolerance}
}

// Name returns the motor's name.
func (m *Motor) Name() string {
	return m.name
}

// SetMaxVelocity sets the speed used for power and position modes.
func (m *Motor) SetMaxVelocity(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxVelocity = v
}

// SetTolerance sets the at-target window.
func (m *Motor) SetTolerance(tol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tolerance = tol
}

// Fail makes every following request return err until called with nil.
func (m *Motor) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// SetFaults replaces the active fault list.
func (m *Motor) SetFaults(faults ...motor.Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = faults
}

// SetPosition teleports the motor, as a sensor reset would.
func (m *Motor) SetPosition(pos float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = pos
}

// Position returns the integrated position.
func (m *Motor) Position(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return 0, m.failErr
	}
	return m.position, nil
}

// Velocity returns the velocity used by the last Step.
func (m *Motor) Velocity(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return 0, m.failErr
	}
	return m.velocity, nil
}

// SetPower sets open loop output.
func (m *Motor) SetPower(ctx context.Context, powerPct float64) error {
	if math.Abs(powerPct) > 1 {
		return motor.NewPowerOutOfRangeError(m.name, powerPct)
	}
	return m.SetTarget(ctx, motor.ModePower, powerPct)
}

// SetTarget sets a target for the given mode.
func (m *Motor) SetTarget(ctx context.Context, mode motor.ControlMode, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	if m.failErr != nil {
		return m.failErr
	}
	if len(m.faults) > 0 && value != 0 {
		return motor.NewFaultedError(m.name, m.faults)
	}
	if mode != motor.ModePower && mode != motor.ModeVelocity && mode != motor.ModePosition {
		return motor.NewUnsupportedModeError(m.name, mode)
	}
	m.mode = mode
	m.target = value
	return nil
}

// IsAtTarget compares the state after the last Step with the target.
func (m *Motor) IsAtTarget(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return false, m.failErr
	}
	switch m.mode {
	case motor.ModePosition:
		return math.Abs(m.target-m.position) <= m.tolerance, nil
	case motor.ModeVelocity:
		return math.Abs(m.target-m.velocity) <= m.tolerance, nil
	case motor.ModePower:
		return false, errors.New("open loop output has no target")
	default:
		return false, motor.NewUnsupportedModeError(m.name, m.mode)
	}
}

// Faults returns the active faults.
func (m *Motor) Faults(ctx context.Context) ([]motor.Fault, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]motor.Fault(nil), m.faults...), nil
}

// Mode returns the last accepted control mode and value.
func (m *Motor) Mode() (motor.ControlMode, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode, m.target
}

// Output returns the last accepted power in power mode, zero otherwise.
func (m *Motor) Output() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != motor.ModePower {
		return 0
	}
	return m.target
}

// Requests returns how many SetPower/SetTarget calls were made.
func (m *Motor) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// Step advances the simulation by dt.
func (m *Motor) Step(dt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	secs := dt.Seconds()
	switch m.mode {
	case motor.ModePower:
		m.velocity = m.target * m.maxVelocity
	case motor.ModeVelocity:
		m.velocity = m.target
	case motor.ModePosition:
		remaining := m.target - m.position
		step := m.maxVelocity * secs
		if math.Abs(remaining) <= step {
			if secs > 0 {
				m.velocity = remaining / secs
			}
			m.position = m.target
			return
		}
		m.velocity = math.Copysign(m.maxVelocity, remaining)
	}
	m.position += m.velocity * secs
}
