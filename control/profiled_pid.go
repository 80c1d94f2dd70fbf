package control

import (
	"time"
)

// ProfiledPID is a PID controller whose setpoint follows a trapezoid profile toward the goal
// instead of jumping to it.
type ProfiledPID struct {
	pid     *PID
	profile *TrapezoidProfile

	goal     State
	setpoint State

	continuous         bool
	minInput, maxInput float64
}

// NewProfiledPID returns a profiled controller.
func NewProfiledPID(cfg PIDConfig, c Constraints) (*ProfiledPID, error) {
	pid, err := NewPID(cfg)
	if err != nil {
		return nil, err
	}
	profile, err := NewTrapezoidProfile(c)
	if err != nil {
		return nil, err
	}
	return &ProfiledPID{pid: pid, profile: profile}, nil
}

// EnableContinuousInput treats min and max as the same point for both the error and the profile.
func (p *ProfiledPID) EnableContinuousInput(minInput, maxInput float64) {
	p.continuous = true
	p.minInput = minInput
	p.maxInput = maxInput
	p.pid.EnableContinuousInput(minInput, maxInput)
}

// SetTolerance sets the window AtGoal uses.
func (p *ProfiledPID) SetTolerance(position, velocity float64) {
	p.pid.SetTolerance(position, velocity)
}

// Reset restarts the profile from the measured state.
func (p *ProfiledPID) Reset(measured State) {
	p.pid.Reset()
	p.setpoint = measured
	p.goal = measured
}

// Setpoint returns the current profile setpoint.
func (p *ProfiledPID) Setpoint() State {
	return p.setpoint
}

// Goal returns the goal of the last Calculate.
func (p *ProfiledPID) Goal() State {
	return p.goal
}

// Calculate advances the profile by dt toward goal and returns the PID output tracking the new
// setpoint.
func (p *ProfiledPID) Calculate(measurement, goal float64, dt time.Duration) float64 {
	p.goal = State{Position: goal}
	if p.continuous {
		bound := (p.maxInput - p.minInput) / 2
		goalMinDistance := InputModulus(p.goal.Position-measurement, -bound, bound)
		setpointMinDistance := InputModulus(p.setpoint.Position-measurement, -bound, bound)
		p.goal.Position = goalMinDistance + measurement
		p.setpoint.Position = setpointMinDistance + measurement
	}
	p.setpoint = p.profile.Calculate(dt.Seconds(), p.setpoint, p.goal)
	return p.pid.Calculate(measurement, p.setpoint.Position, dt)
}

// AtGoal reports whether the profile has reached the goal and the controller is at the setpoint.
func (p *ProfiledPID) AtGoal() bool {
	return p.pid.AtSetpoint() && p.goal == p.setpoint
}

// PositionError returns the error between the measurement and the setpoint.
func (p *ProfiledPID) PositionError() float64 {
	return p.pid.PositionError()
}
