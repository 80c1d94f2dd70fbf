// Package control implements the feedback controllers used by the drivetrain and mechanisms.
package control

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// PIDConfig holds the gains and limits of a PID controller.
type PIDConfig struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
	// IntegralLimit bounds the magnitude of the integral term. Zero means unbounded.
	IntegralLimit float64 `json:"integral_limit"`
	// OutputLimit bounds the magnitude of the output. Zero means unbounded.
	OutputLimit float64 `json:"output_limit"`
}

// Validate checks the configuration found at path.
func (c PIDConfig) Validate(path string) error {
	if c.Kp == 0 && c.Ki == 0 && c.Kd == 0 {
		return errors.Errorf("pid %s should have at least one of kp, ki or kd", path)
	}
	if c.IntegralLimit < 0 || c.OutputLimit < 0 {
		return errors.Errorf("pid %s limits must not be negative", path)
	}
	return nil
}

// PID is a discrete PID controller. The derivative term is zero on the first call after Reset.
type PID struct {
	cfg PIDConfig

	continuous         bool
	minInput, maxInput float64

	positionTolerance float64
	velocityTolerance float64

	integral      float64
	positionError float64
	velocityError float64
	haveMeasured  bool
}

// NewPID returns a PID controller for cfg.
func NewPID(cfg PIDConfig) (*PID, error) {
	if err := cfg.Validate("controller"); err != nil {
		return nil, err
	}
	return &PID{
		cfg:               cfg,
		positionTolerance: 0.05,
		velocityTolerance: math.Inf(1),
	}, nil
}

// Config returns the gains.
func (p *PID) Config() PIDConfig {
	return p.cfg
}

// EnableContinuousInput treats min and max as the same point, so errors take the shortest way
// around. Errors are normalized into (-(max-min)/2, (max-min)/2].
func (p *PID) EnableContinuousInput(minInput, maxInput float64) {
	p.continuous = true
	p.minInput = minInput
	p.maxInput = maxInput
}

// SetTolerance sets the window AtSetpoint uses.
func (p *PID) SetTolerance(position, velocity float64) {
	p.positionTolerance = position
	p.velocityTolerance = velocity
}

// Calculate returns the output for a measurement and setpoint after dt since the previous call.
func (p *PID) Calculate(measurement, setpoint float64, dt time.Duration) float64 {
	prevError := p.positionError
	p.positionError = p.errorBetween(measurement, setpoint)

	dtS := dt.Seconds()
	if p.haveMeasured && dtS > 0 {
		p.velocityError = (p.positionError - prevError) / dtS
	} else {
		p.velocityError = 0
	}
	p.haveMeasured = true

	if p.cfg.Ki != 0 && dtS > 0 {
		p.integral += p.cfg.Ki * p.positionError * dtS
		if p.cfg.IntegralLimit > 0 {
			p.integral = clamp(p.integral, -p.cfg.IntegralLimit, p.cfg.IntegralLimit)
		}
	}

	output := p.cfg.Kp*p.positionError + p.integral + p.cfg.Kd*p.velocityError
	if p.cfg.OutputLimit > 0 {
		output = clamp(output, -p.cfg.OutputLimit, p.cfg.OutputLimit)
	}
	return output
}

func (p *PID) errorBetween(measurement, setpoint float64) float64 {
	if !p.continuous {
		return setpoint - measurement
	}
	bound := (p.maxInput - p.minInput) / 2
	return InputModulus(setpoint-measurement, -bound, bound)
}

// AtSetpoint reports whether the last error was inside the tolerance window.
func (p *PID) AtSetpoint() bool {
	return p.haveMeasured &&
		math.Abs(p.positionError) < p.positionTolerance &&
		math.Abs(p.velocityError) < p.velocityTolerance
}

// PositionError returns the error from the last Calculate.
func (p *PID) PositionError() float64 {
	return p.positionError
}

// Reset clears the integral and derivative history.
func (p *PID) Reset() {
	p.integral = 0
	p.positionError = 0
	p.velocityError = 0
	p.haveMeasured = false
}

// InputModulus wraps input into (minInput, maxInput].
func InputModulus(input, minInput, maxInput float64) float64 {
	modulus := maxInput - minInput
	if modulus <= 0 {
		return input
	}
	n := math.Ceil((input - maxInput) / modulus)
	return input - n*modulus
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
