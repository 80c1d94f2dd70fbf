package arm

import (
	"context"
	"fmt"

	"github.com/tickbot-robotics/tickbot/action"
)

// MoveTo drives the arm to one angle and finishes once it is there. A rejected command is retried
// every tick.
type MoveTo struct {
	action.Base
	arm       *Arm
	position  float64
	commanded bool
}

// NewMoveTo returns an action moving to the named position.
func (a *Arm) NewMoveTo(name string) (*MoveTo, error) {
	pos, err := a.NamedPosition(name)
	if err != nil {
		return nil, err
	}
	return &MoveTo{Base: action.NewBase("move to "+name, a.Logger()), arm: a, position: pos}, nil
}

// NewMoveToAngle returns an action moving to an angle in radians.
func (a *Arm) NewMoveToAngle(pos float64) *MoveTo {
	return &MoveTo{Base: action.NewBase(fmt.Sprintf("move to %.3f", pos), a.Logger()), arm: a, position: pos}
}

// Start commands the target.
func (m *MoveTo) Start(ctx context.Context) {
	if !m.Begin() {
		return
	}
	m.command(ctx)
}

func (m *MoveTo) command(ctx context.Context) {
	m.commanded = !m.arm.LogHardwareError(m.arm.Name(), m.arm.SetTarget(ctx, m.position))
}

// Run finishes once the refreshed angle is within tolerance.
func (m *MoveTo) Run(ctx context.Context) {
	if !m.ShouldRun() {
		return
	}
	if !m.commanded {
		m.command(ctx)
		return
	}
	if m.arm.AtTarget() {
		m.MarkDone()
	}
}

// Cancel zeroes the arm if the move was still going.
func (m *MoveTo) Cancel(ctx context.Context) {
	if m.MarkCanceled() {
		m.arm.LogHardwareError(m.arm.Name(), m.arm.Stop(ctx))
	}
}

// Position returns the target angle.
func (m *MoveTo) Position() float64 {
	return m.position
}
