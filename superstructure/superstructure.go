// Package superstructure coordinates the arm and intake through compound actions: collecting a
// piece, releasing it and the full score pipeline. Every compound action is an explicit state
// machine, and every failure path goes through a shared RecoveryStrategy that puts the mechanisms in
// a safe state before returning the arm to rest.
package superstructure

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/tickbot-robotics/tickbot/components/arm"
	"github.com/tickbot-robotics/tickbot/components/intake"
	"github.com/tickbot-robotics/tickbot/components/motor"
	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/subsystem"
)

// SubsystemName is the superstructure's name in the subsystem tree.
const SubsystemName = "superstructure"

// Superstructure is the parent of the arm and intake. Its own slot holds the compound action in
// charge; the leaf work runs on the children.
type Superstructure struct {
	*subsystem.Subsystem

	arm    *arm.Arm
	intake *intake.Intake
	clk    clock.Clock
}

// New adopts the arm and intake as children. A nil clock uses the wall clock.
func New(a *arm.Arm, in *intake.Intake, clk clock.Clock, logger logging.Logger) (*Superstructure, error) {
	if a == nil || in == nil {
		return nil, errors.New("superstructure needs an arm and an intake")
	}
	if clk == nil {
		clk = clock.New()
	}
	s := &Superstructure{
		Subsystem: subsystem.New(SubsystemName, logger),
		arm:       a,
		intake:    in,
		clk:       clk,
	}
	if err := s.AddChild(a.Subsystem); err != nil {
		return nil, err
	}
	if err := s.AddChild(in.Subsystem); err != nil {
		return nil, err
	}
	return s, nil
}

// Arm returns the arm.
func (s *Superstructure) Arm() *arm.Arm {
	return s.arm
}

// Intake returns the intake.
func (s *Superstructure) Intake() *intake.Intake {
	return s.intake
}

// Clock returns the clock timeouts are measured on.
func (s *Superstructure) Clock() clock.Clock {
	return s.clk
}

// SafeState cancels whatever the arm and intake are doing and zeroes every superstructure
// actuator, trying all of them even if some fail.
func (s *Superstructure) SafeState(ctx context.Context, reason string) error {
	s.arm.CancelAction(ctx)
	s.intake.CancelAction(ctx)
	err := motor.StopAll(ctx, s.arm.Motor(), s.intake.Roller())
	s.Logger().Infow("safe state", "reason", reason)
	s.LogHardwareError(SubsystemName, err)
	return err
}
