package swerve

import (
	"context"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/spatialmath"
)

// Idle holds the drivetrain still. It is the drivetrain's default action and never finishes on
// its own.
type Idle struct {
	action.Base
	d *Drivetrain
}

func (d *Drivetrain) newIdleAction() action.Action {
	return &Idle{Base: action.NewBase("idle", d.Logger()), d: d}
}

// Start begins idling; zero speed is commanded from the first Run.
func (a *Idle) Start(ctx context.Context) {
	a.Begin()
}

// Run commands zero speed.
func (a *Idle) Run(ctx context.Context) {
	if !a.ShouldRun() {
		return
	}
	a.d.LogHardwareError(SubsystemName, a.d.Drive(ctx, spatialmath.ChassisSpeeds{}))
}

// Cancel stops the modules.
func (a *Idle) Cancel(ctx context.Context) {
	if a.MarkCanceled() {
		a.d.LogHardwareError(SubsystemName, a.d.Stop(ctx))
	}
}

// Teleop drives at whatever speeds a supplier returns each tick, for operator control. It never
// finishes on its own.
type Teleop struct {
	action.Base
	d             *Drivetrain
	fieldRelative bool
	speeds        func() spatialmath.ChassisSpeeds
}

// NewTeleop returns an operator drive action. With fieldRelative the supplier's Vx and Vy are
// field axes.
func NewTeleop(d *Drivetrain, fieldRelative bool, speeds func() spatialmath.ChassisSpeeds) *Teleop {
	return &Teleop{Base: action.NewBase("teleop", d.Logger()), d: d, fieldRelative: fieldRelative, speeds: speeds}
}

// Start begins driving.
func (a *Teleop) Start(ctx context.Context) {
	a.Begin()
}

// Run applies the current speeds.
func (a *Teleop) Run(ctx context.Context) {
	if !a.ShouldRun() {
		return
	}
	s := a.speeds()
	var err error
	if a.fieldRelative {
		err = a.d.DriveFieldRelative(ctx, s.Vx, s.Vy, s.Omega)
	} else {
		err = a.d.Drive(ctx, s)
	}
	a.d.LogHardwareError(SubsystemName, err)
}

// Cancel stops the modules.
func (a *Teleop) Cancel(ctx context.Context) {
	if a.MarkCanceled() {
		a.d.LogHardwareError(SubsystemName, a.d.Stop(ctx))
	}
}
