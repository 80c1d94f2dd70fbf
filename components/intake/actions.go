package intake

import (
	"context"
	"time"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/utils"
)

// Hold keeps a held piece seated with hold power and leaves the rollers off otherwise. It is the
// intake's default action.
type Hold struct {
	action.Base
	in *Intake
}

func (in *Intake) newHold() action.Action {
	return &Hold{Base: action.NewBase("hold", in.Logger()), in: in}
}

// Start begins holding.
func (h *Hold) Start(ctx context.Context) {
	h.Begin()
}

// Run applies hold power when a piece is held.
func (h *Hold) Run(ctx context.Context) {
	if !h.ShouldRun() {
		return
	}
	power := 0.0
	if h.in.HasPiece() {
		power = h.in.cfg.HoldPower
	}
	h.in.LogHardwareError(h.in.roller.Name(), h.in.SetRoller(ctx, power))
}

// Cancel zeroes the rollers.
func (h *Hold) Cancel(ctx context.Context) {
	if h.MarkCanceled() {
		h.in.LogHardwareError(h.in.roller.Name(), h.in.Stop(ctx))
	}
}

// Grab runs the rollers inward until a piece arrives or the timeout passes. It finishes either
// way; callers check HasPiece to tell which.
type Grab struct {
	action.Base
	in    *Intake
	power float64
	timer *utils.Timer
}

// NewGrab returns a grab at the configured intake power.
func (in *Intake) NewGrab(timeout time.Duration) *Grab {
	return in.NewGrabAt(in.cfg.IntakePower, timeout)
}

// NewGrabAt returns a grab at the given roller power.
func (in *Intake) NewGrabAt(power float64, timeout time.Duration) *Grab {
	return &Grab{
		Base:  action.NewBase("grab", in.Logger()),
		in:    in,
		power: power,
		timer: utils.NewTimer(in.clk, timeout),
	}
}

// Start spins up the rollers, or finishes at once if a piece is already held.
func (g *Grab) Start(ctx context.Context) {
	if !g.Begin() {
		return
	}
	if g.in.HasPiece() {
		g.MarkDone()
		return
	}
	g.timer.Start()
	g.in.LogHardwareError(g.in.roller.Name(), g.in.SetRoller(ctx, g.power))
}

// Run finishes on arrival, switching to hold power, or on timeout, stopping the rollers.
func (g *Grab) Run(ctx context.Context) {
	if !g.ShouldRun() {
		return
	}
	switch {
	case g.in.HasPiece():
		g.MarkDone()
		g.in.LogHardwareError(g.in.roller.Name(), g.in.SetRoller(ctx, g.in.cfg.HoldPower))
	case g.timer.Expired():
		g.Logger().Infow("no piece before timeout", "timeout", g.timer.Duration())
		g.MarkDone()
		g.in.LogHardwareError(g.in.roller.Name(), g.in.Stop(ctx))
	default:
		g.in.LogHardwareError(g.in.roller.Name(), g.in.SetRoller(ctx, g.power))
	}
}

// Cancel zeroes the rollers.
func (g *Grab) Cancel(ctx context.Context) {
	if g.MarkCanceled() {
		g.in.LogHardwareError(g.in.roller.Name(), g.in.Stop(ctx))
	}
}

// Eject runs the rollers outward for the configured time, then marks the piece gone.
type Eject struct {
	action.Base
	in    *Intake
	timer *utils.Timer
}

// NewEject returns an eject.
func (in *Intake) NewEject() *Eject {
	return &Eject{
		Base:  action.NewBase("eject", in.Logger()),
		in:    in,
		timer: utils.NewTimer(in.clk, in.cfg.EjectTime),
	}
}

// Start spins the rollers outward.
func (e *Eject) Start(ctx context.Context) {
	if !e.Begin() {
		return
	}
	e.timer.Start()
	e.in.LogHardwareError(e.in.roller.Name(), e.in.SetRoller(ctx, e.in.cfg.EjectPower))
}

// Run stops the rollers once the eject time has passed.
func (e *Eject) Run(ctx context.Context) {
	if !e.ShouldRun() || !e.timer.Expired() {
		return
	}
	e.in.SetHasPiece(false)
	e.MarkDone()
	e.in.LogHardwareError(e.in.roller.Name(), e.in.Stop(ctx))
}

// Cancel zeroes the rollers. The piece is assumed still held.
func (e *Eject) Cancel(ctx context.Context) {
	if e.MarkCanceled() {
		e.in.LogHardwareError(e.in.roller.Name(), e.in.Stop(ctx))
	}
}
