package superstructure

import (
	"context"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/components/arm"
	"github.com/tickbot-robotics/tickbot/logging"
)

// RecoveryStrategy is the failure path shared by compound actions: zero every actuator, then
// return the arm to rest, then finish. Entering it always reaches the safe state before anything
// moves again.
type RecoveryStrategy struct {
	s       *Superstructure
	logger  logging.Logger
	rest    *action.Delegate
	entered bool
}

// NewRecoveryStrategy builds the rest move up front so that entering recovery cannot fail on
// configuration.
func (s *Superstructure) NewRecoveryStrategy(logger logging.Logger) (*RecoveryStrategy, error) {
	move, err := s.arm.NewMoveTo(arm.PositionRest)
	if err != nil {
		return nil, err
	}
	bounded := action.Timeout(logger, move, s.arm.Config().MoveTimeout, s.clk)
	return &RecoveryStrategy{s: s, logger: logger, rest: action.NewDelegate(logger, s.arm, bounded)}, nil
}

// Enter puts the superstructure in the safe state and starts the arm toward rest. Only the first
// call has any effect.
func (r *RecoveryStrategy) Enter(ctx context.Context, reason string) {
	if r.entered {
		return
	}
	r.entered = true
	r.logger.Warnw("recovering", "reason", reason)
	r.s.SafeState(ctx, reason)
	r.rest.Start(ctx)
}

// Entered reports whether Enter was called.
func (r *RecoveryStrategy) Entered() bool {
	return r.entered
}

// Run advances recovery and reports whether it has finished. A rest move that times out still
// finishes recovery, leaving the arm at zero output.
func (r *RecoveryStrategy) Run(ctx context.Context) bool {
	if !r.entered {
		return false
	}
	r.rest.Run(ctx)
	return r.rest.IsDone()
}

// Cancel stops the rest move if it was started.
func (r *RecoveryStrategy) Cancel(ctx context.Context) {
	if r.entered {
		r.rest.Cancel(ctx)
	}
}

// Describe shows the rest move.
func (r *RecoveryStrategy) Describe(indent int) string {
	return r.rest.Describe(indent)
}
