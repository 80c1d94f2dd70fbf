// Package action defines the unit of controllable work run by subsystems once per tick.
//
// An Action is started once, run once per tick until it reports done, and may be canceled at any
// time. Run never blocks: anything that takes longer than a tick is a multi-tick state machine.
package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tickbot-robotics/tickbot/logging"
)

// State is an action's lifecycle state.
type State int

const (
	// NotStarted is the state before Start.
	NotStarted State = iota
	// Running is the state between Start and completion.
	Running
	// Done means the action finished on its own, including an abort in Start.
	Done
	// Canceled means Cancel was called before the action finished.
	Canceled
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Done:
		return "done"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Done || s == Canceled
}

// Action is a finite-lifecycle unit of control logic.
type Action interface {
	// Name is a short human readable name used in logs.
	Name() string

	// Start performs one-time setup. It may finish the action immediately.
	Start(ctx context.Context)

	// Run advances the action by one tick. Calls after IsDone returns true are ignored.
	Run(ctx context.Context)

	// Cancel stops the action and zeroes any actuator output it owns. It is safe to call any
	// number of times from any state.
	Cancel(ctx context.Context)

	// IsDone reports whether the action is finished or canceled. Once true it stays true.
	IsDone() bool

	// Describe returns a multi-line description indented by indent levels.
	Describe(indent int) string
}

// Base carries the lifecycle bookkeeping shared by every action. Embed it and call Begin at the top
// of Start, ShouldRun at the top of Run and MarkCanceled at the top of Cancel.
type Base struct {
	name   string
	logger logging.Logger
	state  State
	runID  uuid.UUID
}

// NewBase returns a Base in NotStarted.
func NewBase(name string, logger logging.Logger) Base {
	return Base{name: name, logger: logger}
}

// Name returns the action's name.
func (b *Base) Name() string {
	return b.name
}

// Logger returns the action's logger.
func (b *Base) Logger() logging.Logger {
	return b.logger
}

// State returns the lifecycle state.
func (b *Base) State() State {
	return b.state
}

// RunID identifies the current start of the action in logs.
func (b *Base) RunID() uuid.UUID {
	return b.runID
}

// IsDone reports whether the action reached a terminal state.
func (b *Base) IsDone() bool {
	return b.state.Terminal()
}

// ShouldRun reports whether Run should do any work this tick.
func (b *Base) ShouldRun() bool {
	return b.state == Running
}

// Begin moves NotStarted to Running. It returns false, and logs, if the action was already started.
func (b *Base) Begin() bool {
	if b.state != NotStarted {
		b.logger.Warnw("action started twice", "action", b.name, "state", b.state.String())
		return false
	}
	b.state = Running
	b.runID = uuid.New()
	b.logger.Debugw("action started", "action", b.name, "run_id", b.runID.String())
	return true
}

// MarkDone finishes a running action. It returns true exactly once.
func (b *Base) MarkDone() bool {
	if b.state != Running {
		return false
	}
	b.state = Done
	b.logger.Debugw("action finished", "action", b.name, "run_id", b.runID.String())
	return true
}

// Abort finishes a running action without side effects, logging why. It is the response to a
// violated precondition in Start.
func (b *Base) Abort(reason string) bool {
	if b.state != Running {
		return false
	}
	b.state = Done
	b.logger.Infow("action aborted", "action", b.name, "run_id", b.runID.String(), "reason", reason)
	return true
}

// MarkCanceled moves any non-terminal state to Canceled. It returns true only when the action was
// running, i.e. when the caller owns outputs that must be zeroed.
func (b *Base) MarkCanceled() bool {
	switch b.state {
	case Running:
		b.state = Canceled
		b.logger.Debugw("action canceled", "action", b.name, "run_id", b.runID.String())
		return true
	case NotStarted:
		b.state = Canceled
		return false
	default:
		return false
	}
}

// Describe returns "name [state]".
func (b *Base) Describe(indent int) string {
	return fmt.Sprintf("%s%s [%s]", Indent(indent), b.name, b.state)
}

// Indent returns the leading whitespace for an indent level.
func Indent(indent int) string {
	return strings.Repeat("  ", indent)
}

// DescribeChildren renders a parent line followed by its children one level deeper.
func DescribeChildren(parent string, indent int, children []Action) string {
	var sb strings.Builder
	sb.WriteString(parent)
	for _, c := range children {
		sb.WriteString("\n")
		sb.WriteString(c.Describe(indent + 1))
	}
	return sb.String()
}
