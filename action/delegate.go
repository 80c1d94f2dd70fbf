package action

import (
	"context"
	"fmt"

	"github.com/tickbot-robotics/tickbot/logging"
)

// Assignee holds at most one action at a time. Subsystems implement it.
type Assignee interface {
	Name() string
	SetAction(ctx context.Context, a Action, interruptCurrent bool) bool
}

// Delegate hands an action to an Assignee and finishes when that action finishes. It is how a
// compound action issues work to the subsystem that owns the outputs.
type Delegate struct {
	Base
	target Assignee
	child  Action
}

// NewDelegate returns an action that assigns child to target on Start, interrupting whatever the
// target was doing.
func NewDelegate(logger logging.Logger, target Assignee, child Action) *Delegate {
	return &Delegate{
		Base:   NewBase(fmt.Sprintf("%s on %s", child.Name(), target.Name()), logger),
		target: target,
		child:  child,
	}
}

// Child returns the delegated action.
func (a *Delegate) Child() Action {
	return a.child
}

// Start assigns the child.
func (a *Delegate) Start(ctx context.Context) {
	if !a.Begin() {
		return
	}
	if !a.target.SetAction(ctx, a.child, true) {
		a.Abort("assignment rejected by " + a.target.Name())
		return
	}
	if a.child.IsDone() {
		a.MarkDone()
	}
}

// Run finishes once the child has.
func (a *Delegate) Run(ctx context.Context) {
	if !a.ShouldRun() {
		return
	}
	if a.child.IsDone() {
		a.MarkDone()
	}
}

// Cancel cancels the child if it is still going.
func (a *Delegate) Cancel(ctx context.Context) {
	a.MarkCanceled()
	if !a.child.IsDone() {
		a.child.Cancel(ctx)
	}
}

// Describe shows the delegated action under the target's name.
func (a *Delegate) Describe(indent int) string {
	return DescribeChildren(a.Base.Describe(indent), indent, []Action{a.child})
}
