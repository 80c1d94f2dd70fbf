package action

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/utils"
)

// Instant runs a function once in Start and is then done.
type Instant struct {
	Base
	fn func(ctx context.Context)
}

// NewInstant returns an action that calls fn once.
func NewInstant(name string, logger logging.Logger, fn func(ctx context.Context)) *Instant {
	return &Instant{Base: NewBase(name, logger), fn: fn}
}

// Start calls the function and finishes.
func (a *Instant) Start(ctx context.Context) {
	if !a.Begin() {
		return
	}
	if a.fn != nil {
		a.fn(ctx)
	}
	a.MarkDone()
}

// Run does nothing; Instant is done after Start.
func (a *Instant) Run(ctx context.Context) {}

// Cancel marks the action canceled.
func (a *Instant) Cancel(ctx context.Context) {
	a.MarkCanceled()
}

// Wait is done once a duration has elapsed since Start. The timer is polled every tick.
type Wait struct {
	Base
	timer *utils.Timer
}

// NewWait returns an action that finishes after d. A nil clock uses the wall clock.
func NewWait(name string, logger logging.Logger, d time.Duration, clk clock.Clock) *Wait {
	return &Wait{Base: NewBase(name, logger), timer: utils.NewTimer(clk, d)}
}

// Start starts the timer.
func (a *Wait) Start(ctx context.Context) {
	if !a.Begin() {
		return
	}
	a.timer.Start()
	if a.timer.Expired() {
		a.MarkDone()
	}
}

// Run finishes once the timer expires.
func (a *Wait) Run(ctx context.Context) {
	if !a.ShouldRun() {
		return
	}
	if a.timer.Expired() {
		a.timer.Stop()
		a.MarkDone()
	}
}

// Cancel stops the timer.
func (a *Wait) Cancel(ctx context.Context) {
	a.MarkCanceled()
	a.timer.Stop()
}

// Describe includes the wait duration.
func (a *Wait) Describe(indent int) string {
	return fmt.Sprintf("%s (%s)", a.Base.Describe(indent), a.timer.Duration())
}

// Sequence runs its children one after another. The next child starts on the tick the previous
// one finishes.
type Sequence struct {
	Base
	children []Action
	index    int
}

// NewSequence returns an action running children in order.
func NewSequence(name string, logger logging.Logger, children ...Action) *Sequence {
	return &Sequence{Base: NewBase(name, logger), children: children}
}

// Start starts the first child.
func (a *Sequence) Start(ctx context.Context) {
	if !a.Begin() {
		return
	}
	a.index = 0
	a.startFrom(ctx)
}

// Run runs the current child and starts the next one if it finished.
func (a *Sequence) Run(ctx context.Context) {
	if !a.ShouldRun() {
		return
	}
	child := a.children[a.index]
	child.Run(ctx)
	if child.IsDone() {
		a.index++
		a.startFrom(ctx)
	}
}

// startFrom starts children from the current index, skipping any that finish in Start.
func (a *Sequence) startFrom(ctx context.Context) {
	for a.index < len(a.children) {
		c := a.children[a.index]
		c.Start(ctx)
		if !c.IsDone() {
			return
		}
		a.index++
	}
	a.MarkDone()
}

// Index returns the position of the running child.
func (a *Sequence) Index() int {
	return a.index
}

// Cancel cancels every child that has not finished.
func (a *Sequence) Cancel(ctx context.Context) {
	a.MarkCanceled()
	for _, c := range a.children {
		if !c.IsDone() {
			c.Cancel(ctx)
		}
	}
}

// Describe lists the children.
func (a *Sequence) Describe(indent int) string {
	return DescribeChildren(a.Base.Describe(indent), indent, a.children)
}

// Parallel runs its children together and is done when all of them are done.
type Parallel struct {
	Base
	children []Action
}

// NewParallel returns an action running children concurrently within each tick.
func NewParallel(name string, logger logging.Logger, children ...Action) *Parallel {
	return &Parallel{Base: NewBase(name, logger), children: children}
}

// Start starts every child.
func (a *Parallel) Start(ctx context.Context) {
	if !a.Begin() {
		return
	}
	for _, c := range a.children {
		c.Start(ctx)
	}
	a.checkDone()
}

// Run runs every child still active.
func (a *Parallel) Run(ctx context.Context) {
	if !a.ShouldRun() {
		return
	}
	for _, c := range a.children {
		if !c.IsDone() {
			c.Run(ctx)
		}
	}
	a.checkDone()
}

func (a *Parallel) checkDone() {
	for _, c := range a.children {
		if !c.IsDone() {
			return
		}
	}
	a.MarkDone()
}

// Cancel cancels every child that has not finished.
func (a *Parallel) Cancel(ctx context.Context) {
	a.MarkCanceled()
	for _, c := range a.children {
		if !c.IsDone() {
			c.Cancel(ctx)
		}
	}
}

// Describe lists the children.
func (a *Parallel) Describe(indent int) string {
	return DescribeChildren(a.Base.Describe(indent), indent, a.children)
}

// Race runs its children together and is done as soon as any of them is done. The others are
// canceled.
type Race struct {
	Base
	children []Action
	winner   Action
}

// NewRace returns an action finishing with its first child to finish.
func NewRace(name string, logger logging.Logger, children ...Action) *Race {
	return &Race{Base: NewBase(name, logger), children: children}
}

// Start starts every child.
func (a *Race) Start(ctx context.Context) {
	if !a.Begin() {
		return
	}
	for _, c := range a.children {
		c.Start(ctx)
	}
	a.checkDone(ctx)
}

// Run runs every child until one finishes.
func (a *Race) Run(ctx context.Context) {
	if !a.ShouldRun() {
		return
	}
	for _, c := range a.children {
		if !c.IsDone() {
			c.Run(ctx)
		}
	}
	a.checkDone(ctx)
}

func (a *Race) checkDone(ctx context.Context) {
	for _, c := range a.children {
		if c.IsDone() {
			a.winner = c
			break
		}
	}
	if a.winner == nil && len(a.children) > 0 {
		return
	}
	for _, c := range a.children {
		if !c.IsDone() {
			c.Cancel(ctx)
		}
	}
	a.MarkDone()
}

// Winner returns the first child that finished, or nil.
func (a *Race) Winner() Action {
	return a.winner
}

// Cancel cancels every child that has not finished.
func (a *Race) Cancel(ctx context.Context) {
	a.MarkCanceled()
	for _, c := range a.children {
		if !c.IsDone() {
			c.Cancel(ctx)
		}
	}
}

// Describe lists the children.
func (a *Race) Describe(indent int) string {
	return DescribeChildren(a.Base.Describe(indent), indent, a.children)
}

// Until runs an action until it finishes or a predicate becomes true, whichever is first. The
// predicate is checked every tick before the child runs.
type Until struct {
	Base
	child Action
	pred  func() bool
	met   bool
}

// NewUntil wraps child with an early-exit predicate.
func NewUntil(name string, logger logging.Logger, child Action, pred func() bool) *Until {
	return &Until{Base: NewBase(name, logger), child: child, pred: pred}
}

// Start starts the child unless the predicate already holds.
func (a *Until) Start(ctx context.Context) {
	if !a.Begin() {
		return
	}
	if a.pred() {
		a.met = true
		a.child.Cancel(ctx)
		a.MarkDone()
		return
	}
	a.child.Start(ctx)
	if a.child.IsDone() {
		a.MarkDone()
	}
}

// Run checks the predicate then runs the child.
func (a *Until) Run(ctx context.Context) {
	if !a.ShouldRun() {
		return
	}
	if a.pred() {
		a.met = true
		a.child.Cancel(ctx)
		a.MarkDone()
		return
	}
	a.child.Run(ctx)
	if a.child.IsDone() {
		a.MarkDone()
	}
}

// Met reports whether the action ended because the predicate became true.
func (a *Until) Met() bool {
	return a.met
}

// Cancel cancels the child.
func (a *Until) Cancel(ctx context.Context) {
	a.MarkCanceled()
	if !a.child.IsDone() {
		a.child.Cancel(ctx)
	}
}

// Describe shows the wrapped child.
func (a *Until) Describe(indent int) string {
	return DescribeChildren(a.Base.Describe(indent), indent, []Action{a.child})
}

// Timeout races child against a Wait of d.
func Timeout(logger logging.Logger, child Action, d time.Duration, clk clock.Clock) *Race {
	name := child.Name() + " with timeout"
	return NewRace(name, logger, child, NewWait("timeout", logger, d, clk))
}
