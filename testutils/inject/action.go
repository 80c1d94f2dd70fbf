package inject

import (
	"context"
	"sync"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/logging"
)

// EventLog records lifecycle calls across several actions in call order.
type EventLog struct {
	mu     sync.Mutex
	events []string
}

// Record appends an event.
func (l *EventLog) Record(event string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Events returns a copy of the recorded events.
func (l *EventLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// Action is an action whose behavior is supplied by func fields. It counts every call, including
// calls the lifecycle guards ignore.
type Action struct {
	action.Base
	Log *EventLog

	StartFunc  func(ctx context.Context, a *Action)
	RunFunc    func(ctx context.Context, a *Action)
	CancelFunc func(ctx context.Context, a *Action)

	StartCalls  int
	RunCalls    int
	CancelCalls int
	// ActiveRuns counts Run calls made while the action was running.
	ActiveRuns int
}

// NewAction returns an Action that runs until Finish is called.
func NewAction(name string, logger logging.Logger, log *EventLog) *Action {
	return &Action{Base: action.NewBase(name, logger), Log: log}
}

// Start records the call then calls StartFunc.
func (a *Action) Start(ctx context.Context) {
	a.StartCalls++
	a.Log.Record(a.Name() + ".start")
	if !a.Begin() {
		return
	}
	if a.StartFunc != nil {
		a.StartFunc(ctx, a)
	}
}

// Run records the call then calls RunFunc while running.
func (a *Action) Run(ctx context.Context) {
	a.RunCalls++
	if !a.ShouldRun() {
		return
	}
	a.ActiveRuns++
	a.Log.Record(a.Name() + ".run")
	if a.RunFunc != nil {
		a.RunFunc(ctx, a)
	}
}

// Cancel records the call then calls CancelFunc if the action was running.
func (a *Action) Cancel(ctx context.Context) {
	a.CancelCalls++
	a.Log.Record(a.Name() + ".cancel")
	if a.MarkCanceled() && a.CancelFunc != nil {
		a.CancelFunc(ctx, a)
	}
}

// Finish marks the action done.
func (a *Action) Finish() {
	a.MarkDone()
}

// FinishAfter returns a RunFunc that finishes on the nth active run.
func FinishAfter(n int) func(ctx context.Context, a *Action) {
	return func(ctx context.Context, a *Action) {
		if a.ActiveRuns >= n {
			a.Finish()
		}
	}
}
