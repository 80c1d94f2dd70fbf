package utils

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	goutils "go.viam.com/utils"
)

// StoppableWorkers runs background loops such as input pollers, file watchers and the tick driver
// until they are stopped.
type StoppableWorkers interface {
	// AddWorkers starts one goroutine per function. It does nothing once Stop has been called.
	AddWorkers(...func(context.Context))
	// Stop cancels every worker and waits for them to return. Later calls return immediately.
	Stop()
	// Active returns how many workers have not returned yet.
	Active() int64
}

type workers struct {
	ctx    context.Context
	cancel context.CancelFunc
	active *atomic.Int64

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewStoppableWorkers starts funcs on a background context.
func NewStoppableWorkers(funcs ...func(context.Context)) StoppableWorkers {
	return NewStoppableWorkersWithContext(context.Background(), funcs...)
}

// NewStoppableWorkersWithContext starts funcs on a context derived from ctx, so canceling ctx
// also ends them.
func NewStoppableWorkersWithContext(ctx context.Context, funcs ...func(context.Context)) StoppableWorkers {
	w := &workers{active: atomic.NewInt64(0)}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.AddWorkers(funcs...)
	return w
}

func (w *workers) AddWorkers(funcs ...func(context.Context)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	for _, f := range funcs {
		f := f
		w.wg.Add(1)
		w.active.Inc()
		goutils.PanicCapturingGo(func() {
			defer w.wg.Done()
			defer w.active.Dec()
			f(w.ctx)
		})
	}
}

func (w *workers) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
}

func (w *workers) Active() int64 {
	return w.active.Load()
}
