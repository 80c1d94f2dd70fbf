// Package fake implements a settable digital input.
package fake

import (
	"context"
	"sync"

	"github.com/tickbot-robotics/tickbot/components/board"
)

var _ board.DigitalInput = &Input{}

// Input is a DigitalInput whose value is set by the test or simulator.
type Input struct {
	name string

	mu      sync.Mutex
	value   bool
	failErr error
	reads   int
}

// NewInput returns a low input.
func NewInput(name string) *Input {
	return &Input{name: name}
}

// Name returns the input's name.
func (i *Input) Name() string {
	return i.name
}

// Get returns the current value.
func (i *Input) Get(ctx context.Context) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reads++
	if i.failErr != nil {
		return false, i.failErr
	}
	return i.value, nil
}

// Set sets the current value.
func (i *Input) Set(high bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.value = high
}

// Fail makes reads return err until called with nil.
func (i *Input) Fail(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.failErr = err
}

// Reads returns how many times Get was called.
func (i *Input) Reads() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.reads
}
