package utils

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Timer is a polled software timer: a start instant plus a duration, checked once per tick.
// It never sleeps.
type Timer struct {
	clk      clock.Clock
	duration time.Duration
	started  time.Time
	running  bool
}

// NewTimer returns a stopped timer. A nil clock uses the wall clock.
func NewTimer(clk clock.Clock, duration time.Duration) *Timer {
	if clk == nil {
		clk = clock.New()
	}
	return &Timer{clk: clk, duration: duration}
}

// Start (re)starts the timer from now.
func (t *Timer) Start() {
	t.started = t.clk.Now()
	t.running = true
}

// StartIfStopped starts the timer only if it is not already running.
func (t *Timer) StartIfStopped() {
	if !t.running {
		t.Start()
	}
}

// Stop stops the timer; a stopped timer never expires.
func (t *Timer) Stop() {
	t.running = false
}

// Running reports whether Start was called since the last Stop.
func (t *Timer) Running() bool {
	return t.running
}

// Elapsed returns the time since Start, or zero if stopped.
func (t *Timer) Elapsed() time.Duration {
	if !t.running {
		return 0
	}
	return t.clk.Since(t.started)
}

// Expired reports whether the timer is running and its duration has passed.
func (t *Timer) Expired() bool {
	return t.running && t.Elapsed() >= t.duration
}

// Duration returns the configured duration.
func (t *Timer) Duration() time.Duration {
	return t.duration
}
