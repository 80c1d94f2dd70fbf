package board

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/utils"
)

// Edge selects which transitions an EdgeDetector reports.
type Edge int

const (
	// EdgeRising reports low to high transitions.
	EdgeRising Edge = iota
	// EdgeFalling reports high to low transitions.
	EdgeFalling
	// EdgeBoth reports every transition.
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return fmt.Sprintf("edge(%d)", int(e))
	}
}

// ParseEdge parses "rising", "falling" or "both".
func ParseEdge(s string) (Edge, error) {
	switch s {
	case "rising", "":
		return EdgeRising, nil
	case "falling":
		return EdgeFalling, nil
	case "both":
		return EdgeBoth, nil
	}
	return EdgeRising, fmt.Errorf("unknown edge %q", s)
}

const defaultPollPeriod = time.Millisecond

// EdgeDetector polls one DigitalInput on its own goroutine, faster than the control tick, so a
// pulse shorter than a tick is not missed. The only state shared with the tick is one atomic
// "fired since last checked" flag; the tick never reads the raw line.
type EdgeDetector struct {
	input   DigitalInput
	edge    Edge
	period  time.Duration
	logger  logging.Logger
	fired   *atomic.Bool
	polls   *atomic.Int64
	workers utils.StoppableWorkers
}

// NewEdgeDetector starts polling input every period (1ms when zero).
func NewEdgeDetector(input DigitalInput, edge Edge, period time.Duration, logger logging.Logger) *EdgeDetector {
	if period <= 0 {
		period = defaultPollPeriod
	}
	d := &EdgeDetector{
		input:  input,
		edge:   edge,
		period: period,
		logger: logger,
		fired:  atomic.NewBool(false),
		polls:  atomic.NewInt64(0),
	}
	d.workers = utils.NewStoppableWorkers(d.poll)
	return d
}

func (d *EdgeDetector) poll(ctx context.Context) {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	var last, haveLast, failing bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		value, err := d.input.Get(ctx)
		if err != nil {
			if !failing {
				d.logger.Warnw("digital input read failed", "input", d.input.Name(), "error", err)
				failing = true
			}
			continue
		}
		if failing {
			d.logger.Infow("digital input recovered", "input", d.input.Name())
			failing = false
		}
		if haveLast && d.matches(last, value) {
			d.fired.Store(true)
		}
		last, haveLast = value, true
		d.polls.Inc()
	}
}

func (d *EdgeDetector) matches(prev, cur bool) bool {
	switch d.edge {
	case EdgeRising:
		return !prev && cur
	case EdgeFalling:
		return prev && !cur
	default:
		return prev != cur
	}
}

// Fired reports whether a matching edge happened since the previous call, and clears the flag.
func (d *EdgeDetector) Fired() bool {
	return d.fired.Swap(false)
}

// Polls returns how many successful reads happened.
func (d *EdgeDetector) Polls() int64 {
	return d.polls.Load()
}

// Close stops the polling goroutine.
func (d *EdgeDetector) Close() {
	d.workers.Stop()
}
