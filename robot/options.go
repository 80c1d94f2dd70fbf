package robot

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tickbot-robotics/tickbot/components/intake"
)

// options configures a Robot.
type options struct {
	clk         clock.Clock
	period      time.Duration
	pieceSensor intake.PieceSensor
	mirror      bool
	routines    map[string]RoutineBuilder
}

// Option configures how a Robot is built.
// Cribbed from https://github.com/grpc/grpc-go/blob/aff571cc86e6e7e740130dbbb32a9741558db805/dialoptions.go#L41
type Option interface {
	apply(*options)
}

// funcOption wraps a function that modifies options into an
// implementation of the Option interface.
type funcOption struct {
	f func(*options)
}

func (fdo *funcOption) apply(do *options) {
	fdo.f(do)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

// WithClock returns an Option which sets the clock used by the tick driver and every timeout.
func WithClock(clk clock.Clock) Option {
	return newFuncOption(func(o *options) {
		o.clk = clk
	})
}

// WithPeriod returns an Option which sets the tick period.
func WithPeriod(period time.Duration) Option {
	return newFuncOption(func(o *options) {
		o.period = period
	})
}

// WithPieceSensor returns an Option which replaces the beam break edge detector with sensor.
func WithPieceSensor(sensor intake.PieceSensor) Option {
	return newFuncOption(func(o *options) {
		o.pieceSensor = sensor
	})
}

// WithMirror returns an Option which mirrors every path about the field midline, for the
// alliance whose side is the reflection of the one paths are drawn for.
func WithMirror(mirror bool) Option {
	return newFuncOption(func(o *options) {
		o.mirror = mirror
	})
}

// WithRoutine returns an Option which adds a routine to this robot only, on top of the
// globally registered ones.
func WithRoutine(name string, builder RoutineBuilder) Option {
	return newFuncOption(func(o *options) {
		if o.routines == nil {
			o.routines = map[string]RoutineBuilder{}
		}
		o.routines[name] = builder
	})
}
