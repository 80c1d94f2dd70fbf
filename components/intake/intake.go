// Package intake implements a roller intake subsystem with a beam-break piece sensor.
package intake

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/tickbot-robotics/tickbot/components/board"
	"github.com/tickbot-robotics/tickbot/components/motor"
	"github.com/tickbot-robotics/tickbot/config"
	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/subsystem"
)

// SubsystemName is the intake's name in the subsystem tree.
const SubsystemName = "intake"

// BeamBreakConfig selects how the piece sensor is polled.
type BeamBreakConfig struct {
	// Edge is "rising", "falling" or "both"; the default is rising.
	Edge       string        `json:"edge"`
	PollPeriod time.Duration `json:"poll_period"`
}

// Config describes the intake. Powers are open loop fractions in [-1, 1].
type Config struct {
	IntakePower float64         `json:"intake_power"`
	HoldPower   float64         `json:"hold_power"`
	EjectPower  float64         `json:"eject_power"`
	EjectTime   time.Duration   `json:"eject_time"`
	Preloaded   bool            `json:"preloaded"`
	BeamBreak   BeamBreakConfig `json:"beam_break"`
}

// Validate checks the configuration found at path.
func (c *Config) Validate(path string) error {
	for name, p := range map[string]float64{
		"intake_power": c.IntakePower,
		"hold_power":   c.HoldPower,
		"eject_power":  c.EjectPower,
	} {
		if math.Abs(p) > 1 || math.IsNaN(p) {
			return errors.Errorf("%s.%s must be within [-1, 1], got %v", path, name, p)
		}
	}
	if c.IntakePower == 0 || c.EjectPower == 0 {
		return errors.Errorf("%s needs non-zero intake_power and eject_power", path)
	}
	if c.EjectTime <= 0 {
		return errors.Errorf("%s needs a positive eject_time", path)
	}
	if _, err := board.ParseEdge(c.BeamBreak.Edge); err != nil {
		return errors.Wrapf(err, "%s.beam_break", path)
	}
	return nil
}

// Edge returns the parsed beam break edge.
func (c *Config) Edge() board.Edge {
	edge, _ := board.ParseEdge(c.BeamBreak.Edge)
	return edge
}

// ConfigFromProvider decodes and validates the intake section at path.
func ConfigFromProvider(p config.Provider, path string) (Config, error) {
	var cfg Config
	if err := config.Decode(p, path, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// A PieceSensor reports, and clears, whether a piece arrived since the last call.
// *board.EdgeDetector is one.
type PieceSensor interface {
	Fired() bool
}

var _ PieceSensor = (*board.EdgeDetector)(nil)

// Intake is the intake subsystem. Its refresh phase reads the piece sensor flag; nothing reads the
// raw beam break line from a tick.
type Intake struct {
	*subsystem.Subsystem

	cfg    Config
	roller motor.Motor
	sensor PieceSensor
	clk    clock.Clock

	hasPiece bool
	arrivals int
}

// New returns an intake. A nil clock uses the wall clock.
func New(cfg Config, roller motor.Motor, sensor PieceSensor, clk clock.Clock, logger logging.Logger) (*Intake, error) {
	if err := cfg.Validate(SubsystemName); err != nil {
		return nil, err
	}
	if roller == nil || sensor == nil {
		return nil, errors.New("intake needs a roller motor and a piece sensor")
	}
	if clk == nil {
		clk = clock.New()
	}
	in := &Intake{cfg: cfg, roller: roller, sensor: sensor, clk: clk, hasPiece: cfg.Preloaded}
	in.Subsystem = subsystem.New(SubsystemName, logger,
		subsystem.WithRefresh(in.refresh),
		subsystem.WithDefaultAction(in.newHold),
	)
	return in, nil
}

func (in *Intake) refresh(ctx context.Context) error {
	if !in.sensor.Fired() {
		return nil
	}
	in.arrivals++
	if !in.hasPiece {
		in.Logger().Infow("piece acquired", "arrivals", in.arrivals)
	}
	in.hasPiece = true
	return nil
}

// Config returns the intake configuration.
func (in *Intake) Config() Config {
	return in.cfg
}

// Roller returns the roller motor.
func (in *Intake) Roller() motor.Motor {
	return in.roller
}

// HasPiece reports whether a piece is held, as of the last refresh.
func (in *Intake) HasPiece() bool {
	return in.hasPiece
}

// SetHasPiece overrides the held state, e.g. for a piece loaded by hand.
func (in *Intake) SetHasPiece(has bool) {
	in.hasPiece = has
}

// Arrivals counts sensor edges seen since construction.
func (in *Intake) Arrivals() int {
	return in.arrivals
}

// SetRoller sets the roller output.
func (in *Intake) SetRoller(ctx context.Context, power float64) error {
	return in.roller.SetPower(ctx, power)
}

// Stop zeroes the roller.
func (in *Intake) Stop(ctx context.Context) error {
	return motor.Stop(ctx, in.roller)
}
