package superstructure

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/components/arm"
	"github.com/tickbot-robotics/tickbot/config"
)

// CollectVariant selects where a piece is collected from.
type CollectVariant int

const (
	// CollectGround picks a piece off the floor.
	CollectGround CollectVariant = iota
	// CollectStation takes a piece fed by the human player station.
	CollectStation
)

// CollectVariants lists every variant.
var CollectVariants = []CollectVariant{CollectGround, CollectStation}

func (v CollectVariant) String() string {
	switch v {
	case CollectGround:
		return "ground"
	case CollectStation:
		return "station"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// CollectConfig holds the tunables of one collect variant.
type CollectConfig struct {
	// DeployPosition and StowPosition name arm positions.
	DeployPosition string        `json:"deploy_position"`
	StowPosition   string        `json:"stow_position"`
	RollerPower    float64       `json:"roller_power"`
	Timeout        time.Duration `json:"timeout"`
}

// Validate checks the configuration found at path.
func (c *CollectConfig) Validate(path string) error {
	if c.DeployPosition == "" {
		return config.NewMissingKeyError(path + ".deploy_position")
	}
	if c.StowPosition == "" {
		c.StowPosition = arm.PositionRest
	}
	if c.RollerPower == 0 || c.RollerPower < -1 || c.RollerPower > 1 {
		return errors.Errorf("%s.roller_power must be non-zero and within [-1, 1], got %v", path, c.RollerPower)
	}
	if c.Timeout <= 0 {
		return errors.Errorf("%s needs a positive timeout", path)
	}
	return nil
}

// CollectConfigPath returns where a variant's tunables live.
func CollectConfigPath(v CollectVariant) string {
	return "superstructure.collect." + v.String()
}

// CollectConfigFromProvider decodes and validates a variant's tunables.
func CollectConfigFromProvider(p config.Provider, v CollectVariant) (CollectConfig, error) {
	path := CollectConfigPath(v)
	var cfg CollectConfig
	if err := config.Decode(p, path, &cfg); err != nil {
		return CollectConfig{}, err
	}
	if err := cfg.Validate(path); err != nil {
		return CollectConfig{}, err
	}
	return cfg, nil
}

type collectState int

const (
	collectDeploying collectState = iota
	collectIntaking
	collectStowing
	collectRecovering
	collectFinished
)

func (s collectState) String() string {
	switch s {
	case collectDeploying:
		return "deploying"
	case collectIntaking:
		return "intaking"
	case collectStowing:
		return "stowing"
	case collectRecovering:
		return "recovering"
	case collectFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Collect deploys the arm, runs the intake until a piece arrives, and stows. If the arm does not
// deploy in time, or the intake phase ends without a piece, it recovers instead.
type Collect struct {
	action.Base
	fsm machine[collectState]

	s        *Superstructure
	variant  CollectVariant
	deploy   *action.Delegate
	grab     *action.Delegate
	stow     *action.Delegate
	recovery *RecoveryStrategy
	acquired bool
}

// NewCollect builds a collect of the given variant with tunables read from p.
func NewCollect(s *Superstructure, variant CollectVariant, p config.Provider) (*Collect, error) {
	cfg, err := CollectConfigFromProvider(p, variant)
	if err != nil {
		return nil, err
	}
	name := "collect " + variant.String()
	logger := s.Logger().Sublogger(name)
	deploy, err := s.boundedMove(cfg.DeployPosition)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	stow, err := s.boundedMove(cfg.StowPosition)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	recovery, err := s.NewRecoveryStrategy(logger)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return &Collect{
		Base:     action.NewBase(name, logger),
		fsm:      newMachine(logger, collectDeploying),
		s:        s,
		variant:  variant,
		deploy:   action.NewDelegate(logger, s.arm, deploy),
		grab:     action.NewDelegate(logger, s.intake, s.intake.NewGrabAt(cfg.RollerPower, cfg.Timeout)),
		stow:     action.NewDelegate(logger, s.arm, stow),
		recovery: recovery,
	}, nil
}

// boundedMove is an arm move to a named position that gives up after the arm's move timeout.
func (s *Superstructure) boundedMove(position string) (action.Action, error) {
	move, err := s.arm.NewMoveTo(position)
	if err != nil {
		return nil, err
	}
	return action.Timeout(s.Logger(), move, s.arm.Config().MoveTimeout, s.clk), nil
}

// Variant returns the collect variant.
func (c *Collect) Variant() CollectVariant {
	return c.variant
}

// Acquired reports whether the intake phase ended with a piece.
func (c *Collect) Acquired() bool {
	return c.acquired
}

// Recovered reports whether the action went through recovery.
func (c *Collect) Recovered() bool {
	return c.recovery.Entered()
}

// Start deploys the arm. Holding a piece already satisfies the action.
func (c *Collect) Start(ctx context.Context) {
	if !c.Begin() {
		return
	}
	if c.s.intake.HasPiece() {
		c.acquired = true
		c.Logger().Infow("already holding a piece")
		c.MarkDone()
		return
	}
	c.deploy.Start(ctx)
}

// Run advances the state machine.
func (c *Collect) Run(ctx context.Context) {
	if !c.ShouldRun() {
		return
	}
	switch c.fsm.state {
	case collectDeploying:
		c.deploy.Run(ctx)
		if !c.deploy.IsDone() {
			return
		}
		if !c.s.arm.AtTarget() {
			c.recover(ctx, "arm did not deploy")
			return
		}
		c.fsm.transition(collectIntaking)
		c.grab.Start(ctx)
	case collectIntaking:
		c.grab.Run(ctx)
		if !c.grab.IsDone() {
			return
		}
		if !c.s.intake.HasPiece() {
			c.recover(ctx, "no piece acquired")
			return
		}
		c.acquired = true
		c.fsm.transition(collectStowing)
		c.stow.Start(ctx)
	case collectStowing:
		c.stow.Run(ctx)
		if !c.stow.IsDone() {
			return
		}
		if !c.s.arm.AtTarget() {
			c.Logger().Warnw("arm did not reach stow position")
		}
		c.finish()
	case collectRecovering:
		if c.recovery.Run(ctx) {
			c.finish()
		}
	case collectFinished:
	}
}

func (c *Collect) recover(ctx context.Context, reason string) {
	c.fsm.transition(collectRecovering)
	c.recovery.Enter(ctx, reason)
}

func (c *Collect) finish() {
	c.fsm.transition(collectFinished)
	c.MarkDone()
}

// Cancel stops whichever phase is active.
func (c *Collect) Cancel(ctx context.Context) {
	if !c.MarkCanceled() {
		return
	}
	c.deploy.Cancel(ctx)
	c.grab.Cancel(ctx)
	c.stow.Cancel(ctx)
	c.recovery.Cancel(ctx)
}

// Describe shows the current state and phase.
func (c *Collect) Describe(indent int) string {
	header := fmt.Sprintf("%s (%s)", c.Base.Describe(indent), c.fsm.state)
	switch c.fsm.state {
	case collectDeploying:
		return action.DescribeChildren(header, indent, []action.Action{c.deploy})
	case collectIntaking:
		return action.DescribeChildren(header, indent, []action.Action{c.grab})
	case collectStowing:
		return action.DescribeChildren(header, indent, []action.Action{c.stow})
	case collectRecovering:
		return header + "\n" + c.recovery.Describe(indent+1)
	default:
		return header
	}
}
