package superstructure

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/components/arm"
	"github.com/tickbot-robotics/tickbot/config"
)

// Release ejects the held piece. With no piece held it aborts in Start rather than spinning the
// rollers.
type Release struct {
	action.Base
	s     *Superstructure
	eject *action.Delegate
}

// NewRelease returns a release.
func (s *Superstructure) NewRelease() *Release {
	logger := s.Logger().Sublogger("release")
	return &Release{
		Base:  action.NewBase("release", logger),
		s:     s,
		eject: action.NewDelegate(logger, s.intake, s.intake.NewEject()),
	}
}

// Start ejects, or aborts when nothing is held.
func (r *Release) Start(ctx context.Context) {
	if !r.Begin() {
		return
	}
	if !r.s.intake.HasPiece() {
		r.Abort("no piece held")
		return
	}
	r.eject.Start(ctx)
	if r.eject.IsDone() {
		r.MarkDone()
	}
}

// Run finishes with the eject.
func (r *Release) Run(ctx context.Context) {
	if !r.ShouldRun() {
		return
	}
	r.eject.Run(ctx)
	if r.eject.IsDone() {
		r.MarkDone()
	}
}

// Cancel stops the eject.
func (r *Release) Cancel(ctx context.Context) {
	if r.MarkCanceled() {
		r.eject.Cancel(ctx)
	}
}

// Describe shows the eject.
func (r *Release) Describe(indent int) string {
	return action.DescribeChildren(r.Base.Describe(indent), indent, []action.Action{r.eject})
}

// ScoreConfig holds the score pipeline tunables.
type ScoreConfig struct {
	// Position and StowPosition name arm positions.
	Position     string `json:"position"`
	StowPosition string `json:"stow_position"`
}

// ScoreConfigPath is where the score tunables live.
const ScoreConfigPath = "superstructure.score"

// ScoreConfigFromProvider decodes the score tunables.
func ScoreConfigFromProvider(p config.Provider) (ScoreConfig, error) {
	var cfg ScoreConfig
	if err := config.Decode(p, ScoreConfigPath, &cfg); err != nil {
		return ScoreConfig{}, err
	}
	if cfg.Position == "" {
		return ScoreConfig{}, config.NewMissingKeyError(ScoreConfigPath + ".position")
	}
	if cfg.StowPosition == "" {
		cfg.StowPosition = arm.PositionRest
	}
	return cfg, nil
}

type scoreState int

const (
	scoreRaising scoreState = iota
	scoreReleasing
	scoreStowing
	scoreRecovering
	scoreFinished
)

func (s scoreState) String() string {
	switch s {
	case scoreRaising:
		return "raising"
	case scoreReleasing:
		return "releasing"
	case scoreStowing:
		return "stowing"
	case scoreRecovering:
		return "recovering"
	case scoreFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Score raises the arm, releases the piece and stows. If the arm does not reach the score
// position it recovers instead of releasing.
type Score struct {
	action.Base
	fsm machine[scoreState]

	s        *Superstructure
	raise    *action.Delegate
	release  *Release
	stow     *action.Delegate
	recovery *RecoveryStrategy
}

// NewScore builds a score pipeline with tunables read from p.
func NewScore(s *Superstructure, p config.Provider) (*Score, error) {
	cfg, err := ScoreConfigFromProvider(p)
	if err != nil {
		return nil, err
	}
	logger := s.Logger().Sublogger("score")
	raise, err := s.boundedMove(cfg.Position)
	if err != nil {
		return nil, errors.Wrap(err, "score")
	}
	stow, err := s.boundedMove(cfg.StowPosition)
	if err != nil {
		return nil, errors.Wrap(err, "score")
	}
	recovery, err := s.NewRecoveryStrategy(logger)
	if err != nil {
		return nil, errors.Wrap(err, "score")
	}
	return &Score{
		Base:     action.NewBase("score", logger),
		fsm:      newMachine(logger, scoreRaising),
		s:        s,
		raise:    action.NewDelegate(logger, s.arm, raise),
		release:  s.NewRelease(),
		stow:     action.NewDelegate(logger, s.arm, stow),
		recovery: recovery,
	}, nil
}

// Recovered reports whether the action went through recovery.
func (a *Score) Recovered() bool {
	return a.recovery.Entered()
}

// Start raises the arm. Without a piece there is nothing to score and the action aborts.
func (a *Score) Start(ctx context.Context) {
	if !a.Begin() {
		return
	}
	if !a.s.intake.HasPiece() {
		a.Abort("no piece held")
		return
	}
	a.raise.Start(ctx)
}

// Run advances the pipeline.
func (a *Score) Run(ctx context.Context) {
	if !a.ShouldRun() {
		return
	}
	switch a.fsm.state {
	case scoreRaising:
		a.raise.Run(ctx)
		if !a.raise.IsDone() {
			return
		}
		if !a.s.arm.AtTarget() {
			a.fsm.transition(scoreRecovering)
			a.recovery.Enter(ctx, "arm did not reach score position")
			return
		}
		a.fsm.transition(scoreReleasing)
		a.release.Start(ctx)
	case scoreReleasing:
		a.release.Run(ctx)
		if !a.release.IsDone() {
			return
		}
		a.fsm.transition(scoreStowing)
		a.stow.Start(ctx)
	case scoreStowing:
		a.stow.Run(ctx)
		if a.stow.IsDone() {
			a.finish()
		}
	case scoreRecovering:
		if a.recovery.Run(ctx) {
			a.finish()
		}
	case scoreFinished:
	}
}

func (a *Score) finish() {
	a.fsm.transition(scoreFinished)
	a.MarkDone()
}

// Cancel stops whichever phase is active.
func (a *Score) Cancel(ctx context.Context) {
	if !a.MarkCanceled() {
		return
	}
	a.raise.Cancel(ctx)
	a.release.Cancel(ctx)
	a.stow.Cancel(ctx)
	a.recovery.Cancel(ctx)
}

// Describe shows the current state and phase.
func (a *Score) Describe(indent int) string {
	header := fmt.Sprintf("%s (%s)", a.Base.Describe(indent), a.fsm.state)
	switch a.fsm.state {
	case scoreRaising:
		return action.DescribeChildren(header, indent, []action.Action{a.raise})
	case scoreReleasing:
		return action.DescribeChildren(header, indent, []action.Action{a.release})
	case scoreStowing:
		return action.DescribeChildren(header, indent, []action.Action{a.stow})
	case scoreRecovering:
		return header + "\n" + a.recovery.Describe(indent+1)
	default:
		return header
	}
}
