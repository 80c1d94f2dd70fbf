package robot

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/components/arm"
	"github.com/tickbot-robotics/tickbot/config"
	"github.com/tickbot-robotics/tickbot/motionplan/trajectory"
	"github.com/tickbot-robotics/tickbot/services/motion"
	"github.com/tickbot-robotics/tickbot/superstructure"
)

// Built-in routine names.
const (
	RoutineCollectGround  = "collect ground"
	RoutineCollectStation = "collect station"
	RoutineScore          = "score"
	RoutineRelease        = "release"
	RoutineStow           = "stow"
	RoutineHome           = "home"
	RoutineAuto           = "auto"
)

// Routine configuration paths.
const (
	HomePath = "routines.home"
	AutoPath = "routines.auto"
)

func init() {
	RegisterRoutine(RoutineCollectGround, collectRoutine(superstructure.CollectGround))
	RegisterRoutine(RoutineCollectStation, collectRoutine(superstructure.CollectStation))
	RegisterRoutine(RoutineScore, func(ctx context.Context, r *Robot, p config.Provider) (action.Action, error) {
		score, err := superstructure.NewScore(r.superstructure, p)
		if err != nil {
			return nil, err
		}
		return action.NewDelegate(r.logger, r.superstructure, score), nil
	})
	RegisterRoutine(RoutineRelease, func(ctx context.Context, r *Robot, p config.Provider) (action.Action, error) {
		return action.NewDelegate(r.logger, r.superstructure, r.superstructure.NewRelease()), nil
	})
	RegisterRoutine(RoutineStow, func(ctx context.Context, r *Robot, p config.Provider) (action.Action, error) {
		a := r.superstructure.Arm()
		move, err := a.NewMoveTo(arm.PositionRest)
		if err != nil {
			return nil, err
		}
		bounded := action.Timeout(r.logger, move, a.Config().MoveTimeout, r.clk)
		return action.NewDelegate(r.logger, a, bounded), nil
	})
	RegisterRoutine(RoutineHome, homeRoutine)
	RegisterRoutine(RoutineAuto, autoRoutine)
}

func collectRoutine(variant superstructure.CollectVariant) RoutineBuilder {
	return func(ctx context.Context, r *Robot, p config.Provider) (action.Action, error) {
		collect, err := superstructure.NewCollect(r.superstructure, variant, p)
		if err != nil {
			return nil, err
		}
		return action.NewDelegate(r.logger, r.superstructure, collect), nil
	}
}

// HomeConfig lists the waypoints the home routine drives through from wherever the robot is.
type HomeConfig struct {
	Waypoints []trajectory.Waypoint `json:"waypoints"`
}

func homeRoutine(ctx context.Context, r *Robot, p config.Provider) (action.Action, error) {
	var cfg HomeConfig
	if err := config.Decode(p, HomePath, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Waypoints) == 0 {
		return nil, config.NewMissingKeyError(HomePath + ".waypoints")
	}
	follow, err := r.NewFollowWaypoints(RoutineHome, cfg.Waypoints)
	if err != nil {
		return nil, err
	}
	return action.NewDelegate(r.logger, r.drive, follow), nil
}

// AutoConfig describes the autonomous routine: drive the pickup path, deploying the collector
// partway along it, then drive the score path and score.
type AutoConfig struct {
	PickupPath string `json:"pickup_path"`
	ScorePath  string `json:"score_path"`
	// DeployDistance is how far along the pickup path the collect starts, in meters.
	DeployDistance float64 `json:"deploy_distance"`
	Collect        string  `json:"collect"`
}

// AutoConfigFromProvider decodes and validates the auto routine section.
func AutoConfigFromProvider(p config.Provider) (AutoConfig, error) {
	var cfg AutoConfig
	if err := config.Decode(p, AutoPath, &cfg); err != nil {
		return AutoConfig{}, err
	}
	if cfg.PickupPath == "" {
		return AutoConfig{}, config.NewMissingKeyError(AutoPath + ".pickup_path")
	}
	if cfg.ScorePath == "" {
		return AutoConfig{}, config.NewMissingKeyError(AutoPath + ".score_path")
	}
	if cfg.DeployDistance < 0 {
		return AutoConfig{}, errors.Errorf("%s.deploy_distance must not be negative, got %v", AutoPath, cfg.DeployDistance)
	}
	if cfg.Collect == "" {
		cfg.Collect = superstructure.CollectGround.String()
	}
	if _, err := parseCollectVariant(cfg.Collect); err != nil {
		return AutoConfig{}, err
	}
	return cfg, nil
}

func parseCollectVariant(name string) (superstructure.CollectVariant, error) {
	v, ok := lo.Find(superstructure.CollectVariants, func(v superstructure.CollectVariant) bool {
		return v.String() == name
	})
	if !ok {
		return 0, config.NewMalformedKeyError(AutoPath+".collect", "collect variant", name)
	}
	return v, nil
}

func autoRoutine(ctx context.Context, r *Robot, p config.Provider) (action.Action, error) {
	cfg, err := AutoConfigFromProvider(p)
	if err != nil {
		return nil, err
	}
	variant, err := parseCollectVariant(cfg.Collect)
	if err != nil {
		return nil, err
	}

	deploy := atomic.NewBool(false)
	pickup, err := r.NewFollowPath(cfg.PickupPath, true, motion.DistanceCallback{
		Distance: cfg.DeployDistance,
		Fn:       func(ctx context.Context) { deploy.Store(true) },
	})
	if err != nil {
		return nil, err
	}
	toScore, err := r.NewFollowPath(cfg.ScorePath, false)
	if err != nil {
		return nil, err
	}
	collect, err := superstructure.NewCollect(r.superstructure, variant, p)
	if err != nil {
		return nil, err
	}
	score, err := superstructure.NewScore(r.superstructure, p)
	if err != nil {
		return nil, err
	}

	// if the follower ends short of the deploy distance, collect anyway once it has given up
	giveUp := pickup.Path().Duration() + r.follower.Timeout + 2*r.period
	logger := r.logger.Sublogger(RoutineAuto)
	return action.NewSequence(RoutineAuto, logger,
		action.NewParallel("pickup", logger,
			action.NewDelegate(logger, r.drive, pickup),
			action.NewSequence("deploy", logger,
				action.NewUntil("reach deploy distance", logger,
					action.NewWait("follower give up", logger, giveUp, r.clk), deploy.Load),
				action.NewDelegate(logger, r.superstructure, collect),
			),
		),
		action.NewDelegate(logger, r.drive, toScore),
		action.NewDelegate(logger, r.superstructure, score),
	), nil
}
