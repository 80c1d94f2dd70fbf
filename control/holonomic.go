package control

import (
	"math"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/tickbot-robotics/tickbot/config"
	"github.com/tickbot-robotics/tickbot/spatialmath"
	"github.com/tickbot-robotics/tickbot/utils"
)

// HolonomicConfig configures a HolonomicController. It is decoded from the "drive.follower"
// section of the robot configuration.
type HolonomicConfig struct {
	// Translation gains are shared by the x and y controllers.
	Translation         PIDConfig   `json:"translation"`
	Rotation            PIDConfig   `json:"rotation"`
	RotationConstraints Constraints `json:"rotation_constraints"`
	// LinearTolerance is the at-reference window on each of x and y, in meters.
	LinearTolerance float64 `json:"linear_tolerance"`
	// AngularToleranceDeg is the at-reference window on heading, in degrees.
	AngularToleranceDeg float64 `json:"angular_tolerance_deg"`
}

// Validate checks the configuration found at path.
func (c HolonomicConfig) Validate(path string) error {
	if err := c.Translation.Validate(path + ".translation"); err != nil {
		return err
	}
	if err := c.Rotation.Validate(path + ".rotation"); err != nil {
		return err
	}
	if err := c.RotationConstraints.Validate(path + ".rotation_constraints"); err != nil {
		return err
	}
	if !(c.LinearTolerance > 0) || !(c.AngularToleranceDeg > 0) {
		return errors.Errorf("%s needs positive linear_tolerance and angular_tolerance_deg", path)
	}
	return nil
}

// Reference is the target a holonomic drivetrain is tracking at one instant.
type Reference struct {
	// Pose is the target position. Its heading is the direction of travel.
	Pose spatialmath.Pose
	// Velocity is the speed along the direction of travel.
	Velocity float64
	// Rotation is the heading the robot should face.
	Rotation float64
	// AngularVelocity is the rate of change of Rotation.
	AngularVelocity float64
}

// HolonomicController tracks a moving reference with independent x, y and heading loops. The x
// and y loops add a correction to the reference velocity; heading is a profiled loop that wraps
// at ±π.
type HolonomicController struct {
	x, y  *PID
	theta *ProfiledPID

	tolerance     spatialmath.Pose
	poseError     spatialmath.Pose
	rotationError float64
	enabled       bool
	needsReset    bool
	haveError     bool
}

// NewHolonomicController returns a controller for cfg.
func NewHolonomicController(cfg HolonomicConfig) (*HolonomicController, error) {
	if err := cfg.Validate("holonomic controller"); err != nil {
		return nil, err
	}
	x, err := NewPID(cfg.Translation)
	if err != nil {
		return nil, err
	}
	y, err := NewPID(cfg.Translation)
	if err != nil {
		return nil, err
	}
	theta, err := NewProfiledPID(cfg.Rotation, cfg.RotationConstraints)
	if err != nil {
		return nil, err
	}
	theta.EnableContinuousInput(-math.Pi, math.Pi)
	angTol := utils.DegToRad(cfg.AngularToleranceDeg)
	return &HolonomicController{
		x:          x,
		y:          y,
		theta:      theta,
		tolerance:  spatialmath.Pose{Point: r2.Point{X: cfg.LinearTolerance, Y: cfg.LinearTolerance}, Heading: angTol},
		enabled:    true,
		needsReset: true,
	}, nil
}

// SetEnabled turns feedback on or off. Disabled, Calculate returns the reference velocity alone.
func (h *HolonomicController) SetEnabled(enabled bool) {
	h.enabled = enabled
}

// Tolerance returns the at-reference window.
func (h *HolonomicController) Tolerance() spatialmath.Pose {
	return h.tolerance
}

// Reset clears all loop state and restarts the heading profile from the given pose.
func (h *HolonomicController) Reset(current spatialmath.Pose) {
	h.x.Reset()
	h.y.Reset()
	h.theta.Reset(State{Position: current.Heading})
	h.needsReset = false
	h.haveError = false
}

// Calculate returns robot-relative speeds that move the robot from current toward ref, where dt
// is the time since the previous call.
func (h *HolonomicController) Calculate(current spatialmath.Pose, ref Reference, dt time.Duration) spatialmath.ChassisSpeeds {
	if h.needsReset {
		h.Reset(current)
	}

	travel := ref.Pose.Heading
	xFF := ref.Velocity * math.Cos(travel)
	yFF := ref.Velocity * math.Sin(travel)

	h.poseError = spatialmath.Pose{
		Point:   ref.Pose.Point.Sub(current.Point),
		Heading: utils.AngleDiffRad(current.Heading, ref.Rotation),
	}
	h.rotationError = h.poseError.Heading
	h.haveError = true

	thetaFeedback := h.theta.Calculate(current.Heading, ref.Rotation, dt)
	if !h.enabled {
		return spatialmath.FromFieldRelative(xFF, yFF, ref.AngularVelocity, current.Heading)
	}

	xFeedback := h.x.Calculate(current.Point.X, ref.Pose.Point.X, dt)
	yFeedback := h.y.Calculate(current.Point.Y, ref.Pose.Point.Y, dt)
	return spatialmath.FromFieldRelative(
		xFF+xFeedback,
		yFF+yFeedback,
		thetaFeedback+ref.AngularVelocity,
		current.Heading,
	)
}

// PoseError returns the field-relative error from the last Calculate; its heading is the
// rotation error.
func (h *HolonomicController) PoseError() spatialmath.Pose {
	return h.poseError
}

// AtReference reports whether the last error was inside the tolerance box on every axis at once.
func (h *HolonomicController) AtReference() bool {
	if !h.haveError {
		return false
	}
	return math.Abs(h.poseError.Point.X) < h.tolerance.Point.X &&
		math.Abs(h.poseError.Point.Y) < h.tolerance.Point.Y &&
		math.Abs(h.rotationError) < h.tolerance.Heading
}

// HolonomicConfigFromProvider decodes and validates the controller section at path.
func HolonomicConfigFromProvider(p config.Provider, path string) (HolonomicConfig, error) {
	var cfg HolonomicConfig
	if err := config.Decode(p, path, &cfg); err != nil {
		return HolonomicConfig{}, err
	}
	if err := cfg.Validate(path); err != nil {
		return HolonomicConfig{}, err
	}
	return cfg, nil
}
