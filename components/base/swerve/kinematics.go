// Package swerve implements a drivetrain of independently steered wheel modules.
package swerve

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/tickbot-robotics/tickbot/spatialmath"
	"github.com/tickbot-robotics/tickbot/utils"
)

// ModuleState is a wheel speed in m/s and a steering angle in radians, robot-relative.
type ModuleState struct {
	Speed float64
	Angle float64
}

// Optimize returns an equivalent state that turns the module by at most 90 degrees from current,
// reversing the wheel instead of turning further.
func (s ModuleState) Optimize(current float64) ModuleState {
	if math.Abs(utils.AngleDiffRad(current, s.Angle)) > math.Pi/2 {
		return ModuleState{Speed: -s.Speed, Angle: utils.WrapRad(s.Angle + math.Pi)}
	}
	return s
}

// ModulePosition is the distance a wheel has rolled and its steering angle.
type ModulePosition struct {
	Distance float64
	Angle    float64
}

// Kinematics maps between chassis speeds and module states for modules at fixed offsets from the
// robot center.
type Kinematics struct {
	offsets []r2.Point
	// inverse maps [vx vy omega] to each module's [vx vy], two rows per module.
	inverse *mat.Dense
}

// NewKinematics returns kinematics for modules at the given robot-relative offsets.
func NewKinematics(offsets ...r2.Point) (*Kinematics, error) {
	if len(offsets) < 2 {
		return nil, errors.Errorf("swerve kinematics needs at least 2 modules, got %d", len(offsets))
	}
	distinct := false
	for _, o := range offsets[1:] {
		if o != offsets[0] {
			distinct = true
		}
	}
	if !distinct {
		return nil, errors.New("swerve module offsets must not all be the same point")
	}
	inverse := mat.NewDense(2*len(offsets), 3, nil)
	for i, o := range offsets {
		inverse.SetRow(2*i, []float64{1, 0, -o.Y})
		inverse.SetRow(2*i+1, []float64{0, 1, o.X})
	}
	return &Kinematics{offsets: append([]r2.Point(nil), offsets...), inverse: inverse}, nil
}

// NumModules returns the module count.
func (k *Kinematics) NumModules() int {
	return len(k.offsets)
}

// ToModuleStates returns the state each module needs for the robot to move at speeds. With zero
// speeds every module reports angle zero.
func (k *Kinematics) ToModuleStates(speeds spatialmath.ChassisSpeeds) []ModuleState {
	var wheels mat.VecDense
	wheels.MulVec(k.inverse, mat.NewVecDense(3, []float64{speeds.Vx, speeds.Vy, speeds.Omega}))
	states := make([]ModuleState, len(k.offsets))
	for i := range states {
		vx, vy := wheels.AtVec(2*i), wheels.AtVec(2*i+1)
		states[i] = ModuleState{Speed: math.Hypot(vx, vy), Angle: math.Atan2(vy, vx)}
	}
	return states
}

// ToChassisSpeeds returns the least squares chassis speeds for measured module states.
func (k *Kinematics) ToChassisSpeeds(states []ModuleState) (spatialmath.ChassisSpeeds, error) {
	v, err := k.solve(len(states), func(i int) (float64, float64) { return states[i].Speed, states[i].Angle })
	if err != nil {
		return spatialmath.ChassisSpeeds{}, err
	}
	return spatialmath.ChassisSpeeds{Vx: v[0], Vy: v[1], Omega: v[2]}, nil
}

// ToTwist returns the least squares robot displacement for module position deltas.
func (k *Kinematics) ToTwist(deltas []ModulePosition) (spatialmath.Twist, error) {
	v, err := k.solve(len(deltas), func(i int) (float64, float64) { return deltas[i].Distance, deltas[i].Angle })
	if err != nil {
		return spatialmath.Twist{}, err
	}
	return spatialmath.Twist{DX: v[0], DY: v[1], DTheta: v[2]}, nil
}

func (k *Kinematics) solve(n int, polar func(i int) (float64, float64)) ([]float64, error) {
	if n != len(k.offsets) {
		return nil, errors.Errorf("expected %d modules, got %d", len(k.offsets), n)
	}
	b := mat.NewVecDense(2*n, nil)
	for i := 0; i < n; i++ {
		mag, angle := polar(i)
		s, c := math.Sincos(angle)
		b.SetVec(2*i, mag*c)
		b.SetVec(2*i+1, mag*s)
	}
	var x mat.VecDense
	if err := x.SolveVec(k.inverse, b); err != nil {
		return nil, errors.Wrap(err, "solving swerve forward kinematics")
	}
	return []float64{x.AtVec(0), x.AtVec(1), x.AtVec(2)}, nil
}

// DesaturateWheelSpeeds scales every module speed down by the same factor so none exceeds
// maxSpeed.
func DesaturateWheelSpeeds(states []ModuleState, maxSpeed float64) {
	fastest := 0.0
	for _, s := range states {
		fastest = math.Max(fastest, math.Abs(s.Speed))
	}
	if fastest <= maxSpeed || fastest == 0 {
		return
	}
	scale := maxSpeed / fastest
	for i := range states {
		states[i].Speed *= scale
	}
}
