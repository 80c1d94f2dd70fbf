package trajectory

import (
	"math"
	"sort"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"

	"github.com/tickbot-robotics/tickbot/control"
	"github.com/tickbot-robotics/tickbot/spatialmath"
	"github.com/tickbot-robotics/tickbot/utils"
)

// DefaultSamplePeriod matches the control loop period.
const DefaultSamplePeriod = 20 * time.Millisecond

const (
	minSegmentLength = 1e-6
	minTurn          = 1e-6
)

// Waypoint is a target position and the heading the robot should face on arrival.
type Waypoint struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// Point returns the waypoint position.
func (w Waypoint) Point() r2.Point {
	return r2.Point{X: w.X, Y: w.Y}
}

// Generate builds a trajectory along the straight segments from start through each waypoint. The
// speed along the whole path follows one trapezoid profile from rest to rest, and the facing
// heading blends between waypoint rotations in proportion to distance. start.Heading is the
// robot's current facing heading. Samples are dt apart plus a final sample at the end.
func Generate(
	name string,
	start spatialmath.Pose,
	waypoints []Waypoint,
	constraints control.Constraints,
	dt time.Duration,
) (*Trajectory, error) {
	if len(waypoints) == 0 {
		return nil, errors.Errorf("trajectory %q needs at least one waypoint", name)
	}
	if dt <= 0 {
		return nil, errors.Errorf("trajectory %q sample period must be positive, got %v", name, dt)
	}
	profile, err := control.NewTrapezoidProfile(constraints)
	if err != nil {
		return nil, errors.Wrapf(err, "trajectory %q", name)
	}

	points := []r2.Point{start.Point}
	rotations := []float64{start.Heading}
	for _, w := range waypoints {
		if math.IsNaN(w.X) || math.IsNaN(w.Y) || math.IsNaN(w.Rotation) {
			return nil, errors.Errorf("trajectory %q has a NaN waypoint", name)
		}
		if w.Point().Sub(points[len(points)-1]).Norm() < minSegmentLength {
			// same spot, only the facing heading changes
			rotations[len(rotations)-1] = w.Rotation
			continue
		}
		points = append(points, w.Point())
		rotations = append(rotations, w.Rotation)
	}
	if len(points) < 2 {
		return nil, errors.Errorf("trajectory %q has zero length; a turn in place is built by GenerateTurn", name)
	}

	lengths := make([]float64, len(points)-1)
	for i := range lengths {
		lengths[i] = points[i+1].Sub(points[i]).Norm()
	}
	cumulative := make([]float64, len(lengths))
	floats.CumSum(cumulative, lengths)
	total := cumulative[len(cumulative)-1]

	goal := control.State{Position: total}
	times := sampleTimes(profile.TotalTime(control.State{}, goal), dt)
	samples := make([]Sample, len(times))
	for i, t := range times {
		state := profile.Calculate(t, control.State{}, goal)
		if i == len(times)-1 {
			state = goal
		}
		samples[i] = sampleAt(t, state, points, rotations, lengths, cumulative)
	}
	for i := 0; i < len(samples)-1; i++ {
		samples[i].Acceleration = (samples[i+1].Velocity - samples[i].Velocity) / (samples[i+1].Time - samples[i].Time)
	}
	return New(name, samples)
}

// InPlace reports whether every waypoint is at start's position, so the only motion through them
// is a change of facing heading.
func InPlace(start spatialmath.Pose, waypoints []Waypoint) bool {
	return lo.EveryBy(waypoints, func(w Waypoint) bool {
		return w.Point().Sub(start.Point).Norm() < minSegmentLength
	})
}

// GenerateTurn builds a trajectory that holds start's position while the facing heading turns the
// shorter way from start.Heading to rotation. The angle follows one trapezoid profile under
// constraints, in rad/s and rad/s². It fails when there is nothing to turn.
func GenerateTurn(
	name string,
	start spatialmath.Pose,
	rotation float64,
	constraints control.Constraints,
	dt time.Duration,
) (*Trajectory, error) {
	if dt <= 0 {
		return nil, errors.Errorf("trajectory %q sample period must be positive, got %v", name, dt)
	}
	if math.IsNaN(rotation) {
		return nil, errors.Errorf("trajectory %q has a NaN rotation", name)
	}
	turn := utils.AngleDiffRad(start.Heading, rotation)
	if math.Abs(turn) < minTurn {
		return nil, errors.Errorf("trajectory %q has zero length and no turn", name)
	}
	profile, err := control.NewTrapezoidProfile(constraints)
	if err != nil {
		return nil, errors.Wrapf(err, "trajectory %q", name)
	}

	sign := math.Copysign(1, turn)
	goal := control.State{Position: math.Abs(turn)}
	times := sampleTimes(profile.TotalTime(control.State{}, goal), dt)
	samples := make([]Sample, len(times))
	for i, t := range times {
		state := profile.Calculate(t, control.State{}, goal)
		if i == len(times)-1 {
			state = goal
		}
		samples[i] = Sample{
			Time:            t,
			Pose:            spatialmath.Pose{Point: start.Point, Heading: start.Heading},
			Rotation:        utils.WrapRad(start.Heading + sign*state.Position),
			AngularVelocity: sign * state.Velocity,
		}
	}
	return New(name, samples)
}

// sampleTimes returns 0, dt, 2dt, ... up to and including total.
func sampleTimes(total float64, dt time.Duration) []float64 {
	step := dt.Seconds()
	var times []float64
	for k := 0; float64(k)*step < total-1e-9; k++ {
		times = append(times, float64(k)*step)
	}
	return append(times, total)
}

func sampleAt(t float64, state control.State, points []r2.Point, rotations, lengths, cumulative []float64) Sample {
	s := utils.Clamp(state.Position, 0, cumulative[len(cumulative)-1])
	seg := sort.SearchFloat64s(cumulative, s)
	if seg >= len(lengths) {
		seg = len(lengths) - 1
	}
	segStart := cumulative[seg] - lengths[seg]
	frac := (s - segStart) / lengths[seg]

	dir := points[seg+1].Sub(points[seg])
	travel := math.Atan2(dir.Y, dir.X)
	turn := utils.AngleDiffRad(rotations[seg], rotations[seg+1])

	return Sample{
		Time:            t,
		Pose:            spatialmath.Pose{Point: points[seg].Add(dir.Mul(frac)), Heading: travel},
		Velocity:        state.Velocity,
		Rotation:        utils.WrapRad(rotations[seg] + turn*frac),
		AngularVelocity: turn / lengths[seg] * state.Velocity,
		Distance:        s,
	}
}
