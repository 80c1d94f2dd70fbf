// Package trajectory holds time-parameterized paths for a holonomic drivetrain, either loaded
// pre-baked from a library or generated from waypoints.
package trajectory

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/tickbot-robotics/tickbot/control"
	"github.com/tickbot-robotics/tickbot/spatialmath"
	"github.com/tickbot-robotics/tickbot/utils"
)

// MinSamples is the fewest samples a trajectory may have.
const MinSamples = 2

// Sample is the reference state at one instant of a trajectory.
type Sample struct {
	// Time since the start of the trajectory, in seconds.
	Time float64 `json:"t"`
	// Pose is the position; its heading is the direction of travel.
	Pose spatialmath.Pose `json:"pose"`
	// Velocity is the speed along the direction of travel.
	Velocity     float64 `json:"velocity"`
	Acceleration float64 `json:"acceleration"`
	// Rotation is the heading the robot should face.
	Rotation        float64 `json:"rotation"`
	AngularVelocity float64 `json:"angular_velocity"`
	// Distance is the arc length travelled since the first sample.
	Distance float64 `json:"distance"`
}

// Reference converts the sample into a controller reference.
func (s Sample) Reference() control.Reference {
	return control.Reference{
		Pose:            s.Pose,
		Velocity:        s.Velocity,
		Rotation:        s.Rotation,
		AngularVelocity: s.AngularVelocity,
	}
}

// RobotPose returns where the robot should be: the sample's position facing Rotation.
func (s Sample) RobotPose() spatialmath.Pose {
	return spatialmath.Pose{Point: s.Pose.Point, Heading: s.Rotation}
}

func (s Sample) finite() bool {
	for _, v := range []float64{
		s.Time, s.Pose.Point.X, s.Pose.Point.Y, s.Pose.Heading,
		s.Velocity, s.Acceleration, s.Rotation, s.AngularVelocity, s.Distance,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// interpolate returns the sample a fraction t of the way from s to next.
func (s Sample) interpolate(next Sample, t float64) Sample {
	lerp := func(a, b float64) float64 { return a + (b-a)*t }
	return Sample{
		Time:            lerp(s.Time, next.Time),
		Pose:            s.Pose.Interpolate(next.Pose, t),
		Velocity:        lerp(s.Velocity, next.Velocity),
		Acceleration:    lerp(s.Acceleration, next.Acceleration),
		Rotation:        utils.WrapRad(s.Rotation + utils.AngleDiffRad(s.Rotation, next.Rotation)*t),
		AngularVelocity: lerp(s.AngularVelocity, next.AngularVelocity),
		Distance:        lerp(s.Distance, next.Distance),
	}
}

// mirror reflects the sample about the vertical line x = midline.
func (s Sample) mirror(midline float64) Sample {
	m := s
	m.Pose = spatialmath.NewPose(2*midline-s.Pose.Point.X, s.Pose.Point.Y, math.Pi-s.Pose.Heading)
	m.Rotation = utils.WrapRad(math.Pi - s.Rotation)
	m.AngularVelocity = -s.AngularVelocity
	return m
}

// A Trajectory is an immutable ordered sequence of samples.
type Trajectory struct {
	name    string
	samples []Sample
}

// New validates samples and returns a trajectory owning a copy of them. Times must be strictly
// increasing and distances non-decreasing. Headings and rotations are wrapped into (-pi, pi].
func New(name string, samples []Sample) (*Trajectory, error) {
	if len(samples) < MinSamples {
		return nil, errors.Errorf("trajectory %q needs at least %d samples, got %d", name, MinSamples, len(samples))
	}
	for i, s := range samples {
		if !s.finite() {
			return nil, errors.Errorf("trajectory %q sample %d is not finite", name, i)
		}
		if i == 0 {
			continue
		}
		prev := samples[i-1]
		if s.Time <= prev.Time {
			return nil, errors.Errorf("trajectory %q sample %d time %v does not follow %v", name, i, s.Time, prev.Time)
		}
		if s.Distance < prev.Distance {
			return nil, errors.Errorf("trajectory %q sample %d distance %v is behind %v", name, i, s.Distance, prev.Distance)
		}
	}
	owned := make([]Sample, len(samples))
	for i, s := range samples {
		s.Pose.Heading = utils.WrapRad(s.Pose.Heading)
		s.Rotation = utils.WrapRad(s.Rotation)
		owned[i] = s
	}
	return &Trajectory{name: name, samples: owned}, nil
}

// Name returns the trajectory's name.
func (t *Trajectory) Name() string {
	return t.name
}

// Len returns the number of samples.
func (t *Trajectory) Len() int {
	return len(t.samples)
}

// At returns sample i.
func (t *Trajectory) At(i int) Sample {
	return t.samples[i]
}

// Samples returns a copy of all samples.
func (t *Trajectory) Samples() []Sample {
	return append([]Sample(nil), t.samples...)
}

// Initial returns the first sample.
func (t *Trajectory) Initial() Sample {
	return t.samples[0]
}

// Final returns the last sample.
func (t *Trajectory) Final() Sample {
	return t.samples[len(t.samples)-1]
}

// Duration is the time of the last sample relative to the first.
func (t *Trajectory) Duration() time.Duration {
	secs := t.Final().Time - t.Initial().Time
	return time.Duration(secs * float64(time.Second))
}

// TotalDistance is the arc length of the path.
func (t *Trajectory) TotalDistance() float64 {
	return t.Final().Distance - t.Initial().Distance
}

// Sample returns the reference at elapsed seconds since the start, interpolating between
// neighboring samples. Times outside the trajectory clamp to its ends.
func (t *Trajectory) Sample(elapsed float64) Sample {
	at := t.Initial().Time + elapsed
	if at <= t.Initial().Time {
		return t.Initial()
	}
	if at >= t.Final().Time {
		return t.Final()
	}
	i := sort.Search(len(t.samples), func(i int) bool { return t.samples[i].Time >= at })
	prev, next := t.samples[i-1], t.samples[i]
	return prev.interpolate(next, (at-prev.Time)/(next.Time-prev.Time))
}

// Mirror returns the trajectory reflected about x = midline, for running on the other alliance's
// half of the field. Mirroring twice gives back the original.
func (t *Trajectory) Mirror(midline float64) *Trajectory {
	out := make([]Sample, len(t.samples))
	for i, s := range t.samples {
		out[i] = s.mirror(midline)
	}
	return &Trajectory{name: t.name, samples: out}
}

type trajectoryJSON struct {
	Name    string   `json:"name"`
	Samples []Sample `json:"samples"`
}

// MarshalJSON encodes the trajectory in the library file format.
func (t *Trajectory) MarshalJSON() ([]byte, error) {
	return json.Marshal(trajectoryJSON{Name: t.name, Samples: t.samples})
}

// Decode parses and validates a trajectory in the library file format. fallbackName is used when
// the document has no name.
func Decode(data []byte, fallbackName string) (*Trajectory, error) {
	var raw trajectoryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "decoding trajectory %q", fallbackName)
	}
	if raw.Name == "" {
		raw.Name = fallbackName
	}
	return New(raw.Name, raw.Samples)
}
