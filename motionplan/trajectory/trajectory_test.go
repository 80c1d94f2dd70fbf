package trajectory

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.viam.com/test"

	"github.com/tickbot-robotics/tickbot/spatialmath"
)

func line(t *testing.T) *Trajectory {
	t.Helper()
	traj, err := New("line", []Sample{
		{Time: 0, Pose: spatialmath.NewPose(0, 0, 0), Velocity: 0, Distance: 0},
		{Time: 1, Pose: spatialmath.NewPose(1, 0, 0), Velocity: 2, Rotation: math.Pi / 2, Distance: 1},
		{Time: 2, Pose: spatialmath.NewPose(2, 0, 0), Velocity: 0, Rotation: math.Pi / 2, Distance: 2},
	})
	test.That(t, err, test.ShouldBeNil)
	return traj
}

func TestNewValidates(t *testing.T) {
	for _, tc := range []struct {
		name    string
		samples []Sample
		err     string
	}{
		{"one sample", []Sample{{}}, "at least 2 samples"},
		{"time repeats", []Sample{{Time: 0}, {Time: 0}}, "does not follow"},
		{"distance goes back", []Sample{{Time: 0, Distance: 1}, {Time: 1}}, "is behind"},
		{"nan", []Sample{{Time: 0}, {Time: 1, Velocity: math.NaN()}}, "not finite"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.name, tc.samples)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}
}

func TestAccessors(t *testing.T) {
	traj := line(t)
	test.That(t, traj.Name(), test.ShouldEqual, "line")
	test.That(t, traj.Len(), test.ShouldEqual, 3)
	test.That(t, traj.Duration(), test.ShouldEqual, 2*time.Second)
	test.That(t, traj.TotalDistance(), test.ShouldEqual, 2.)
	test.That(t, traj.Final().Pose.X(), test.ShouldEqual, 2.)
	test.That(t, traj.At(1).RobotPose().Heading, test.ShouldEqual, math.Pi/2)

	samples := traj.Samples()
	samples[0].Velocity = 100
	test.That(t, traj.Initial().Velocity, test.ShouldEqual, 0.)
}

func TestSampleInterpolates(t *testing.T) {
	traj := line(t)
	s := traj.Sample(0.5)
	test.That(t, s.Time, test.ShouldAlmostEqual, 0.5)
	test.That(t, s.Pose.X(), test.ShouldAlmostEqual, 0.5)
	test.That(t, s.Velocity, test.ShouldAlmostEqual, 1.)
	test.That(t, s.Rotation, test.ShouldAlmostEqual, math.Pi/4)
	test.That(t, s.Distance, test.ShouldAlmostEqual, 0.5)

	test.That(t, traj.Sample(1), test.ShouldResemble, traj.At(1))
	test.That(t, traj.Sample(-1), test.ShouldResemble, traj.Initial())
	test.That(t, traj.Sample(10), test.ShouldResemble, traj.Final())

	ref := traj.Sample(1).Reference()
	test.That(t, ref.Velocity, test.ShouldEqual, 2.)
	test.That(t, ref.Rotation, test.ShouldEqual, math.Pi/2)
}

func TestMirror(t *testing.T) {
	traj := line(t)
	m := traj.Mirror(8)
	test.That(t, m.Len(), test.ShouldEqual, traj.Len())
	test.That(t, m.Final().Pose.X(), test.ShouldAlmostEqual, 14.)
	test.That(t, m.Final().Pose.Y(), test.ShouldAlmostEqual, 0.)
	test.That(t, m.Final().Pose.Heading, test.ShouldAlmostEqual, math.Pi)
	test.That(t, m.Final().Rotation, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, m.Final().Velocity, test.ShouldEqual, traj.Final().Velocity)
	test.That(t, m.TotalDistance(), test.ShouldEqual, traj.TotalDistance())
}

func TestMirrorInvolution(t *testing.T) {
	approx := cmpopts.EquateApprox(0, 1e-9)
	curved, err := Generate("curve", spatialmath.NewPose(1, 2, 0.3), []Waypoint{
		{X: 3, Y: 2.5, Rotation: 2.5},
		{X: 4, Y: 5, Rotation: -3},
		{X: 1, Y: 6, Rotation: math.Pi},
	}, testConstraints, DefaultSamplePeriod)
	test.That(t, err, test.ShouldBeNil)

	// rotations and headings outside (-pi, pi] as a hand-written file or caller might give them
	unwrapped, err := New("unwrapped", []Sample{
		{Time: 0, Pose: spatialmath.Pose{Heading: -math.Pi}, Rotation: -math.Pi},
		{Time: 1, Pose: spatialmath.Pose{Point: r2.Point{X: 1}, Heading: 7}, Rotation: 3.5, Distance: 1},
		{Time: 2, Pose: spatialmath.Pose{Point: r2.Point{X: 2}}, Rotation: -4, Distance: 2},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, unwrapped.Initial().Rotation, test.ShouldEqual, math.Pi)
	test.That(t, unwrapped.Initial().Pose.Heading, test.ShouldEqual, math.Pi)
	test.That(t, unwrapped.At(1).Rotation, test.ShouldAlmostEqual, 3.5-2*math.Pi)
	test.That(t, unwrapped.At(1).Pose.Heading, test.ShouldAlmostEqual, 7-2*math.Pi)
	test.That(t, unwrapped.Final().Rotation, test.ShouldAlmostEqual, 2*math.Pi-4)

	decoded, err := Decode([]byte(`{"samples": [
		{"t": 0, "rotation": -3.141592653589793},
		{"t": 1, "pose": {"x": 1, "y": 0, "heading": 0}, "rotation": 4, "distance": 1}
	]}`), "decoded")
	test.That(t, err, test.ShouldBeNil)

	for _, traj := range []*Trajectory{line(t), curved, unwrapped, decoded} {
		for _, midline := range []float64{0, 4.1, 8.27, -3} {
			twice := traj.Mirror(midline).Mirror(midline)
			diff := cmp.Diff(traj.Samples(), twice.Samples(), approx)
			test.That(t, diff, test.ShouldBeEmpty)
		}
	}
}

func TestDecode(t *testing.T) {
	data, err := json.Marshal(line(t))
	test.That(t, err, test.ShouldBeNil)

	traj, err := Decode(data, "fallback")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, traj.Name(), test.ShouldEqual, "line")
	test.That(t, cmp.Diff(line(t).Samples(), traj.Samples(), cmpopts.EquateApprox(0, 1e-12)), test.ShouldBeEmpty)

	traj, err = Decode([]byte(`{"samples":[{"t":0},{"t":0.5,"distance":1}]}`), "fallback")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, traj.Name(), test.ShouldEqual, "fallback")

	_, err = Decode([]byte(`{"samples":[`), "broken")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "broken")
}
