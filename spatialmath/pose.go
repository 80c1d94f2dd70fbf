// Package spatialmath holds the planar geometry used by the drivetrain and path follower.
// Distances are meters, angles radians, headings counterclockwise from the field +X axis.
package spatialmath

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"github.com/tickbot-robotics/tickbot/utils"
)

// smallAngle is where Exp and Log switch to their series expansions.
const smallAngle = 1e-9

// Pose is a position on the field plus a heading.
type Pose struct {
	Point   r2.Point
	Heading float64
}

// NewPose returns a pose with its heading wrapped into (-pi, pi].
func NewPose(x, y, heading float64) Pose {
	return Pose{Point: r2.Point{X: x, Y: y}, Heading: utils.WrapRad(heading)}
}

// NewZeroPose returns the origin facing +X.
func NewZeroPose() Pose {
	return Pose{}
}

// X returns the x coordinate.
func (p Pose) X() float64 { return p.Point.X }

// Y returns the y coordinate.
func (p Pose) Y() float64 { return p.Point.Y }

func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.1f°)", p.Point.X, p.Point.Y, utils.RadToDeg(p.Heading))
}

// Rotate rotates a vector counterclockwise by theta.
func Rotate(v r2.Point, theta float64) r2.Point {
	s, c := math.Sincos(theta)
	return r2.Point{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c}
}

// Compose applies other in p's frame: the result is other expressed in the frame p is expressed in.
func (p Pose) Compose(other Pose) Pose {
	return Pose{
		Point:   p.Point.Add(Rotate(other.Point, p.Heading)),
		Heading: utils.WrapRad(p.Heading + other.Heading),
	}
}

// RelativeTo expresses p in the frame of origin.
func (p Pose) RelativeTo(origin Pose) Pose {
	return Pose{
		Point:   Rotate(p.Point.Sub(origin.Point), -origin.Heading),
		Heading: utils.AngleDiffRad(origin.Heading, p.Heading),
	}
}

// Distance returns the straight line distance between the positions of p and q.
func (p Pose) Distance(q Pose) float64 {
	return p.Point.Sub(q.Point).Norm()
}

// Interpolate returns the pose a fraction t of the way from p to q along the shortest turn.
func (p Pose) Interpolate(q Pose, t float64) Pose {
	t = utils.Clamp(t, 0, 1)
	return Pose{
		Point:   p.Point.Add(q.Point.Sub(p.Point).Mul(t)),
		Heading: utils.WrapRad(p.Heading + utils.AngleDiffRad(p.Heading, q.Heading)*t),
	}
}

// AlmostEqual compares positions within linTol and headings within angTol.
func (p Pose) AlmostEqual(q Pose, linTol, angTol float64) bool {
	return p.Distance(q) <= linTol && math.Abs(utils.AngleDiffRad(p.Heading, q.Heading)) <= angTol
}

// Exp integrates a constant-curvature twist given in p's frame and returns the resulting pose.
func (p Pose) Exp(t Twist) Pose {
	sinTheta, cosTheta := math.Sincos(t.DTheta)
	var s, c float64
	if math.Abs(t.DTheta) < smallAngle {
		s = 1 - t.DTheta*t.DTheta/6
		c = t.DTheta / 2
	} else {
		s = sinTheta / t.DTheta
		c = (1 - cosTheta) / t.DTheta
	}
	delta := Pose{
		Point:   r2.Point{X: t.DX*s - t.DY*c, Y: t.DX*c + t.DY*s},
		Heading: t.DTheta,
	}
	return p.Compose(delta)
}

// Log returns the twist that takes p to end along a constant-curvature arc. It inverts Exp.
func (p Pose) Log(end Pose) Twist {
	rel := end.RelativeTo(p)
	dTheta := rel.Heading
	halfDTheta := dTheta / 2
	cosMinusOne := math.Cos(dTheta) - 1

	var halfThetaByTan float64
	if math.Abs(cosMinusOne) < smallAngle {
		halfThetaByTan = 1 - dTheta*dTheta/12
	} else {
		halfThetaByTan = -(halfDTheta * math.Sin(dTheta)) / cosMinusOne
	}
	tr := Rotate(rel.Point, math.Atan2(-halfDTheta, halfThetaByTan)).Mul(math.Hypot(halfThetaByTan, halfDTheta))
	return Twist{DX: tr.X, DY: tr.Y, DTheta: dTheta}
}

type poseJSON struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// MarshalJSON encodes the pose as {"x","y","heading"} with heading in radians.
func (p Pose) MarshalJSON() ([]byte, error) {
	return json.Marshal(poseJSON{X: p.Point.X, Y: p.Point.Y, Heading: p.Heading})
}

// UnmarshalJSON decodes {"x","y","heading"}.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var raw poseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NewPose(raw.X, raw.Y, raw.Heading)
	return nil
}
