package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Twist is a displacement along a constant-curvature arc, in the frame of its starting pose.
type Twist struct {
	DX, DY, DTheta float64
}

// ChassisSpeeds is a robot-relative velocity: Vx forward, Vy left, Omega counterclockwise.
type ChassisSpeeds struct {
	Vx    float64 `json:"vx"`
	Vy    float64 `json:"vy"`
	Omega float64 `json:"omega"`
}

func (c ChassisSpeeds) String() string {
	return fmt.Sprintf("(vx %.3f, vy %.3f, omega %.3f)", c.Vx, c.Vy, c.Omega)
}

// FromFieldRelative converts a field-relative velocity to robot-relative speeds for a robot at
// the given heading.
func FromFieldRelative(vx, vy, omega, heading float64) ChassisSpeeds {
	v := Rotate(r2.Point{X: vx, Y: vy}, -heading)
	return ChassisSpeeds{Vx: v.X, Vy: v.Y, Omega: omega}
}

// FieldRelative returns the translational velocity in the field frame for a robot at heading.
func (c ChassisSpeeds) FieldRelative(heading float64) r2.Point {
	return Rotate(r2.Point{X: c.Vx, Y: c.Vy}, heading)
}

// Scale multiplies every component by k.
func (c ChassisSpeeds) Scale(k float64) ChassisSpeeds {
	return ChassisSpeeds{Vx: c.Vx * k, Vy: c.Vy * k, Omega: c.Omega * k}
}

// Add returns the component-wise sum.
func (c ChassisSpeeds) Add(o ChassisSpeeds) ChassisSpeeds {
	return ChassisSpeeds{Vx: c.Vx + o.Vx, Vy: c.Vy + o.Vy, Omega: c.Omega + o.Omega}
}

// IsZero reports whether every component is zero.
func (c ChassisSpeeds) IsZero() bool {
	return c == ChassisSpeeds{}
}

// Speed is the translational speed.
func (c ChassisSpeeds) Speed() float64 {
	return math.Hypot(c.Vx, c.Vy)
}

// Twist returns the displacement from holding c for dt seconds.
func (c ChassisSpeeds) Twist(dt float64) Twist {
	return Twist{DX: c.Vx * dt, DY: c.Vy * dt, DTheta: c.Omega * dt}
}

// Discretize corrects speeds that will be held for dt so that the robot ends where a continuous
// controller would have put it, compensating for translating while rotating.
func (c ChassisSpeeds) Discretize(dt float64) ChassisSpeeds {
	if dt <= 0 {
		return c
	}
	desired := Pose{Point: r2.Point{X: c.Vx * dt, Y: c.Vy * dt}, Heading: c.Omega * dt}
	tw := NewZeroPose().Log(desired)
	return ChassisSpeeds{Vx: tw.DX / dt, Vy: tw.DY / dt, Omega: tw.DTheta / dt}
}
