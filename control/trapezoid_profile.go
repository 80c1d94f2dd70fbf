package control

import (
	"math"

	"github.com/pkg/errors"
)

// Constraints bound a motion profile.
type Constraints struct {
	MaxVelocity     float64 `json:"max_velocity"`
	MaxAcceleration float64 `json:"max_acceleration"`
}

// Validate checks that both limits are positive and finite.
func (c Constraints) Validate(path string) error {
	if !(c.MaxVelocity > 0) || math.IsInf(c.MaxVelocity, 0) {
		return errors.Errorf("constraints %s need a positive max_velocity, got %v", path, c.MaxVelocity)
	}
	if !(c.MaxAcceleration > 0) || math.IsInf(c.MaxAcceleration, 0) {
		return errors.Errorf("constraints %s need a positive max_acceleration, got %v", path, c.MaxAcceleration)
	}
	return nil
}

// State is a position and velocity along one axis.
type State struct {
	Position float64
	Velocity float64
}

// TrapezoidProfile moves between two states accelerating and decelerating at the limit, cruising at
// the maximum velocity when there is room to reach it.
type TrapezoidProfile struct {
	c Constraints
}

// NewTrapezoidProfile returns a profile for c.
func NewTrapezoidProfile(c Constraints) (*TrapezoidProfile, error) {
	if err := c.Validate("profile"); err != nil {
		return nil, err
	}
	return &TrapezoidProfile{c: c}, nil
}

// Constraints returns the profile's limits.
func (p *TrapezoidProfile) Constraints() Constraints {
	return p.c
}

type trapezoidPlan struct {
	direction    float64
	current      State
	goal         State
	endAccel     float64
	endFullSpeed float64
	endDecel     float64
}

func (p *TrapezoidProfile) plan(current, goal State) trapezoidPlan {
	direction := 1.0
	if current.Position > goal.Position {
		direction = -1
	}
	current = State{current.Position * direction, current.Velocity * direction}
	goal = State{goal.Position * direction, goal.Velocity * direction}
	if current.Velocity > p.c.MaxVelocity {
		current.Velocity = p.c.MaxVelocity
	}

	maxA := p.c.MaxAcceleration
	cutoffBegin := current.Velocity / maxA
	cutoffDistBegin := cutoffBegin * cutoffBegin * maxA / 2
	cutoffEnd := goal.Velocity / maxA
	cutoffDistEnd := cutoffEnd * cutoffEnd * maxA / 2

	fullTrapezoidDist := cutoffDistBegin + (goal.Position - current.Position) + cutoffDistEnd
	accelerationTime := p.c.MaxVelocity / maxA
	fullSpeedDist := fullTrapezoidDist - accelerationTime*accelerationTime*maxA
	if fullSpeedDist < 0 {
		accelerationTime = math.Sqrt(fullTrapezoidDist / maxA)
		fullSpeedDist = 0
	}

	pl := trapezoidPlan{direction: direction, current: current, goal: goal}
	pl.endAccel = accelerationTime - cutoffBegin
	pl.endFullSpeed = pl.endAccel + fullSpeedDist/p.c.MaxVelocity
	pl.endDecel = pl.endFullSpeed + accelerationTime - cutoffEnd
	return pl
}

// Calculate returns the state t seconds after current on the way to goal.
func (p *TrapezoidProfile) Calculate(t float64, current, goal State) State {
	pl := p.plan(current, goal)
	maxA := p.c.MaxAcceleration
	maxV := p.c.MaxVelocity
	cur := pl.current
	result := cur

	switch {
	case t < pl.endAccel:
		result.Velocity += t * maxA
		result.Position += (cur.Velocity + t*maxA/2) * t
	case t < pl.endFullSpeed:
		result.Velocity = maxV
		result.Position += (cur.Velocity+pl.endAccel*maxA/2)*pl.endAccel + maxV*(t-pl.endAccel)
	case t <= pl.endDecel:
		timeLeft := pl.endDecel - t
		result.Velocity = pl.goal.Velocity + timeLeft*maxA
		result.Position = pl.goal.Position - (pl.goal.Velocity+timeLeft*maxA/2)*timeLeft
	default:
		result = pl.goal
	}
	return State{result.Position * pl.direction, result.Velocity * pl.direction}
}

// TotalTime returns how long the profile from current to goal takes.
func (p *TrapezoidProfile) TotalTime(current, goal State) float64 {
	return p.plan(current, goal).endDecel
}
