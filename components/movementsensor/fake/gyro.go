// Package fake implements a fake gyro integrated from a commanded rate.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/tickbot-robotics/tickbot/components/movementsensor"
)

var _ movementsensor.Gyro = &Gyro{}

// Gyro integrates Rate on each Step.
type Gyro struct {
	name string

	mu      sync.Mutex
	heading float64
	rate    float64
	failErr error
}

// NewGyro returns a gyro at zero heading.
func NewGyro(name string) *Gyro {
	return &Gyro{name: name}
}

// Name returns the gyro's name.
func (g *Gyro) Name() string {
	return g.name
}

// Heading returns the integrated heading.
func (g *Gyro) Heading(ctx context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failErr != nil {
		return 0, g.failErr
	}
	return g.heading, nil
}

// AngularVelocity returns the current rate.
func (g *Gyro) AngularVelocity(ctx context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failErr != nil {
		return 0, g.failErr
	}
	return g.rate, nil
}

// SetRate sets the yaw rate used by Step.
func (g *Gyro) SetRate(rate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rate = rate
}

// SetHeading teleports the gyro.
func (g *Gyro) SetHeading(heading float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.heading = heading
}

// Fail makes reads return err until called with nil.
func (g *Gyro) Fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failErr = err
}

// Step advances the heading by rate*dt.
func (g *Gyro) Step(dt time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.heading += g.rate * dt.Seconds()
}
