// Package movementsensor defines the heading sensor facade used by odometry.
package movementsensor

import "context"

// A Gyro reports the robot's yaw.
type Gyro interface {
	Name() string

	// Heading returns the counter-clockwise positive yaw in radians, unwrapped.
	Heading(ctx context.Context) (float64, error)

	// AngularVelocity returns the yaw rate in radians per second.
	AngularVelocity(ctx context.Context) (float64, error)
}
