package swerve

import (
	"github.com/pkg/errors"

	"github.com/tickbot-robotics/tickbot/spatialmath"
	"github.com/tickbot-robotics/tickbot/utils"
)

// Odometry tracks the robot pose from module distances, taking heading from the gyro.
type Odometry struct {
	kin        *Kinematics
	pose       spatialmath.Pose
	gyroOffset float64
	prev       []ModulePosition
}

// NewOdometry starts tracking at initial.
func NewOdometry(kin *Kinematics, gyroHeading float64, positions []ModulePosition, initial spatialmath.Pose) (*Odometry, error) {
	o := &Odometry{kin: kin}
	if err := o.Reset(initial, gyroHeading, positions); err != nil {
		return nil, err
	}
	return o, nil
}

// Reset declares the robot to be at pose given the current sensor readings.
func (o *Odometry) Reset(pose spatialmath.Pose, gyroHeading float64, positions []ModulePosition) error {
	if len(positions) != o.kin.NumModules() {
		return errors.Errorf("expected %d module positions, got %d", o.kin.NumModules(), len(positions))
	}
	o.pose = pose
	o.gyroOffset = pose.Heading - gyroHeading
	o.prev = append([]ModulePosition(nil), positions...)
	return nil
}

// Update integrates the motion since the previous update and returns the new pose.
func (o *Odometry) Update(gyroHeading float64, positions []ModulePosition) (spatialmath.Pose, error) {
	if len(positions) != len(o.prev) {
		return o.pose, errors.Errorf("expected %d module positions, got %d", len(o.prev), len(positions))
	}
	deltas := make([]ModulePosition, len(positions))
	for i, p := range positions {
		deltas[i] = ModulePosition{Distance: p.Distance - o.prev[i].Distance, Angle: p.Angle}
	}
	twist, err := o.kin.ToTwist(deltas)
	if err != nil {
		return o.pose, err
	}
	heading := utils.WrapRad(gyroHeading + o.gyroOffset)
	twist.DTheta = utils.AngleDiffRad(o.pose.Heading, heading)

	next := o.pose.Exp(twist)
	next.Heading = heading
	o.pose = next
	o.prev = append(o.prev[:0], positions...)
	return o.pose, nil
}

// Pose returns the tracked pose.
func (o *Odometry) Pose() spatialmath.Pose {
	return o.pose
}
