// Package fake simulates swerve drivetrain hardware with fake motors and a fake gyro.
package fake

import (
	"context"
	"time"

	"github.com/golang/geo/r2"
	"github.com/samber/lo"

	"github.com/tickbot-robotics/tickbot/components/base/swerve"
	"github.com/tickbot-robotics/tickbot/components/motor"
	fakemotor "github.com/tickbot-robotics/tickbot/components/motor/fake"
	fakegyro "github.com/tickbot-robotics/tickbot/components/movementsensor/fake"
	"github.com/tickbot-robotics/tickbot/utils"
)

// SteerRate is how fast a fake steering motor turns, in rad/s.
const SteerRate = 40.0

// Hardware is a simulated set of module motors and a gyro. The gyro turns at the rate implied by
// the measured module states.
type Hardware struct {
	Drive map[string]*fakemotor.Motor
	Steer map[string]*fakemotor.Motor
	Gyro  *fakegyro.Gyro

	names []string
	kin   *swerve.Kinematics
}

// NewHardware returns fake hardware for every module in cfg.
func NewHardware(cfg swerve.Config) (*Hardware, error) {
	if err := cfg.Validate(swerve.SubsystemName); err != nil {
		return nil, err
	}
	offsets := lo.Map(cfg.Modules, func(m swerve.ModuleConfig, _ int) r2.Point { return r2.Point{X: m.X, Y: m.Y} })
	kin, err := swerve.NewKinematics(offsets...)
	if err != nil {
		return nil, err
	}
	h := &Hardware{
		Drive: map[string]*fakemotor.Motor{},
		Steer: map[string]*fakemotor.Motor{},
		Gyro:  fakegyro.NewGyro("gyro"),
		kin:   kin,
	}
	for _, m := range cfg.Modules {
		h.names = append(h.names, m.Name)
		h.Drive[m.Name] = fakemotor.NewMotor(m.Name + "_drive")
		steer := fakemotor.NewMotor(m.Name + "_steer")
		steer.SetMaxVelocity(SteerRate)
		steer.SetTolerance(utils.DegToRad(1))
		h.Steer[m.Name] = steer
	}
	return h, nil
}

// Devices returns the hardware as drivetrain devices.
func (h *Hardware) Devices() swerve.Devices {
	return swerve.Devices{
		Drive: lo.MapValues(h.Drive, func(m *fakemotor.Motor, _ string) motor.Motor { return m }),
		Steer: lo.MapValues(h.Steer, func(m *fakemotor.Motor, _ string) motor.Motor { return m }),
		Gyro:  h.Gyro,
	}
}

// Step advances every motor and the gyro by dt.
func (h *Hardware) Step(dt time.Duration) {
	ctx := context.Background()
	states := make([]swerve.ModuleState, 0, len(h.names))
	for _, name := range h.names {
		h.Drive[name].Step(dt)
		h.Steer[name].Step(dt)
		speed, _ := h.Drive[name].Velocity(ctx)
		angle, _ := h.Steer[name].Position(ctx)
		states = append(states, swerve.ModuleState{Speed: speed, Angle: utils.WrapRad(angle)})
	}
	if speeds, err := h.kin.ToChassisSpeeds(states); err == nil {
		h.Gyro.SetRate(speeds.Omega)
	}
	h.Gyro.Step(dt)
}
