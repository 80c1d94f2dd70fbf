package main

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/multierr"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/components/base/swerve"
	fakeswerve "github.com/tickbot-robotics/tickbot/components/base/swerve/fake"
	"github.com/tickbot-robotics/tickbot/components/intake"
	fakemotor "github.com/tickbot-robotics/tickbot/components/motor/fake"
	"github.com/tickbot-robotics/tickbot/config"
	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/robot"
	"github.com/tickbot-robotics/tickbot/spatialmath"
	"github.com/tickbot-robotics/tickbot/utils"
)

// pivotSpeed is the simulated arm joint speed in rad/s.
const pivotSpeed = 3.0

type gpioOptions struct {
	chip      string
	line      int
	activeLow bool
}

type simOptions struct {
	mirror    bool
	pace      bool
	feedDelay int
	preload   bool
	gpio      *gpioOptions
}

// feeder is a piece sensor that reports a piece once the intake has been grabbing for delay ticks.
type feeder struct {
	in     *intake.Intake
	delay  int
	waited int
}

func (f *feeder) Fired() bool {
	if f.in == nil || f.delay < 0 {
		return false
	}
	current := f.in.CurrentAction()
	if current == nil || current.Name() != "grab" {
		f.waited = 0
		return false
	}
	f.waited++
	return f.waited > f.delay
}

type simulation struct {
	r         *robot.Robot
	drive     *fakeswerve.Hardware
	pivot     *fakemotor.Motor
	roller    *fakemotor.Motor
	clk       *clock.Mock
	pace      bool
	closeGPIO func() error
	logger    logging.Logger
}

func newSimulation(ctx context.Context, p config.Provider, opts simOptions, logger logging.Logger) (*simulation, error) {
	driveCfg, err := swerve.ConfigFromProvider(p, robot.DrivePath)
	if err != nil {
		return nil, err
	}
	drive, err := fakeswerve.NewHardware(driveCfg)
	if err != nil {
		return nil, err
	}
	s := &simulation{
		drive:  drive,
		pivot:  fakemotor.NewMotor("pivot"),
		roller: fakemotor.NewMotor("roller"),
		clk:    clock.NewMock(),
		pace:   opts.pace,
		logger: logger,
	}
	s.pivot.SetMaxVelocity(pivotSpeed)
	s.clk.Set(time.Now())

	hw := robot.Hardware{Drive: drive.Devices(), ArmMotor: s.pivot, Roller: s.roller}
	robotOpts := []robot.Option{robot.WithClock(s.clk), robot.WithMirror(opts.mirror)}
	var feed *feeder
	if opts.gpio != nil {
		input, closeInput, err := openBeamBreak(*opts.gpio)
		if err != nil {
			return nil, err
		}
		hw.BeamBreak = input
		s.closeGPIO = closeInput
	} else {
		feed = &feeder{delay: opts.feedDelay}
		robotOpts = append(robotOpts, robot.WithPieceSensor(feed))
	}

	s.r, err = robot.New(ctx, p, hw, logger, robotOpts...)
	if err != nil {
		if s.closeGPIO != nil {
			err = multierr.Combine(err, s.closeGPIO())
		}
		return nil, err
	}
	in := s.r.Superstructure().Intake()
	if feed != nil {
		feed.in = in
	}
	if opts.preload {
		in.SetHasPiece(true)
	}
	return s, nil
}

// step runs one tick and advances the simulated hardware by one period.
func (s *simulation) step(ctx context.Context) {
	period := s.r.Period()
	s.r.Tick(ctx)
	s.drive.Step(period)
	s.pivot.Step(period)
	s.roller.Step(period)
	s.clk.Add(period)
}

type result struct {
	routine  string
	state    string
	ticks    int64
	elapsed  time.Duration
	pose     spatialmath.Pose
	arrivals int
	holding  bool
}

// run schedules a routine and ticks until it finishes or limit of simulated time passes, in which
// case it is canceled.
func (s *simulation) run(ctx context.Context, name string, limit time.Duration) (result, error) {
	a, err := s.r.Schedule(ctx, name)
	if err != nil {
		return result{}, err
	}
	var pacer *time.Ticker
	if s.pace {
		pacer = time.NewTicker(s.r.Period())
		defer pacer.Stop()
	}

	start := s.r.Ticks()
	began := s.clk.Now()
	for !a.IsDone() && s.clk.Now().Sub(began) < limit {
		if pacer != nil {
			select {
			case <-ctx.Done():
				return result{}, ctx.Err()
			case <-pacer.C:
			}
		}
		s.step(ctx)
	}

	state := "timed out"
	if a.IsDone() {
		state = action.Done.String()
		if st, ok := a.(interface{ State() action.State }); ok {
			state = st.State().String()
		}
	} else {
		s.r.Root().CancelAction(ctx)
		s.logger.Warnw("routine did not finish", "routine", name, "limit", limit)
	}
	in := s.r.Superstructure().Intake()
	return result{
		routine:  name,
		state:    state,
		ticks:    s.r.Ticks() - start,
		elapsed:  s.clk.Now().Sub(began),
		pose:     s.r.Drive().Pose(),
		arrivals: in.Arrivals(),
		holding:  in.HasPiece(),
	}, nil
}

func (s *simulation) close(ctx context.Context) error {
	err := s.r.Close(ctx)
	if s.closeGPIO != nil {
		err = multierr.Combine(err, s.closeGPIO())
	}
	return err
}

func report(results []result) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Routine", "Result", "Ticks", "Sim time", "Pose", "Pieces", "Holding"})
	for i, res := range results {
		t.AppendRow(table.Row{
			fmt.Sprintf("%d", i+1),
			res.routine,
			res.state,
			res.ticks,
			res.elapsed.Round(time.Millisecond).String(),
			fmt.Sprintf("X:%.2f, Y:%.2f, Heading:%.1f", res.pose.X(), res.pose.Y(), utils.RadToDeg(res.pose.Heading)),
			res.arrivals,
			res.holding,
		})
	}
	return t.Render()
}
