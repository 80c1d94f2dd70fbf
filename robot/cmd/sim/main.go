// Package main runs routines against simulated hardware and prints a report.
package main

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/tickbot-robotics/tickbot/config"
	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/robot"
)

const (
	// Flags.
	flagConfig         = "config"
	flagRoutine        = "routine"
	flagDuration       = "duration"
	flagMirror         = "mirror"
	flagWatch          = "watch"
	flagPace           = "pace"
	flagFeedDelay      = "feed-delay"
	flagPreload        = "preload"
	flagDebug          = "debug"
	flagGPIOChip       = "gpio-chip"
	flagGPIOLine       = "gpio-line"
	flagGPIOActiveLow  = "gpio-active-low"
	flagListRoutines   = "list"
	defaultRoutineName = robot.RoutineAuto
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "sim",
		Usage:     "run robot routines against simulated hardware",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagConfig,
				Aliases:  []string{"c"},
				Usage:    "load robot configuration from `FILE`",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    flagRoutine,
				Aliases: []string{"r"},
				Usage:   "routine to run; repeat to run several in order",
				Value:   cli.NewStringSlice(defaultRoutineName),
			},
			&cli.DurationFlag{
				Name:  flagDuration,
				Usage: "simulated time limit per routine",
				Value: 15 * time.Second,
			},
			&cli.BoolFlag{
				Name:  flagMirror,
				Usage: "mirror every path about the field midline",
			},
			&cli.BoolFlag{
				Name:  flagWatch,
				Usage: "re-read the configuration file when it changes; each routine is built from the latest version",
			},
			&cli.BoolFlag{
				Name:  flagPace,
				Usage: "run ticks in real time instead of as fast as possible",
			},
			&cli.IntFlag{
				Name:  flagFeedDelay,
				Usage: "ticks a simulated piece takes to reach the beam break once the intake runs; negative never feeds",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  flagPreload,
				Usage: "start holding a piece",
			},
			&cli.StringFlag{
				Name:  flagGPIOChip,
				Usage: "read the beam break from a real GPIO `CHIP` (Linux only); implies --pace",
			},
			&cli.IntFlag{
				Name:  flagGPIOLine,
				Usage: "GPIO line offset of the beam break",
			},
			&cli.BoolFlag{
				Name:  flagGPIOActiveLow,
				Usage: "treat the beam break line as active low",
			},
			&cli.BoolFlag{
				Name:  flagListRoutines,
				Usage: "list the available routines and exit",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	logger := logging.NewLogger("sim")
	if c.Bool(flagDebug) {
		logger = logging.NewDebugLogger("sim")
	}

	var provider config.Provider
	if c.Bool(flagWatch) {
		watcher, err := config.NewWatcher(c.String(flagConfig), logger.Sublogger("config"), nil)
		if err != nil {
			return err
		}
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnw("closing config watcher", "error", err)
			}
		}()
		provider = watcher
	} else {
		attrs, err := config.Read(c.String(flagConfig))
		if err != nil {
			return err
		}
		provider = attrs
	}

	opts := simOptions{
		mirror:    c.Bool(flagMirror),
		pace:      c.Bool(flagPace),
		feedDelay: c.Int(flagFeedDelay),
		preload:   c.Bool(flagPreload),
	}
	if chip := c.String(flagGPIOChip); chip != "" {
		opts.gpio = &gpioOptions{chip: chip, line: c.Int(flagGPIOLine), activeLow: c.Bool(flagGPIOActiveLow)}
		opts.pace = true
	}

	s, err := newSimulation(c.Context, provider, opts, logger)
	if err != nil {
		return errors.Wrap(err, "cannot build simulated robot")
	}
	defer func() {
		if err := s.close(c.Context); err != nil {
			logger.Warnw("closing simulation", "error", err)
		}
	}()

	if c.Bool(flagListRoutines) {
		for _, name := range s.r.Routines() {
			if _, err := io.WriteString(c.App.Writer, name+"\n"); err != nil {
				return err
			}
		}
		return nil
	}

	var results []result
	for _, name := range c.StringSlice(flagRoutine) {
		res, err := s.run(c.Context, name, c.Duration(flagDuration))
		if err != nil {
			return err
		}
		results = append(results, res)
	}
	_, err = io.WriteString(c.App.Writer, report(results)+"\n")
	return err
}
