//go:build !linux

package main

import (
	"github.com/pkg/errors"

	"github.com/tickbot-robotics/tickbot/components/board"
)

func openBeamBreak(opts gpioOptions) (board.DigitalInput, func() error, error) {
	return nil, nil, errors.Errorf("cannot read GPIO chip %q: GPIO beam breaks are only supported on Linux", opts.chip)
}
