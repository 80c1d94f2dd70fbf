//go:build linux

package main

import (
	"github.com/tickbot-robotics/tickbot/components/board"
	"github.com/tickbot-robotics/tickbot/components/board/linuxgpio"
)

func openBeamBreak(opts gpioOptions) (board.DigitalInput, func() error, error) {
	input, err := linuxgpio.NewInput("beam_break", linuxgpio.Config{
		Chip:      opts.chip,
		Offset:    opts.line,
		ActiveLow: opts.activeLow,
	})
	if err != nil {
		return nil, nil, err
	}
	return input, input.Close, nil
}
