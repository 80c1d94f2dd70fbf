//go:build linux

// Package linuxgpio implements a DigitalInput on a Linux GPIO character device line.
package linuxgpio

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"

	"github.com/tickbot-robotics/tickbot/components/board"
)

const consumer = "tickbot"

// Config selects the line.
type Config struct {
	Chip      string `json:"chip"`
	Offset    int    `json:"offset"`
	ActiveLow bool   `json:"active_low,omitempty"`
	PullUp    bool   `json:"pull_up,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Chip == "" {
		return errors.Errorf("%s: chip is required", path)
	}
	if cfg.Offset < 0 {
		return errors.Errorf("%s: offset must be non-negative, got %d", path, cfg.Offset)
	}
	return nil
}

// Input is a requested input line.
type Input struct {
	name string
	line *gpiocdev.Line
}

var _ board.DigitalInput = &Input{}

// NewInput requests the line as an input.
func NewInput(name string, cfg Config) (*Input, error) {
	if err := cfg.Validate(name); err != nil {
		return nil, err
	}
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithConsumer(consumer)}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	if cfg.PullUp {
		opts = append(opts, gpiocdev.WithPullUp)
	}
	line, err := gpiocdev.RequestLine(cfg.Chip, cfg.Offset, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot request %s line %d for %s", cfg.Chip, cfg.Offset, name)
	}
	return &Input{name: name, line: line}, nil
}

// Name returns the input's name.
func (i *Input) Name() string {
	return i.name
}

// Get reads the line.
func (i *Input) Get(ctx context.Context) (bool, error) {
	v, err := i.line.Value()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", i.name, err)
	}
	return v == 1, nil
}

// Close releases the line.
func (i *Input) Close() error {
	return i.line.Close()
}
