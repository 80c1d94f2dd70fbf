// Package board defines digital inputs and the background edge detector used for fast binary sensors.
package board

import "context"

// A DigitalInput is a single binary sensor line, e.g. a beam break.
type DigitalInput interface {
	// Name identifies the input in logs.
	Name() string

	// Get gets the high/low state of the line.
	Get(ctx context.Context) (bool, error)
}
