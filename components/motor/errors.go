package motor

import "github.com/pkg/errors"

// NewPowerOutOfRangeError returns an error for a power request outside [-1, 1].
func NewPowerOutOfRangeError(motorName string, powerPct float64) error {
	return errors.Errorf("motor named %s was asked for power %f outside [-1, 1]", motorName, powerPct)
}

// NewUnsupportedModeError returns an error when a motor cannot run the requested control mode.
func NewUnsupportedModeError(motorName string, mode ControlMode) error {
	return errors.Errorf("motor named %s does not support %s control", motorName, mode)
}

// NewFaultedError returns an error when a motor rejects a request because of an active fault.
func NewFaultedError(motorName string, faults []Fault) error {
	return errors.Errorf("motor named %s is faulted: %v", motorName, faults)
}
