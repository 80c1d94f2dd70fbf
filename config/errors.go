package config

import (
	"fmt"

	"github.com/pkg/errors"
)

// MissingKeyError is returned when a required path is absent.
type MissingKeyError struct {
	Path string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing config key %q", e.Path)
}

// NewMissingKeyError returns a standard error for a required key that is absent.
func NewMissingKeyError(path string) error {
	return &MissingKeyError{Path: path}
}

// IsMissingKey reports whether err (or its cause) is a MissingKeyError.
func IsMissingKey(err error) bool {
	var mk *MissingKeyError
	return errors.As(err, &mk)
}

// MalformedKeyError is returned when a key is present but holds the wrong type.
type MalformedKeyError struct {
	Path     string
	Expected string
	Actual   interface{}
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("config key %q should be a %s but got (%v) %T", e.Path, e.Expected, e.Actual, e.Actual)
}

// NewMalformedKeyError returns a standard error for a key with the wrong type.
func NewMalformedKeyError(path, expected string, actual interface{}) error {
	return &MalformedKeyError{Path: path, Expected: expected, Actual: actual}
}

// IsConfigError reports whether err is a missing or malformed key error.
func IsConfigError(err error) bool {
	var mf *MalformedKeyError
	return IsMissingKey(err) || errors.As(err, &mf)
}
