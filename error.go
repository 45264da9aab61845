package synth

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceFailure is returned by Run when the audio device is lost
	// or cannot be opened.
	ErrDeviceFailure = errors.New("device failure")
	// ErrInvalidState is returned if engine method cannot be executed at
	// this moment.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnknownNode is returned when the live graph has no such node.
	ErrUnknownNode = errors.New("unknown node")
	// ErrUnknownParam is returned when the node has no such parameter.
	ErrUnknownParam = errors.New("unknown parameter")
)

// DeviceError is returned when backend fails. It matches
// ErrDeviceFailure and unwraps to the backend error.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrDeviceFailure, e.Op, e.Err)
}

// Is checks if target is ErrDeviceFailure.
func (e *DeviceError) Is(target error) bool {
	return target == ErrDeviceFailure
}

// Unwrap returns the backend error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

func deviceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DeviceError{Op: op, Err: err}
}
