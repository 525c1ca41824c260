// Package app wires configuration, transport, recording and the UI
// session into one runnable application.
package app

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by a second concurrent Run.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrInitialization wraps every failure to build a component in New.
	ErrInitialization = errors.New("initialization failed")

	// ErrShutdownTimeout is returned when the editor does not acknowledge
	// detach in time.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

// OperationError names the step and endpoint that failed.
type OperationError struct {
	Op     string // connect, spawn, replay, start, attach, run
	Target string // address, command or trace path
	Err    error
}

// NewOperationError creates an OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{Op: op, Target: target, Err: err}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Op
	if e.Target != "" {
		msg += " " + e.Target
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func initError(component string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInitialization, component, err)
}
