package rpc

import (
	"errors"
	"fmt"
)

// Standard errors returned by the RPC client.
var (
	// ErrDisconnected indicates the transport is gone. Every pending call
	// fails with an error wrapping it.
	ErrDisconnected = errors.New("rpc: disconnected")

	// ErrClosed indicates the client was closed locally.
	ErrClosed = errors.New("rpc: client closed")

	// ErrMalformedFrame indicates a top-level frame with the wrong shape.
	// The frame is dropped and the stream continues.
	ErrMalformedFrame = errors.New("rpc: malformed frame")

	// ErrNotStarted indicates Start has not been called.
	ErrNotStarted = errors.New("rpc: client not started")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("rpc: client already started")
)

// RemoteError is the error payload of a Response, surfaced to the caller
// of the matching Call.
type RemoteError struct {
	Method  string
	Payload any
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("rpc error from %s: %s", e.Method, e.Message())
	}
	return "rpc error: " + e.Message()
}

// Message returns the human readable part of the payload. Neovim sends
// errors as [type, message]; anything else is formatted as-is.
func (e *RemoteError) Message() string {
	if arr, ok := e.Payload.([]any); ok && len(arr) == 2 {
		if s, ok := asString(arr[1]); ok {
			return s
		}
	}
	if s, ok := asString(e.Payload); ok {
		return s
	}
	return fmt.Sprintf("%v", e.Payload)
}

// Code returns the numeric error type for [type, message] payloads, or -1.
func (e *RemoteError) Code() int64 {
	if arr, ok := e.Payload.([]any); ok && len(arr) == 2 {
		if n, ok := AsInt64(arr[0]); ok {
			return n
		}
	}
	return -1
}

// FrameError describes why a frame was rejected.
type FrameError struct {
	Reason string
	Frame  any
}

// Error implements the error interface.
func (e *FrameError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMalformedFrame, e.Reason)
}

// Unwrap returns ErrMalformedFrame.
func (e *FrameError) Unwrap() error {
	return ErrMalformedFrame
}

func malformed(frame any, format string, args ...any) error {
	return &FrameError{Reason: fmt.Sprintf(format, args...), Frame: frame}
}
