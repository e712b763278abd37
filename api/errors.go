// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy shared by the transport engine and its collaborators.
// Callers see end-of-stream, option-set failures, unbind timeouts,
// dispatch failures and hard write failures, whatever internal step
// produced them.

package api

import (
	"fmt"
	"io"
)

// Common errors used across the library.
var (
	// ErrEndOfStream reports an orderly close by the peer. It wraps io.EOF.
	ErrEndOfStream = fmt.Errorf("end of stream: %w", io.EOF)

	ErrUnbindTimeout     = fmt.Errorf("unbind: close acknowledgement timed out")
	ErrConnectionClosed  = fmt.Errorf("connection is closed")
	ErrTransportStopped  = fmt.Errorf("transport is stopped")
	ErrExecutorClosed    = fmt.Errorf("executor is closed")
	ErrRunnerStopped     = fmt.Errorf("runner is stopped")
	ErrInvalidArgument   = fmt.Errorf("invalid argument")
	ErrOperationTimeout  = fmt.Errorf("operation timeout")
	ErrNotSupported      = fmt.Errorf("operation not supported")
	ErrResourceExhausted = fmt.Errorf("resource exhausted")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeInvalidState
	ErrCodeTimeout
	ErrCodeNotSupported
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// OptionError describes a socket option that could not be applied.
// It is logged and never aborts configuration.
type OptionError struct {
	Option string
	Value  any
	Err    error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("can not set %s to %v: %v", e.Option, e.Value, e.Err)
}

func (e *OptionError) Unwrap() error { return e.Err }

// IOError is the single failure category surfaced by event dispatch.
// Conn and Event identify where the failure happened; Err is the cause.
type IOError struct {
	Conn  string
	Event IOEvent
	Err   error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i/o failure: connection=%s event=%s: %v", e.Conn, e.Event, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// WriteError is a hard write failure: the channel accepted no bytes for a
// reason other than its send buffer being full.
type WriteError struct {
	Conn string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("error writing to peer %s: %v", e.Conn, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
