// Package errors provides structured error handling for the session engine.
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Resolution errors
	CodeStaleMove        Code = "STALE_MOVE"
	CodePlacementLayout  Code = "PLACEMENT_LAYOUT"
	CodeSelectionInvalid Code = "SELECTION_INVALID"
	CodeMoveIncomplete   Code = "MOVE_INCOMPLETE"

	// Submission errors
	CodeLocalExecution Code = "LOCAL_EXECUTION"
	CodeAckRejected    Code = "ACK_REJECTED"
	CodeSubmitInFlight Code = "SUBMIT_IN_FLIGHT"
	CodeUnknownAck     Code = "UNKNOWN_ACK_CORRELATION"

	// Merge errors
	CodeSnapshotInvalid Code = "SNAPSHOT_INVALID"
	CodeBoardInvalid    Code = "BOARD_INVALID"

	// Session errors
	CodeSessionTokenInvalid Code = "SESSION_TOKEN_INVALID"
	CodeSessionNotStarted   Code = "SESSION_NOT_STARTED"
)

// Error is a code-carrying error used across the engine.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error around a cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches coded errors by code, so sentinels like New(CodeStaleMove, "")
// work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// CodeOf extracts the code from an error chain, or CodeUnknown.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeUnknown
}

// RecoveredSilently reports whether the error represents an ordinary
// concurrent-update race that the engine resolves by discarding the partial
// move and re-resolving, without surfacing a failure to the user.
func RecoveredSilently(err error) bool {
	return CodeOf(err) == CodeStaleMove
}

// Surfaced reports whether the error must be shown to the user. Execution
// and acknowledgement failures always surface; configuration failures like
// a missing placement grid are fatal rather than user-facing.
func Surfaced(err error) bool {
	switch CodeOf(err) {
	case CodeLocalExecution, CodeAckRejected:
		return true
	default:
		return false
	}
}
