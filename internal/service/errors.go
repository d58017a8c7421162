package service

import (
	"errors"
	"fmt"
)

// ValidationError means the submitted input is malformed or out of range.
// Handlers render the message back to the submitter with a 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// StateConflictError means the request was well-formed but the league is not
// in a state that allows it (wrong week, round incomplete, already reported).
// Handlers render the message with a 409.
type StateConflictError struct {
	Msg string
}

func (e *StateConflictError) Error() string {
	return e.Msg
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) error {
	return &StateConflictError{Msg: fmt.Sprintf(format, args...)}
}

// ErrScheduleExhausted is returned when the scheduler runs out of retries
// without finding a repeat-free season.
var ErrScheduleExhausted = errors.New("could not generate a valid schedule")

// ErrNotFound is returned when a referenced player or match does not exist.
var ErrNotFound = errors.New("not found")

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsStateConflict(err error) bool {
	var c *StateConflictError
	return errors.As(err, &c)
}
