package webspec

import (
	"errors"
	"fmt"
)

// SetupError represents an operational error that should lead to exit code 2.
// Examples include configuration errors, an unreachable target, or a browser
// backend that failed to boot.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *SetupError) Unwrap() error {
	return e.Err
}

// NewSetupError creates a new SetupError
func NewSetupError(err error) *SetupError {
	return &SetupError{Err: err}
}

// IsSetupError checks if the error is or wraps a SetupError
func IsSetupError(err error) bool {
	var setupErr *SetupError
	return err != nil && errors.As(err, &setupErr)
}

// SpecFailureError represents one or more failed specs (exit code 1)
type SpecFailureError struct {
	Message string
}

func (e *SpecFailureError) Error() string {
	return fmt.Sprintf("spec failure: %s", e.Message)
}

// NewSpecFailureError creates a new SpecFailureError
func NewSpecFailureError(message string) *SpecFailureError {
	return &SpecFailureError{Message: message}
}

// IsSpecFailureError checks if the error is or wraps a SpecFailureError
func IsSpecFailureError(err error) bool {
	var specErr *SpecFailureError
	return err != nil && errors.As(err, &specErr)
}
