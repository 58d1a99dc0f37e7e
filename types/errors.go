package types

import (
	"errors"
	"fmt"
	"time"
)

// StepFailure scopes a failure to one step of one spec. It is recorded in
// the spec's RunResult and never aborts the batch.
type StepFailure struct {
	SpecID    string
	StepIndex int
	Cause     error
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("spec %s: step %d failed: %v", e.SpecID, e.StepIndex, e.Cause)
}

func (e *StepFailure) Unwrap() error { return e.Cause }

// UnknownPageError indicates a UI step referenced a page object that was
// never registered.
type UnknownPageError struct {
	Page string
}

func (e *UnknownPageError) Error() string {
	return fmt.Sprintf("unknown page object %q", e.Page)
}

// NotFoundError indicates a missing named resource, e.g. a fixture.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// ParseError indicates malformed input data (spec, page or fixture file).
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ActionFailure wraps a backend failure raised inside a page object action.
// Page actions never swallow backend errors; they surface here.
type ActionFailure struct {
	Page   string
	Action string
	Cause  error
}

func (e *ActionFailure) Error() string {
	return fmt.Sprintf("page %s: action %s failed: %v", e.Page, e.Action, e.Cause)
}

func (e *ActionFailure) Unwrap() error { return e.Cause }

// DuplicateResultError signals a second Record call for the same spec ID.
// This is a programming-invariant violation and treated as fatal.
type DuplicateResultError struct {
	SpecID string
}

func (e *DuplicateResultError) Error() string {
	return fmt.Sprintf("result for spec %q recorded twice", e.SpecID)
}

// CancelledError marks a spec that was skipped because the run was
// cancelled while it was queued or mid-execution.
type CancelledError struct{}

func (e *CancelledError) Error() string { return "run cancelled" }

// SpecTimeoutError marks a spec that exceeded its per-spec ceiling. The
// worker's session is discarded afterwards so corruption cannot propagate.
type SpecTimeoutError struct {
	SpecID string
	Limit  time.Duration
}

func (e *SpecTimeoutError) Error() string {
	return fmt.Sprintf("spec %s exceeded timeout of %s", e.SpecID, e.Limit)
}

// IsCancelled checks if the error is or wraps a CancelledError.
func IsCancelled(err error) bool {
	var cancelled *CancelledError
	return err != nil && errors.As(err, &cancelled)
}
