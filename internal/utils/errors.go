package utils

import (
	"errors"
	"fmt"
)

// Error classes surfaced by a categorization run. Match with errors.Is.
var (
	// ErrFeatureExtraction marks an embedding capability failure; the run produced nothing.
	ErrFeatureExtraction = errors.New("feature extraction failed")
	// ErrPrecondition marks an internal invariant violation (caller or engine bug).
	ErrPrecondition = errors.New("precondition violated")
	// ErrEngineTimeout marks a run that exceeded its wall-clock budget.
	ErrEngineTimeout = errors.New("engine timeout")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// NewFeatureExtractionError wraps an embedding failure for op.
func NewFeatureExtractionError(op string, err error) error {
	return &AppError{Op: op, Msg: "embedding unavailable", Err: join(ErrFeatureExtraction, err)}
}

// NewPreconditionError reports a violated invariant for op.
func NewPreconditionError(op, msg string) error {
	return &AppError{Op: op, Msg: msg, Err: ErrPrecondition}
}

// NewEngineTimeoutError reports an exhausted run budget for op.
func NewEngineTimeoutError(op string, err error) error {
	return &AppError{Op: op, Msg: "run budget exceeded", Err: join(ErrEngineTimeout, err)}
}

func join(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
