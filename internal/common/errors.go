// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Configuration errors.
	ErrEmptySchema        = errors.New("no usable features constructed")
	ErrMissingLabelColumn = errors.New("no suitable target column found")
	ErrMissingConfig      = errors.New("missing configuration")
	ErrInvalidConfig      = errors.New("invalid configuration")

	// Training errors.
	ErrNoTrainingData = errors.New("no records with a resolvable target")
	ErrSingleClass    = errors.New("targets contain a single class")

	// Service state errors.
	ErrServiceUnavailable = errors.New("model not loaded")
	ErrArtifactLoadFailed = errors.New("artifact load failed")

	// Inference errors.
	ErrMisconfiguredArtifact = errors.New("model bundle missing feature lists")
	ErrInference             = errors.New("inference failed")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// InferenceError carries diagnostic detail about a pipeline failure on a
// structurally valid row.
type InferenceError struct {
	Err    error
	Detail string
}

func (e *InferenceError) Error() string {
	switch {
	case e.Err != nil && e.Detail != "":
		return fmt.Sprintf("%s: %s: %v", ErrInference, e.Detail, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", ErrInference, e.Err)
	default:
		return fmt.Sprintf("%s: %s", ErrInference, e.Detail)
	}
}

// Is makes errors.Is(err, ErrInference) hold for every InferenceError.
func (e *InferenceError) Is(target error) bool {
	return target == ErrInference
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// NewInferenceError wraps err with a diagnostic detail.
func NewInferenceError(detail string, err error) error {
	return &InferenceError{Detail: detail, Err: err}
}

// IsRetryable reports whether the caller may retry the same request later.
// Only service-state errors qualify; a failed prediction is deterministic.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}
