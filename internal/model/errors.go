package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CatalogLoadError is returned when the portfolio catalog is missing or malformed.
type CatalogLoadError struct {
	Source string
	Cause  error
}

func (e *CatalogLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("load portfolio catalog %q: %v", e.Source, e.Cause)
	}
	return fmt.Sprintf("load portfolio catalog %q", e.Source)
}

func (e *CatalogLoadError) Unwrap() error {
	return e.Cause
}

// ExtractionError means the model response could not be turned into job postings.
// It is distinct from an empty result: an empty list is a valid answer.
type ExtractionError struct {
	Reason string
	// Raw holds a truncated copy of the model response, if one was received.
	Raw   string
	Cause error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extract jobs: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("extract jobs: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// CompositionError is a per-job failure to draft an email.
type CompositionError struct {
	Role  string
	Cause error
}

func (e *CompositionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("compose email for %q: %v", e.Role, e.Cause)
	}
	return fmt.Sprintf("compose email for %q", e.Role)
}

func (e *CompositionError) Unwrap() error {
	return e.Cause
}

// TimeoutError is reported when an outbound call exceeded its deadline.
// It matches context.DeadlineExceeded with errors.Is.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// IsTimeout reports whether err was caused by an exceeded deadline.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

// AsTimeout converts deadline errors into a *TimeoutError for op. Other errors
// are returned unchanged.
func AsTimeout(err error, op string, after time.Duration) error {
	if err == nil {
		return nil
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, After: after}
	}
	return err
}
