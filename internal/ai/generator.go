package ai

import (
	"context"
	"fmt"
	"time"
)

// Format tells the backend what kind of answer the prompt expects.
type Format int

const (
	// FormatText asks for free-form text.
	FormatText Format = iota
	// FormatJSON asks for a structured JSON answer.
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	default:
		return "text"
	}
}

// Generator is a language model able to answer a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, format Format) (string, error)
	Model() string
}

// APIError is a failed call to a model provider. RetryAfter is set when the
// provider told us how long to wait.
type APIError struct {
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model api status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model api status %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
