// Package retry wraps an ai.Generator with exponential backoff. The pipeline
// itself never retries; callers opt in by wrapping their generator.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/coldmail/internal/ai"
	"github.com/spigell/coldmail/internal/logger"
)

const (
	defaultBaseDelay = 2 * time.Second
	// longer provider back-off hints are treated as quota exhaustion
	maxRetryAfter = 30 * time.Second
)

var sleep = time.Sleep

// Generator retries transient failures of the wrapped generator.
type Generator struct {
	inner      ai.Generator
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

var _ ai.Generator = (*Generator)(nil)

// Wrap returns inner unchanged when maxRetries is not positive.
// maxRetries is the number of additional attempts after the first failure.
func Wrap(inner ai.Generator, maxRetries int, baseDelay time.Duration, log *zap.Logger) ai.Generator {
	if maxRetries <= 0 {
		return inner
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	return &Generator{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger.OrNop(log),
	}
}

func (g *Generator) Model() string {
	return g.inner.Model()
}

func (g *Generator) Generate(ctx context.Context, prompt string, format ai.Format) (string, error) {
	out, err := g.inner.Generate(ctx, prompt, format)
	if err == nil || !isRetryable(err) {
		return out, err
	}

	lastErr := err
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		delay, ok := g.backoffDelay(attempt, lastErr)
		if !ok {
			return "", lastErr
		}

		g.logger.Warn("retrying model call after transient error",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", g.maxRetries),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		if err := WaitFor(ctx, delay); err != nil {
			return "", fmt.Errorf("retry cancelled: %w", err)
		}

		out, err = g.inner.Generate(ctx, prompt, format)
		if err == nil {
			return out, nil
		}
		if !isRetryable(err) {
			return "", err
		}
		lastErr = err
	}

	return "", lastErr
}

// backoffDelay computes baseDelay * 2^(attempt-1) with ±30% jitter. A provider
// supplied RetryAfter takes precedence; when it is too long ok is false.
func (g *Generator) backoffDelay(attempt int, err error) (time.Duration, bool) {
	var apiErr *ai.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		if apiErr.RetryAfter > maxRetryAfter {
			return 0, false
		}
		return apiErr.RetryAfter, true
	}

	delay := g.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter), true
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *ai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return apiErr.StatusCode >= http.StatusInternalServerError
	}

	// network errors and the like
	return true
}

// WaitFor sleeps for d or until ctx is done.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
