package ai

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// ErrMaxRetries is returned when every attempt was rate limited
var ErrMaxRetries = errors.New("max retries reached")

// APIError is a non-2xx answer from the provider
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini api error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini api error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether err wraps a provider answer that signals a rate
// limit. Only *APIError is inspected; transport errors never count.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "rate limit")
}

// RetryPolicy configures Retry
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration

	// OnRetry is called before each backoff wait. attempt is zero based.
	OnRetry func(attempt int, delay time.Duration, err error)

	// sleep and jitter are swapped out in tests
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

// DefaultRetryPolicy is three attempts starting at two seconds
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxJitter:   time.Second,
	}
}

// Delay returns the wait before the retry that follows attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay * time.Duration(1<<attempt)
	jitter := p.jitter
	if jitter == nil {
		jitter = randomJitter
	}
	return d + jitter(p.MaxJitter)
}

// Retry runs op until it succeeds, fails with an error that is not rate limited,
// or runs out of attempts.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRateLimited(err) {
			return zero, err
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, attempts, lastErr)
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
