package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func testPolicy(s *recordedSleeps) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxJitter:   50 * time.Millisecond,
		sleep:       s.sleep,
		jitter:      func(time.Duration) time.Duration { return 7 * time.Millisecond },
	}
}

func TestRetryRecoversAfterRateLimit(t *testing.T) {
	sleeps := &recordedSleeps{}
	calls := 0

	got, err := Retry(context.Background(), testPolicy(sleeps), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &APIError{StatusCode: 429, Message: "quota"}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{107 * time.Millisecond}, sleeps.delays)
}

func TestRetryBackoffGrowsExponentially(t *testing.T) {
	sleeps := &recordedSleeps{}
	policy := testPolicy(sleeps)
	policy.MaxAttempts = 4
	var retried []int
	policy.OnRetry = func(attempt int, _ time.Duration, _ error) {
		retried = append(retried, attempt)
	}

	_, err := Retry(context.Background(), policy, func(context.Context) (int, error) {
		return 0, &APIError{StatusCode: 429, Message: "too many requests"}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, []time.Duration{
		107 * time.Millisecond,
		207 * time.Millisecond,
		407 * time.Millisecond,
	}, sleeps.delays)
	assert.Equal(t, []int{0, 1, 2}, retried)
}

func TestRetryFailsFastOnOtherErrors(t *testing.T) {
	sleeps := &recordedSleeps{}
	calls := 0
	boom := &APIError{StatusCode: 500, Message: "internal"}

	_, err := Retry(context.Background(), testPolicy(sleeps), func(context.Context) (string, error) {
		calls++
		return "", boom
	})

	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps.delays)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrMaxRetries)
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour}
	calls := 0

	_, err := Retry(ctx, policy, func(context.Context) (string, error) {
		calls++
		return "", &APIError{StatusCode: 429}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "status 429", err: &APIError{StatusCode: 429}, want: true},
		{name: "resource exhausted", err: &APIError{StatusCode: 400, Status: "RESOURCE_EXHAUSTED"}, want: true},
		{name: "wrapped", err: fmt.Errorf("calling: %w", &APIError{StatusCode: 429}), want: true},
		{name: "message", err: &APIError{StatusCode: 400, Message: "Rate limit exceeded"}, want: true},
		{name: "transport text", err: errors.New(`Post "http://host/m:generateContent?key=abc429": rate limit proxy refused`), want: false},
		{name: "server error", err: &APIError{StatusCode: 503, Message: "unavailable"}, want: false},
		{name: "plain", err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimited(tt.err))
		})
	}
}
