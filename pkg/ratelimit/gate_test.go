package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_EnforcesMinimumSpacing(t *testing.T) {
	g := New(30*time.Millisecond, 3)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Do(context.Background(), func(ctx context.Context) error { return nil }))
	}
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestGate_RetriesRetryableError(t *testing.T) {
	g := New(time.Millisecond, 3)

	var calls int32
	err := g.Do(context.Background(), func(ctx context.Context) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return &RetryableError{Err: errors.New("temporary"), RetryAfter: time.Millisecond}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)
}

func TestGate_GivesUpAfterMaxRetries(t *testing.T) {
	g := New(time.Millisecond, 2)

	var calls int32
	err := g.Do(context.Background(), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return &RetryableError{Err: errors.New("always fails"), RetryAfter: time.Millisecond}
	})
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls) // initial attempt + 2 retries
}

func TestGate_NonRetryableErrorReturnsImmediately(t *testing.T) {
	g := New(time.Millisecond, 3)

	var calls int32
	wantErr := errors.New("permanent failure")
	err := g.Do(context.Background(), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return wantErr
	})
	assert.Same(t, wantErr, err)
	assert.Equal(t, int32(1), calls)
}

func TestClassifyHTTPError(t *testing.T) {
	base := errors.New("http error")

	rl := ClassifyHTTPError(http.StatusTooManyRequests, "2", base)
	var retryable *RetryableError
	require.ErrorAs(t, rl, &retryable)
	assert.True(t, retryable.RateLimited)
	assert.Equal(t, 2*time.Second, retryable.RetryAfter)

	serverErr := ClassifyHTTPError(http.StatusInternalServerError, "", base)
	require.ErrorAs(t, serverErr, &retryable)
	assert.False(t, retryable.RateLimited)

	notRetryable := ClassifyHTTPError(http.StatusBadRequest, "", base)
	assert.Same(t, base, notRetryable)
}
