package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBudget_BoundedAttempts(t *testing.T) {
	b := NewBudget(3, time.Millisecond, 10*time.Millisecond)
	ctx := context.Background()

	var attempts int
	for b.Next(ctx) {
		attempts++
	}
	require.Equal(t, 3, attempts)
	require.Equal(t, 3, b.Attempts())

	// Exhausted budget stays exhausted.
	require.False(t, b.Next(ctx))
}

func TestBudget_FirstAttemptImmediate(t *testing.T) {
	b := NewBudget(2, time.Hour, time.Hour)

	start := time.Now()
	require.True(t, b.Next(context.Background()))
	require.Less(t, time.Since(start), time.Second)
}

func TestBudget_ContextCancelAbortsWait(t *testing.T) {
	b := NewBudget(5, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	require.True(t, b.Next(ctx))

	cancel()
	// The second attempt would wait an hour; cancellation must abort it.
	require.False(t, b.Next(ctx))
}

func TestBudget_BackoffCapped(t *testing.T) {
	b := NewBudget(10, 4*time.Millisecond, 8*time.Millisecond)
	ctx := context.Background()

	for b.Next(ctx) {
	}
	require.Equal(t, 8*time.Millisecond, b.delay)
}

func TestNewBudget_Defaults(t *testing.T) {
	b := NewBudget(0, 0, 0)
	require.Equal(t, DefaultMaxAttempts, b.maxAttempts)
	require.Equal(t, DefaultBackoff, b.delay)
	require.Equal(t, DefaultBackoffMax, b.maxDelay)
}
