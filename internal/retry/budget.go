// Package retry provides a bounded retry budget with exponential backoff.
// A budget is scoped to a single logical operation (a buy, a sell, or one
// discovery poll) and is never shared or persisted.
package retry

import (
	"context"
	"time"
)

// Default budget parameters.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 500 * time.Millisecond
	DefaultBackoffMax  = 10 * time.Second
	backoffMult        = 2.0
)

// Budget tracks attempts and backoff state for one logical operation.
// Every remote call is wrapped in a budget, guaranteeing eventual return
// even under sustained endpoint unavailability.
type Budget struct {
	maxAttempts int
	attempts    int
	delay       time.Duration
	maxDelay    time.Duration
}

// NewBudget creates a budget with the given bounds. Non-positive arguments
// fall back to defaults.
func NewBudget(maxAttempts int, backoff, backoffMax time.Duration) *Budget {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	if backoffMax <= 0 {
		backoffMax = DefaultBackoffMax
	}
	return &Budget{
		maxAttempts: maxAttempts,
		delay:       backoff,
		maxDelay:    backoffMax,
	}
}

// Attempts returns the number of attempts consumed so far.
func (b *Budget) Attempts() int {
	return b.attempts
}

// Next consumes one attempt. It returns false when the budget is exhausted.
// Before every attempt after the first it sleeps the current backoff delay,
// doubling it up to the ceiling; the wait aborts early on context cancel.
func (b *Budget) Next(ctx context.Context) bool {
	if b.attempts >= b.maxAttempts {
		return false
	}
	if b.attempts > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(b.delay):
		}
		b.delay = time.Duration(float64(b.delay) * backoffMult)
		if b.delay > b.maxDelay {
			b.delay = b.maxDelay
		}
	}
	b.attempts++
	return true
}
