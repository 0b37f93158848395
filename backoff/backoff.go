// Package backoff provides reconnection delay policies.
package backoff

import (
	"math"
	"sync"
	"time"
)

// Calculator decides how long to wait before a reconnect attempt.
type Calculator interface {
	// Next returns the delay before attempt number retryCount (>= 1).
	// lastAttempt is when the previous attempt started; it is the zero
	// time when no attempt has been made yet. successes counts completed
	// connections, with -1 meaning no connection has ever succeeded.
	// Returns ok=false when no further attempts should be made.
	Next(retryCount int, lastAttempt time.Time, successes int) (delay time.Duration, ok bool)
}

// Default is the stock policy. While the very first connection has never
// succeeded it returns a short fixed delay, giving up permanently after
// MaxInitialAttempts. Once at least one connection has succeeded it
// switches to exponential backoff capped at MaxDelay.
type Default struct {
	// InitialDelay is the fixed delay used before the first success.
	InitialDelay time.Duration

	// MaxInitialAttempts bounds how often the initial connection is tried.
	MaxInitialAttempts int

	// BaseDelay seeds the exponential reconnect branch.
	BaseDelay time.Duration

	// MaxDelay caps the reconnect delay.
	MaxDelay time.Duration

	// Multiplier is the factor by which the reconnect delay grows. Defaults to 2.
	Multiplier float64

	mu              sync.Mutex
	initialAttempts int
}

// NewDefault creates a Default policy with sensible defaults.
func NewDefault() *Default {
	return &Default{
		InitialDelay:       500 * time.Millisecond,
		MaxInitialAttempts: 10,
		BaseDelay:          1 * time.Second,
		MaxDelay:           30 * time.Second,
		Multiplier:         2,
	}
}

// Next implements Calculator.
func (d *Default) Next(retryCount int, _ time.Time, successes int) (time.Duration, bool) {
	if successes < 0 {
		// Never connected: fixed delay, bounded attempts. The counter is
		// internal and resets only by recreating the policy.
		d.mu.Lock()
		defer d.mu.Unlock()
		d.initialAttempts++
		if d.initialAttempts > d.MaxInitialAttempts {
			return 0, false
		}
		return d.InitialDelay, true
	}

	multiplier := d.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	delay := time.Duration(float64(d.BaseDelay) * math.Pow(multiplier, float64(retryCount)))
	if delay > d.MaxDelay || delay <= 0 {
		delay = d.MaxDelay
	}
	return delay, true
}
