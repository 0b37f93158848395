package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_InitialBranch(t *testing.T) {
	d := NewDefault()

	for i := 1; i <= d.MaxInitialAttempts; i++ {
		delay, ok := d.Next(i, time.Time{}, -1)
		require.True(t, ok, "attempt %d should be allowed", i)
		assert.Equal(t, d.InitialDelay, delay)
	}

	// Attempts beyond the bound are terminal.
	_, ok := d.Next(d.MaxInitialAttempts+1, time.Time{}, -1)
	assert.False(t, ok)
	_, ok = d.Next(d.MaxInitialAttempts+2, time.Time{}, -1)
	assert.False(t, ok)
}

func TestDefault_InitialBranchCountsCalls(t *testing.T) {
	// The bound applies to calls, not to the retryCount argument: a caller
	// passing the same retryCount repeatedly still runs out of attempts.
	d := &Default{InitialDelay: time.Millisecond, MaxInitialAttempts: 3}

	for i := 0; i < 3; i++ {
		_, ok := d.Next(1, time.Time{}, -1)
		require.True(t, ok)
	}
	_, ok := d.Next(1, time.Time{}, -1)
	assert.False(t, ok)
}

func TestDefault_ExponentialBranch(t *testing.T) {
	d := &Default{
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2,
	}

	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s capped
		{6, 30 * time.Second},
	}
	for _, tc := range cases {
		delay, ok := d.Next(tc.retryCount, time.Now(), 0)
		require.True(t, ok)
		assert.Equal(t, tc.want, delay, "retryCount=%d", tc.retryCount)
	}
}

func TestDefault_ExponentialNeverTerminal(t *testing.T) {
	d := NewDefault()

	for i := 1; i <= 100; i++ {
		delay, ok := d.Next(i, time.Now(), 3)
		require.True(t, ok)
		assert.LessOrEqual(t, delay, d.MaxDelay)
		assert.Greater(t, delay, time.Duration(0))
	}
}

func TestDefault_OverflowCapped(t *testing.T) {
	d := NewDefault()

	// Large exponents overflow time.Duration; the cap must still hold.
	delay, ok := d.Next(500, time.Now(), 1)
	require.True(t, ok)
	assert.Equal(t, d.MaxDelay, delay)
}

func TestDefault_ZeroMultiplierDefaultsToTwo(t *testing.T) {
	d := &Default{BaseDelay: time.Second, MaxDelay: time.Minute}

	delay, ok := d.Next(2, time.Now(), 0)
	require.True(t, ok)
	assert.Equal(t, 4*time.Second, delay)
}
