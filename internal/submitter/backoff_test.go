package submitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmatc13/txpilot/pkg/config"
)

func TestBackoffDelayGrowsExponentially(t *testing.T) {
	policy := NewBackoffPolicyWithSeed(config.BackoffConfig{
		BaseDelay:  100 * time.Millisecond,
		Multiplier: 2.0,
		MaxDelay:   10 * time.Second,
		Jitter:     0,
	}, 1)

	assert.Equal(t, 100*time.Millisecond, policy.Delay(1))
	assert.Equal(t, 200*time.Millisecond, policy.Delay(2))
	assert.Equal(t, 400*time.Millisecond, policy.Delay(3))
	assert.Equal(t, 800*time.Millisecond, policy.Delay(4))
}

func TestBackoffDelaySaturatesAtMax(t *testing.T) {
	policy := NewBackoffPolicyWithSeed(config.BackoffConfig{
		BaseDelay:  time.Second,
		Multiplier: 2.0,
		MaxDelay:   4 * time.Second,
		Jitter:     0,
	}, 1)

	assert.Equal(t, 4*time.Second, policy.Delay(3))
	assert.Equal(t, 4*time.Second, policy.Delay(10))
	assert.Equal(t, 4*time.Second, policy.Delay(50))
}

func TestBackoffDelayNonDecreasingUntilCap(t *testing.T) {
	policy := NewBackoffPolicyWithSeed(config.BackoffConfig{
		BaseDelay:  50 * time.Millisecond,
		Multiplier: 1.5,
		MaxDelay:   time.Minute,
		Jitter:     0,
	}, 1)

	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		d := policy.Delay(attempt)
		require.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		prev = d
	}
}

func TestBackoffJitterStaysInBounds(t *testing.T) {
	base := 100 * time.Millisecond
	jitter := 0.5
	policy := NewBackoffPolicyWithSeed(config.BackoffConfig{
		BaseDelay:  base,
		Multiplier: 2.0,
		MaxDelay:   10 * time.Second,
		Jitter:     jitter,
	}, 42)

	for attempt := 1; attempt <= 5; attempt++ {
		nominal := base * time.Duration(1<<(attempt-1))
		lo := time.Duration(float64(nominal) * (1 - jitter))
		hi := time.Duration(float64(nominal) * (1 + jitter))

		for i := 0; i < 100; i++ {
			d := policy.Delay(attempt)
			require.GreaterOrEqual(t, d, lo)
			require.LessOrEqual(t, d, hi)
		}
	}
}

func TestBackoffDelayNeverNegative(t *testing.T) {
	policy := NewBackoffPolicyWithSeed(config.BackoffConfig{
		BaseDelay:  0,
		Multiplier: 2.0,
		MaxDelay:   time.Second,
		Jitter:     0.9,
	}, 7)

	for attempt := 0; attempt <= 10; attempt++ {
		assert.GreaterOrEqual(t, policy.Delay(attempt), time.Duration(0))
	}
}
