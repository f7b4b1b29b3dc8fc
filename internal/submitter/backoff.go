// internal/submitter/backoff.go
package submitter

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cmatc13/txpilot/pkg/config"
)

// BackoffPolicy computes the wait before a retry attempt. The delay grows
// exponentially with the attempt number, saturates at the configured maximum
// and is optionally spread by uniform jitter.
type BackoffPolicy struct {
	base       time.Duration
	multiplier float64
	max        time.Duration
	jitter     float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoffPolicy creates a policy from configuration.
func NewBackoffPolicy(cfg config.BackoffConfig) *BackoffPolicy {
	return NewBackoffPolicyWithSeed(cfg, time.Now().UnixNano())
}

// NewBackoffPolicyWithSeed creates a policy with a fixed jitter seed, which
// makes the delay sequence deterministic.
func NewBackoffPolicyWithSeed(cfg config.BackoffConfig, seed int64) *BackoffPolicy {
	return &BackoffPolicy{
		base:       cfg.BaseDelay,
		multiplier: cfg.Multiplier,
		max:        cfg.MaxDelay,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Delay returns the wait before retrying after the given attempt number.
// The result is min(base*multiplier^(attempt-1), max), jittered to
// [d*(1-jitter), d*(1+jitter)] and clamped to >= 0.
func (p *BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := float64(p.base) * math.Pow(p.multiplier, float64(attempt-1))
	if d > float64(p.max) {
		d = float64(p.max)
	}

	if p.jitter > 0 {
		p.mu.Lock()
		f := p.rng.Float64()
		p.mu.Unlock()

		// uniform over [d*(1-jitter), d*(1+jitter)]
		d = d * (1 - p.jitter + 2*p.jitter*f)
	}

	if d < 0 {
		return 0
	}
	return time.Duration(d)
}
