package submitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeTransitions(t *testing.T) {
	for _, terminal := range []Outcome{OutcomeConfirmed, OutcomeRetryable, OutcomeFatal, OutcomeCancelled} {
		assert.True(t, OutcomePending.CanTransitionTo(terminal), "pending -> %s", terminal)
	}

	// Terminal attempt outcomes never transition.
	assert.False(t, OutcomeConfirmed.CanTransitionTo(OutcomeFatal))
	assert.False(t, OutcomeFatal.CanTransitionTo(OutcomeConfirmed))
	assert.False(t, OutcomeCancelled.CanTransitionTo(OutcomePending))
}

func TestOutcomeTerminal(t *testing.T) {
	assert.True(t, OutcomeConfirmed.Terminal())
	assert.True(t, OutcomeFatal.Terminal())
	assert.True(t, OutcomeCancelled.Terminal())
	assert.False(t, OutcomePending.Terminal())
	assert.False(t, OutcomeRetryable.Terminal())
}

func TestJobAttemptNumbering(t *testing.T) {
	job := NewJob([]byte("payload"), 2, time.Second)
	require.Nil(t, job.CurrentAttempt())
	assert.Equal(t, OutcomePending, job.Outcome())

	first := job.beginAttempt()
	assert.Equal(t, 1, first.AttemptNumber)
	second := job.beginAttempt()
	assert.Equal(t, 2, second.AttemptNumber)
	assert.Same(t, second, job.CurrentAttempt())
	assert.Len(t, job.Attempts, 2)
}

func TestJobFingerprintUsesLatestNonEmpty(t *testing.T) {
	job := NewJob([]byte("payload"), 2, time.Second)
	assert.Equal(t, "", job.Fingerprint())

	a1 := job.beginAttempt()
	a1.Fingerprint = "fp-1"
	assert.Equal(t, "fp-1", job.Fingerprint())

	// A later attempt that never got a fingerprint falls back to the previous one.
	job.beginAttempt()
	assert.Equal(t, "fp-1", job.Fingerprint())

	a3 := job.beginAttempt()
	a3.Fingerprint = "fp-3"
	assert.Equal(t, "fp-3", job.Fingerprint())
}
