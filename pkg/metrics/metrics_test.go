package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestMetrics() *Metrics {
	return New(Config{Namespace: "test", ServiceName: "test"})
}

func TestRecordSubmitAttempt(t *testing.T) {
	m := newTestMetrics()

	m.RecordSubmitAttempt("accepted")
	m.RecordSubmitAttempt("accepted")
	m.RecordSubmitAttempt("rejected")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.SubmitAttemptCount.WithLabelValues("accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubmitAttemptCount.WithLabelValues("rejected")))
}

func TestRecordJobOutcome(t *testing.T) {
	m := newTestMetrics()

	m.RecordJobOutcome("CONFIRMED", 2, 150*time.Millisecond)
	m.RecordJobOutcome("CONFIRMED", 1, 50*time.Millisecond)
	m.RecordJobOutcome("FATAL", 4, time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.TransactionCount.WithLabelValues("CONFIRMED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TransactionCount.WithLabelValues("FATAL")))
}

func TestJobsInFlightGauge(t *testing.T) {
	m := newTestMetrics()

	m.RecordJobStarted()
	m.RecordJobStarted()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.JobsInFlight))

	m.RecordJobFinished()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.JobsInFlight))
}

func TestRecordRetryAndPolls(t *testing.T) {
	m := newTestMetrics()

	m.RecordRetry()
	m.RecordRetry()
	m.RecordConfirmationPoll("pending")
	m.RecordConfirmationPoll("confirmed")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RetryCount))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConfirmationPollers.WithLabelValues("pending")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConfirmationPollers.WithLabelValues("confirmed")))
}

func TestRecordWalletBalance(t *testing.T) {
	m := newTestMetrics()

	m.RecordWalletBalance(12345)
	assert.Equal(t, float64(12345), testutil.ToFloat64(m.WalletBalance))
}

func TestRecordDependencyStatus(t *testing.T) {
	m := newTestMetrics()

	m.RecordDependencyStatus("txpilot", "redis", true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DependencyUp.WithLabelValues("txpilot", "redis")))

	m.RecordDependencyStatus("txpilot", "redis", false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.DependencyUp.WithLabelValues("txpilot", "redis")))
}
