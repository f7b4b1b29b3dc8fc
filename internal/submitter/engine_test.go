package submitter

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmatc13/txpilot/internal/gateway"
	"github.com/cmatc13/txpilot/pkg/config"
	"github.com/cmatc13/txpilot/pkg/errors"
	"github.com/cmatc13/txpilot/pkg/logging"
)

// fakeGateway scripts gateway responses per call number, starting at 1.
type fakeGateway struct {
	mu           sync.Mutex
	submitCalls  int
	statusCalls  int
	balanceCalls int

	submitFn  func(call int) (string, error)
	statusFn  func(call int) (gateway.Status, error)
	balanceFn func(call int) (uint64, error)

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeGateway) Submit(ctx context.Context, payload []byte) (string, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.submitCalls++
	call := f.submitCalls
	fn := f.submitFn
	f.mu.Unlock()

	if fn == nil {
		return fmt.Sprintf("fp-%d", call), nil
	}
	return fn(call)
}

func (f *fakeGateway) GetStatus(ctx context.Context, fingerprint string) (gateway.Status, error) {
	f.mu.Lock()
	f.statusCalls++
	call := f.statusCalls
	fn := f.statusFn
	f.mu.Unlock()

	if fn == nil {
		return gateway.Status{State: gateway.StateConfirmed}, nil
	}
	return fn(call)
}

func (f *fakeGateway) GetBalance(ctx context.Context, address string) (uint64, error) {
	f.mu.Lock()
	f.balanceCalls++
	call := f.balanceCalls
	fn := f.balanceFn
	f.mu.Unlock()

	if fn == nil {
		return 0, nil
	}
	return fn(call)
}

func (f *fakeGateway) submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}

func testSubmitterConfig() config.SubmitterConfig {
	return config.SubmitterConfig{
		MaxRetries:          3,
		ConfirmationTimeout: 50 * time.Millisecond,
		ConfirmPollInterval: time.Millisecond,
		PollRetryDelay:      time.Millisecond,
		PollRetryLimit:      3,
		Concurrency:         1,
	}
}

func testBackoff() *BackoffPolicy {
	return NewBackoffPolicyWithSeed(config.BackoffConfig{
		BaseDelay:  time.Millisecond,
		Multiplier: 1.0,
		MaxDelay:   time.Millisecond,
		Jitter:     0,
	}, 1)
}

func testEngine(gw gateway.Gateway, cfg config.SubmitterConfig) *Engine {
	logger := logging.New(logging.Config{Level: logging.ErrorLevel, Output: io.Discard, ServiceName: "test"})
	return NewEngine(gw, testBackoff(), NopMetrics{}, logger, cfg)
}

func transportError() error {
	return errors.NewGatewayError(errors.GatewayErrTransport, "connection refused", nil)
}

func TestEngineConfirmsOnFirstAttempt(t *testing.T) {
	gw := &fakeGateway{}
	engine := testEngine(gw, testSubmitterConfig())
	job := NewJob([]byte("payload"), 3, 50*time.Millisecond)

	result := engine.Run(context.Background(), job)

	assert.Equal(t, OutcomeConfirmed, result.Outcome)
	assert.Equal(t, "fp-1", result.Fingerprint)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, gw.submitted())
	assert.Equal(t, OutcomeConfirmed, job.Outcome())
}

func TestEngineExhaustsRetryBudgetOnTransportErrors(t *testing.T) {
	gw := &fakeGateway{
		submitFn: func(call int) (string, error) { return "", transportError() },
	}
	maxRetries := 3
	engine := testEngine(gw, testSubmitterConfig())
	job := NewJob([]byte("payload"), maxRetries, 50*time.Millisecond)

	result := engine.Run(context.Background(), job)

	assert.Equal(t, OutcomeFatal, result.Outcome)
	assert.True(t, strings.HasPrefix(result.Reason, "retries exhausted"), "reason %q", result.Reason)
	assert.Equal(t, maxRetries+1, gw.submitted())
	assert.Equal(t, maxRetries+1, len(job.Attempts))
	assert.Equal(t, OutcomeFatal, job.Outcome())
}

func TestEngineZeroRetriesMeansSingleAttempt(t *testing.T) {
	gw := &fakeGateway{
		submitFn: func(call int) (string, error) { return "", transportError() },
	}
	engine := testEngine(gw, testSubmitterConfig())
	job := NewJob([]byte("payload"), 0, 50*time.Millisecond)

	result := engine.Run(context.Background(), job)

	assert.Equal(t, OutcomeFatal, result.Outcome)
	assert.Equal(t, 1, gw.submitted())
}

func TestEngineRejectionIsFatalWithoutRetry(t *testing.T) {
	gw := &fakeGateway{
		submitFn: func(call int) (string, error) {
			return "", errors.NewGatewayError(errors.GatewayErrInsufficientFunds, "insufficient funds", nil)
		},
	}
	engine := testEngine(gw, testSubmitterConfig())
	job := NewJob([]byte("payload"), 3, 50*time.Millisecond)

	result := engine.Run(context.Background(), job)

	assert.Equal(t, OutcomeFatal, result.Outcome)
	assert.Contains(t, result.Reason, "insufficient funds")
	assert.Equal(t, 1, gw.submitted())
}

func TestEngineTreatsDuplicateOnResubmitAsConfirmed(t *testing.T) {
	// First attempt lands but confirmation times out; the resubmission is
	// rejected as already processed, which is the confirmation.
	gw := &fakeGateway{
		submitFn: func(call int) (string, error) {
			if call == 1 {
				return "fp-1", nil
			}
			return "", errors.NewGatewayError(errors.GatewayErrAlreadyProcessed, "transaction already processed", nil)
		},
		statusFn: func(call int) (gateway.Status, error) {
			return gateway.Status{State: gateway.StatePending}, nil
		},
	}
	cfg := testSubmitterConfig()
	engine := testEngine(gw, cfg)
	job := NewJob([]byte("payload"), 3, 20*time.Millisecond)

	result := engine.Run(context.Background(), job)

	assert.Equal(t, OutcomeConfirmed, result.Outcome)
	assert.Equal(t, "fp-1", result.Fingerprint)
	assert.Equal(t, 2, gw.submitted())
}

func TestEngineRetriesAfterPollingFailures(t *testing.T) {
	// All polls for the first fingerprint fail; the attempt becomes retryable
	// and the second submission confirms normally.
	gw := &fakeGateway{
		statusFn: func(call int) (gateway.Status, error) {
			if call <= 3 {
				return gateway.Status{}, transportError()
			}
			return gateway.Status{State: gateway.StateConfirmed}, nil
		},
	}
	engine := testEngine(gw, testSubmitterConfig())
	job := NewJob([]byte("payload"), 3, 50*time.Millisecond)

	result := engine.Run(context.Background(), job)

	assert.Equal(t, OutcomeConfirmed, result.Outcome)
	assert.Equal(t, "fp-2", result.Fingerprint)
	assert.Equal(t, 2, gw.submitted())
	require.Len(t, job.Attempts, 2)
	assert.Equal(t, OutcomeRetryable, job.Attempts[0].Outcome)
	assert.Contains(t, job.Attempts[0].Reason, "confirmation polling failed")
}

func TestEngineFatalStatusReasonStopsJob(t *testing.T) {
	gw := &fakeGateway{
		statusFn: func(call int) (gateway.Status, error) {
			return gateway.Status{State: gateway.StateFailed, Reason: "insufficient balance"}, nil
		},
	}
	engine := testEngine(gw, testSubmitterConfig())
	job := NewJob([]byte("payload"), 3, 50*time.Millisecond)

	result := engine.Run(context.Background(), job)

	assert.Equal(t, OutcomeFatal, result.Outcome)
	assert.Equal(t, "insufficient balance", result.Reason)
	assert.Equal(t, 1, gw.submitted())
}

func TestEngineRetryableStatusReasonRetries(t *testing.T) {
	gw := &fakeGateway{
		statusFn: func(call int) (gateway.Status, error) {
			if call == 1 {
				return gateway.Status{State: gateway.StateFailed, Reason: "block reorg"}, nil
			}
			return gateway.Status{State: gateway.StateConfirmed}, nil
		},
	}
	engine := testEngine(gw, testSubmitterConfig())
	job := NewJob([]byte("payload"), 3, 50*time.Millisecond)

	result := engine.Run(context.Background(), job)

	assert.Equal(t, OutcomeConfirmed, result.Outcome)
	assert.Equal(t, 2, gw.submitted())
}

func TestEngineCancelledBeforeFirstSubmit(t *testing.T) {
	gw := &fakeGateway{}
	engine := testEngine(gw, testSubmitterConfig())
	job := NewJob([]byte("payload"), 3, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := engine.Run(ctx, job)

	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.Equal(t, 0, gw.submitted())
}

func TestEngineCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := &fakeGateway{
		submitFn: func(call int) (string, error) {
			cancel()
			return "", transportError()
		},
	}
	engine := testEngine(gw, testSubmitterConfig())
	job := NewJob([]byte("payload"), 3, 50*time.Millisecond)

	result := engine.Run(ctx, job)

	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.Equal(t, 1, gw.submitted())
}

func TestEngineConfirmationTimeoutIsRetryable(t *testing.T) {
	gw := &fakeGateway{
		statusFn: func(call int) (gateway.Status, error) {
			return gateway.Status{State: gateway.StatePending}, nil
		},
	}
	engine := testEngine(gw, testSubmitterConfig())
	job := NewJob([]byte("payload"), 1, 10*time.Millisecond)

	result := engine.Run(context.Background(), job)

	assert.Equal(t, OutcomeFatal, result.Outcome)
	assert.Contains(t, result.Reason, "retries exhausted")
	assert.Contains(t, result.Reason, "confirmation timed out")
	assert.Equal(t, 2, gw.submitted())
}
