package submitter

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmatc13/txpilot/internal/gateway"
	"github.com/cmatc13/txpilot/pkg/config"
	"github.com/cmatc13/txpilot/pkg/errors"
	"github.com/cmatc13/txpilot/pkg/logging"
)

type memoryArchive struct {
	mu   sync.Mutex
	runs []*RunSummary
}

func (a *memoryArchive) SaveRun(ctx context.Context, summary *RunSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, summary)
	return nil
}

type memoryPublisher struct {
	mu      sync.Mutex
	results []JobResult
}

func (p *memoryPublisher) Publish(ctx context.Context, result JobResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
	return nil
}

func testRunner(gw gateway.Gateway, cfg config.SubmitterConfig, archive RunArchiver, publisher ResultPublisher) *Runner {
	logger := logging.New(logging.Config{Level: logging.ErrorLevel, Output: io.Discard, ServiceName: "test"})
	engine := NewEngine(gw, testBackoff(), NopMetrics{}, logger, cfg)
	return NewRunner(engine, gw, NopMetrics{}, logger, cfg, "wallet-addr", archive, publisher)
}

func makeJobs(n, maxRetries int) []*TransactionJob {
	jobs := make([]*TransactionJob, n)
	for i := range jobs {
		jobs[i] = NewJob([]byte{byte(i)}, maxRetries, 50*time.Millisecond)
	}
	return jobs
}

func TestRunnerIsolatesJobFailures(t *testing.T) {
	gw := &fakeGateway{
		submitFn: func(call int) (string, error) {
			if call == 2 {
				return "", errors.NewGatewayError(errors.GatewayErrInvalidSignature, "invalid signature", nil)
			}
			return "fp", nil
		},
	}
	cfg := testSubmitterConfig()
	runner := testRunner(gw, cfg, nil, nil)

	summary := runner.Run(context.Background(), makeJobs(3, 0))

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Cancelled)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, OutcomeConfirmed, summary.Results[0].Outcome)
	assert.Equal(t, OutcomeFatal, summary.Results[1].Outcome)
	assert.Equal(t, OutcomeConfirmed, summary.Results[2].Outcome)
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	gw := &fakeGateway{
		submitFn: func(call int) (string, error) {
			time.Sleep(10 * time.Millisecond)
			return "fp", nil
		},
	}
	cfg := testSubmitterConfig()
	cfg.Concurrency = 2
	runner := testRunner(gw, cfg, nil, nil)

	summary := runner.Run(context.Background(), makeJobs(5, 0))

	assert.Equal(t, 5, summary.Succeeded)
	assert.LessOrEqual(t, gw.maxInFlight.Load(), int32(2))
}

func TestRunnerCancellationSkipsUnstartedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := &fakeGateway{
		submitFn: func(call int) (string, error) {
			cancel()
			return "", transportError()
		},
	}
	cfg := testSubmitterConfig()
	cfg.InterJobDelay = time.Millisecond
	runner := testRunner(gw, cfg, nil, nil)

	summary := runner.Run(ctx, makeJobs(3, 3))

	assert.Equal(t, 3, summary.Cancelled)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	// Only the first job ever reached the gateway.
	assert.Equal(t, 1, gw.submitted())
	for _, result := range summary.Results {
		assert.Equal(t, OutcomeCancelled, result.Outcome)
	}
}

func TestRunnerRecordsBalances(t *testing.T) {
	gw := &fakeGateway{
		balanceFn: func(call int) (uint64, error) {
			if call == 1 {
				return 1000, nil
			}
			return 900, nil
		},
	}
	runner := testRunner(gw, testSubmitterConfig(), nil, nil)

	summary := runner.Run(context.Background(), makeJobs(1, 0))

	assert.Equal(t, uint64(1000), summary.BalanceBefore)
	assert.Equal(t, uint64(900), summary.BalanceAfter)
}

func TestRunnerArchivesAndPublishes(t *testing.T) {
	gw := &fakeGateway{}
	arch := &memoryArchive{}
	pub := &memoryPublisher{}
	runner := testRunner(gw, testSubmitterConfig(), arch, pub)

	summary := runner.Run(context.Background(), makeJobs(2, 0))

	require.Len(t, arch.runs, 1)
	assert.Equal(t, summary.RunID, arch.runs[0].RunID)
	require.Len(t, pub.results, 2)
	assert.Equal(t, OutcomeConfirmed, pub.results[0].Outcome)
}

func TestRunnerEmptyBatch(t *testing.T) {
	gw := &fakeGateway{}
	runner := testRunner(gw, testSubmitterConfig(), nil, nil)

	summary := runner.Run(context.Background(), nil)

	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, float64(1), summary.SuccessRatio())
}

func TestSuccessRatio(t *testing.T) {
	s := &RunSummary{Total: 4, Succeeded: 3}
	assert.InDelta(t, 0.75, s.SuccessRatio(), 1e-9)
}
