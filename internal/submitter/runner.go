package submitter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cmatc13/txpilot/internal/gateway"
	"github.com/cmatc13/txpilot/pkg/config"
	"github.com/cmatc13/txpilot/pkg/logging"
)

// RunArchiver persists finished run summaries.
type RunArchiver interface {
	SaveRun(ctx context.Context, summary *RunSummary) error
}

// ResultPublisher emits terminal job results to downstream consumers.
type ResultPublisher interface {
	Publish(ctx context.Context, result JobResult) error
}

// Runner executes a batch of transaction jobs with bounded concurrency.
// Jobs are isolated from each other: one job's fatal failure never stops
// the rest of the batch.
type Runner struct {
	engine  *Engine
	gateway gateway.Gateway
	metrics MetricsRecorder
	logger  *logging.Logger

	concurrency   int
	interJobDelay time.Duration
	walletAddress string

	archive   RunArchiver
	publisher ResultPublisher
}

// NewRunner creates a batch runner. The archive and publisher are optional;
// pass nil to skip persistence or publishing.
func NewRunner(engine *Engine, gw gateway.Gateway, metrics MetricsRecorder, logger *logging.Logger, cfg config.SubmitterConfig, walletAddress string, archive RunArchiver, publisher ResultPublisher) *Runner {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		engine:        engine,
		gateway:       gw,
		metrics:       metrics,
		logger:        logger.Named("runner"),
		concurrency:   concurrency,
		interJobDelay: cfg.InterJobDelay,
		walletAddress: walletAddress,
		archive:       archive,
		publisher:     publisher,
	}
}

// Run drives every job to a terminal outcome and returns the aggregated
// summary. When the context is cancelled, jobs that have not started are
// reported Cancelled without touching the gateway; jobs already in flight
// observe the cancellation through their own context checks.
func (r *Runner) Run(ctx context.Context, jobs []*TransactionJob) *RunSummary {
	summary := &RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Total:     len(jobs),
		Results:   make([]JobResult, len(jobs)),
	}

	summary.BalanceBefore = r.fetchBalance(ctx)

	r.logger.Info("starting run",
		"run_id", summary.RunID,
		"jobs", len(jobs),
		"concurrency", r.concurrency,
		"balance_before", summary.BalanceBefore,
	)

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	for i, job := range jobs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			summary.Results[i] = cancelledResult(job)
			continue
		}

		// The select may pick the semaphore even when the context is already
		// cancelled; a job must never start after cancellation.
		if ctx.Err() != nil {
			<-sem
			summary.Results[i] = cancelledResult(job)
			continue
		}

		wg.Add(1)
		go func(i int, job *TransactionJob) {
			defer wg.Done()
			defer func() { <-sem }()
			summary.Results[i] = r.engine.Run(ctx, job)
		}(i, job)

		// Pace sequential submissions so the node is not hammered.
		if r.concurrency == 1 && i < len(jobs)-1 {
			if !sleepCtx(ctx, r.interJobDelay) {
				continue
			}
		}
	}

	wg.Wait()

	summary.FinishedAt = time.Now()
	summary.BalanceAfter = r.fetchBalance(context.WithoutCancel(ctx))

	for _, result := range summary.Results {
		switch result.Outcome {
		case OutcomeConfirmed:
			summary.Succeeded++
			summary.Latencies = append(summary.Latencies, result.Latency)
		case OutcomeCancelled:
			summary.Cancelled++
		default:
			summary.Failed++
		}
	}

	r.logger.Info("run finished",
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String(),
		"balance_after", summary.BalanceAfter,
	)

	r.recordRun(context.WithoutCancel(ctx), summary)
	return summary
}

// fetchBalance reads the wallet balance for the run bookkeeping. Failures are
// logged and reported as zero; the run itself does not depend on them.
func (r *Runner) fetchBalance(ctx context.Context) uint64 {
	if r.walletAddress == "" {
		return 0
	}

	balance, err := r.gateway.GetBalance(ctx, r.walletAddress)
	if err != nil {
		r.logger.Warn("failed to fetch wallet balance", "address", r.walletAddress, "error", err.Error())
		return 0
	}

	r.metrics.RecordWalletBalance(float64(balance))
	return balance
}

// recordRun archives the summary and publishes the terminal results, both
// best effort.
func (r *Runner) recordRun(ctx context.Context, summary *RunSummary) {
	if r.archive != nil {
		if err := r.archive.SaveRun(ctx, summary); err != nil {
			r.logger.Warn("failed to archive run", "run_id", summary.RunID, "error", err.Error())
		}
	}

	if r.publisher != nil {
		for _, result := range summary.Results {
			if err := r.publisher.Publish(ctx, result); err != nil {
				r.logger.Warn("failed to publish result", "job_id", result.JobID, "error", err.Error())
			}
		}
	}
}

// cancelledResult reports a job that never started because the run was
// cancelled first.
func cancelledResult(job *TransactionJob) JobResult {
	return JobResult{
		JobID:   job.ID,
		Outcome: OutcomeCancelled,
		Reason:  reasonCancelled,
	}
}
