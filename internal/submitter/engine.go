// internal/submitter/engine.go
package submitter

import (
	"context"
	"time"

	"github.com/cmatc13/txpilot/internal/gateway"
	"github.com/cmatc13/txpilot/pkg/config"
	"github.com/cmatc13/txpilot/pkg/logging"
)

// reasonCancelled is the result reason recorded when a run is cancelled
// before a job reaches a terminal state.
const reasonCancelled = "cancelled"

// Engine drives a single transaction job through the
// submit -> confirm -> retry cycle until it reaches a terminal outcome.
//
// The state machine is:
//
//	Idle -> Submitting -> Confirming -> {Confirmed, Retryable, Fatal}
//	Retryable -> (backoff) -> Submitting, bounded by the job's retry budget.
type Engine struct {
	gateway gateway.Gateway
	backoff *BackoffPolicy
	metrics MetricsRecorder
	logger  *logging.Logger

	confirmPollInterval time.Duration
	pollRetryDelay      time.Duration
	pollRetryLimit      int
}

// NewEngine creates a submission engine.
func NewEngine(gw gateway.Gateway, backoff *BackoffPolicy, metrics MetricsRecorder, logger *logging.Logger, cfg config.SubmitterConfig) *Engine {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Engine{
		gateway:             gw,
		backoff:             backoff,
		metrics:             metrics,
		logger:              logger.Named("engine"),
		confirmPollInterval: cfg.ConfirmPollInterval,
		pollRetryDelay:      cfg.PollRetryDelay,
		pollRetryLimit:      cfg.PollRetryLimit,
	}
}

// Run executes the job to a terminal outcome and returns its result. The
// retry loop is an explicit loop over an attempt counter; a job makes at
// most MaxRetries+1 submit attempts. The job's attempts sequence is
// append-only and never shrinks.
func (e *Engine) Run(ctx context.Context, job *TransactionJob) JobResult {
	start := time.Now()

	e.metrics.RecordJobStarted()
	defer e.metrics.RecordJobFinished()

	for {
		attempt := job.beginAttempt()

		if ctx.Err() != nil {
			return e.finish(job, attempt, start, OutcomeCancelled, reasonCancelled)
		}

		outcome, reason := e.runAttempt(ctx, job, attempt)
		if outcome.Terminal() {
			return e.finish(job, attempt, start, outcome, reason)
		}

		// Retryable. The budget allows MaxRetries resubmissions after the
		// first attempt; when it is spent the failure becomes fatal.
		if attempt.AttemptNumber >= job.MaxRetries+1 {
			return e.finish(job, attempt, start, OutcomeFatal, "retries exhausted: "+reason)
		}

		attempt.Outcome = OutcomeRetryable
		attempt.Reason = reason
		e.metrics.RecordRetry()

		delay := e.backoff.Delay(attempt.AttemptNumber)
		e.logger.Debug("retrying transaction",
			"job_id", job.ID,
			"attempt", attempt.AttemptNumber,
			"reason", reason,
			"backoff", delay.String(),
		)

		if !sleepCtx(ctx, delay) {
			return e.finishCancelled(job, start)
		}
	}
}

// runAttempt performs one submit/confirm pass. It returns OutcomeRetryable
// with a reason when the attempt should be repeated, and a terminal outcome
// otherwise.
func (e *Engine) runAttempt(ctx context.Context, job *TransactionJob, attempt *TransactionAttempt) (Outcome, string) {
	// Submitting
	fingerprint, err := e.gateway.Submit(ctx, job.Payload)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeCancelled, reasonCancelled
		}

		switch Classify(err) {
		case ClassAlreadyConfirmed:
			// A previous attempt landed; the duplicate rejection is the
			// confirmation.
			e.metrics.RecordSubmitAttempt("already_processed")
			attempt.Fingerprint = job.Fingerprint()
			return OutcomeConfirmed, ""
		case ClassFatal:
			e.metrics.RecordSubmitAttempt("rejected")
			e.logger.Warn("transaction rejected", "job_id", job.ID, "attempt", attempt.AttemptNumber, "error", err.Error())
			return OutcomeFatal, err.Error()
		default:
			e.metrics.RecordSubmitAttempt("transport_error")
			e.logger.Debug("submit failed", "job_id", job.ID, "attempt", attempt.AttemptNumber, "error", err.Error())
			return OutcomeRetryable, err.Error()
		}
	}

	attempt.Fingerprint = fingerprint
	e.metrics.RecordSubmitAttempt("accepted")
	e.logger.Debug("transaction submitted", "job_id", job.ID, "attempt", attempt.AttemptNumber, "fingerprint", fingerprint)

	// Confirming
	return e.confirm(ctx, job, fingerprint)
}

// confirm polls the gateway for the transaction's status until it is
// confirmed, explicitly failed, or the confirmation timeout elapses.
// Transport errors during polling are retried on a short fixed delay up to
// pollRetryLimit consecutive failures, then the phase is treated as timed
// out. A timeout is ambiguous, so the attempt is retryable: the transaction
// may still land, which a later resubmission surfaces as "already processed"
// and the engine reports as Confirmed.
func (e *Engine) confirm(ctx context.Context, job *TransactionJob, fingerprint string) (Outcome, string) {
	deadline := time.Now().Add(job.ConfirmationTimeout)
	pollFailures := 0

	for {
		if time.Now().After(deadline) {
			return OutcomeRetryable, "confirmation timed out"
		}

		status, err := e.gateway.GetStatus(ctx, fingerprint)
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeCancelled, reasonCancelled
			}

			e.metrics.RecordConfirmationPoll("error")
			pollFailures++
			if pollFailures >= e.pollRetryLimit {
				return OutcomeRetryable, "confirmation polling failed: " + err.Error()
			}
			if !sleepCtx(ctx, e.pollRetryDelay) {
				return OutcomeCancelled, reasonCancelled
			}
			continue
		}
		pollFailures = 0

		switch status.State {
		case gateway.StateConfirmed:
			e.metrics.RecordConfirmationPoll("confirmed")
			return OutcomeConfirmed, ""
		case gateway.StateFailed:
			e.metrics.RecordConfirmationPoll("failed")
			switch ClassifyStatusReason(status.Reason) {
			case ClassAlreadyConfirmed:
				return OutcomeConfirmed, ""
			case ClassFatal:
				return OutcomeFatal, status.Reason
			default:
				return OutcomeRetryable, status.Reason
			}
		default:
			e.metrics.RecordConfirmationPoll("pending")
			if !sleepCtx(ctx, e.confirmPollInterval) {
				return OutcomeCancelled, reasonCancelled
			}
		}
	}
}

// finish records the terminal outcome on the attempt and builds the result.
func (e *Engine) finish(job *TransactionJob, attempt *TransactionAttempt, start time.Time, outcome Outcome, reason string) JobResult {
	attempt.Outcome = outcome
	attempt.Reason = reason
	return e.result(job, start, outcome, reason)
}

// finishCancelled ends a job cancelled between attempts. The last recorded
// attempt keeps its own outcome; only the job result reports the cancellation.
func (e *Engine) finishCancelled(job *TransactionJob, start time.Time) JobResult {
	return e.result(job, start, OutcomeCancelled, reasonCancelled)
}

func (e *Engine) result(job *TransactionJob, start time.Time, outcome Outcome, reason string) JobResult {
	latency := time.Since(start)
	e.metrics.RecordJobOutcome(string(outcome), len(job.Attempts), latency)

	switch outcome {
	case OutcomeConfirmed:
		e.logger.Info("transaction confirmed",
			"job_id", job.ID,
			"fingerprint", job.Fingerprint(),
			"attempts", len(job.Attempts),
			"latency_ms", latency.Milliseconds(),
		)
	case OutcomeCancelled:
		e.logger.Info("transaction cancelled", "job_id", job.ID, "attempts", len(job.Attempts))
	default:
		e.logger.Warn("transaction failed",
			"job_id", job.ID,
			"reason", reason,
			"attempts", len(job.Attempts),
			"latency_ms", latency.Milliseconds(),
		)
	}

	return JobResult{
		JobID:       job.ID,
		Fingerprint: job.Fingerprint(),
		Outcome:     outcome,
		Reason:      reason,
		Attempts:    len(job.Attempts),
		Latency:     latency,
	}
}

// sleepCtx sleeps for d unless the context is cancelled first. It returns
// false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
