// Package submitter drives signed transactions from submission to a terminal
// outcome: it submits payloads through a gateway, polls for confirmation,
// classifies failures and retries retryable ones with bounded exponential
// backoff.
package submitter

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the state of a transaction attempt or job.
type Outcome string

const (
	// OutcomePending means the attempt has not reached a terminal state yet.
	OutcomePending Outcome = "PENDING"
	// OutcomeConfirmed means the ledger node finalized the transaction.
	OutcomeConfirmed Outcome = "CONFIRMED"
	// OutcomeRetryable means the attempt failed in a way worth retrying.
	OutcomeRetryable Outcome = "RETRYABLE"
	// OutcomeFatal means no further retry will be attempted.
	OutcomeFatal Outcome = "FATAL"
	// OutcomeCancelled means the run was cancelled before the job finished.
	OutcomeCancelled Outcome = "CANCELLED"
)

// outcomeTransitions lists the legal transitions out of each state.
var outcomeTransitions = map[Outcome][]Outcome{
	OutcomePending: {OutcomeConfirmed, OutcomeRetryable, OutcomeFatal, OutcomeCancelled},
}

// CanTransitionTo reports whether moving from o to target is legal.
func (o Outcome) CanTransitionTo(target Outcome) bool {
	for _, allowed := range outcomeTransitions[o] {
		if target == allowed {
			return true
		}
	}
	return false
}

// Terminal reports whether the outcome ends a job.
func (o Outcome) Terminal() bool {
	return o == OutcomeConfirmed || o == OutcomeFatal || o == OutcomeCancelled
}

// TransactionAttempt records one pass through the submit/confirm cycle.
type TransactionAttempt struct {
	// Fingerprint is assigned by the node once the submit is acknowledged.
	// It may differ between attempts when the payload is re-signed.
	Fingerprint   string    `json:"fingerprint,omitempty"`
	AttemptNumber int       `json:"attempt_number"`
	StartedAt     time.Time `json:"started_at"`
	Outcome       Outcome   `json:"outcome"`
	Reason        string    `json:"reason,omitempty"`
}

// TransactionJob is one transaction's submission lifecycle. A job is owned by
// a single engine invocation; its attempts sequence is append-only.
type TransactionJob struct {
	ID                  string               `json:"id"`
	Payload             []byte               `json:"payload"`
	MaxRetries          int                  `json:"max_retries"`
	ConfirmationTimeout time.Duration        `json:"confirmation_timeout"`
	Attempts            []TransactionAttempt `json:"attempts"`
}

// NewJob creates a job for an opaque signed payload.
func NewJob(payload []byte, maxRetries int, confirmationTimeout time.Duration) *TransactionJob {
	return &TransactionJob{
		ID:                  uuid.New().String(),
		Payload:             payload,
		MaxRetries:          maxRetries,
		ConfirmationTimeout: confirmationTimeout,
	}
}

// beginAttempt appends a fresh pending attempt and returns it. Attempt
// numbers increase strictly by one.
func (j *TransactionJob) beginAttempt() *TransactionAttempt {
	j.Attempts = append(j.Attempts, TransactionAttempt{
		AttemptNumber: len(j.Attempts) + 1,
		StartedAt:     time.Now(),
		Outcome:       OutcomePending,
	})
	return &j.Attempts[len(j.Attempts)-1]
}

// CurrentAttempt returns the most recent attempt, or nil before the first submit.
func (j *TransactionJob) CurrentAttempt() *TransactionAttempt {
	if len(j.Attempts) == 0 {
		return nil
	}
	return &j.Attempts[len(j.Attempts)-1]
}

// Outcome returns the job's outcome as determined by its last attempt.
func (j *TransactionJob) Outcome() Outcome {
	attempt := j.CurrentAttempt()
	if attempt == nil {
		return OutcomePending
	}
	return attempt.Outcome
}

// Fingerprint returns the most recent fingerprint assigned to the job, if any.
func (j *TransactionJob) Fingerprint() string {
	for i := len(j.Attempts) - 1; i >= 0; i-- {
		if j.Attempts[i].Fingerprint != "" {
			return j.Attempts[i].Fingerprint
		}
	}
	return ""
}

// JobResult is the terminal report for one job.
type JobResult struct {
	JobID       string        `json:"job_id"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Outcome     Outcome       `json:"outcome"`
	Reason      string        `json:"reason,omitempty"`
	Attempts    int           `json:"attempts"`
	Latency     time.Duration `json:"latency"`
}

// RunSummary aggregates the outcomes of one batch run.
type RunSummary struct {
	RunID         string          `json:"run_id"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Total         int             `json:"total"`
	Succeeded     int             `json:"succeeded"`
	Failed        int             `json:"failed"`
	Cancelled     int             `json:"cancelled"`
	BalanceBefore uint64          `json:"balance_before"`
	BalanceAfter  uint64          `json:"balance_after"`
	Results       []JobResult     `json:"results"`
	Latencies     []time.Duration `json:"latencies"`
}

// SuccessRatio returns confirmed jobs as a fraction of the total.
func (s *RunSummary) SuccessRatio() float64 {
	if s.Total == 0 {
		return 1
	}
	return float64(s.Succeeded) / float64(s.Total)
}

// MetricsRecorder receives engine and runner instrumentation. Implementations
// must tolerate concurrent calls.
type MetricsRecorder interface {
	RecordSubmitAttempt(result string)
	RecordRetry()
	RecordConfirmationPoll(result string)
	RecordJobOutcome(outcome string, attempts int, latency time.Duration)
	RecordJobStarted()
	RecordJobFinished()
	RecordWalletBalance(balance float64)
}

// NopMetrics is a MetricsRecorder that discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordSubmitAttempt(string)                  {}
func (NopMetrics) RecordRetry()                                {}
func (NopMetrics) RecordConfirmationPoll(string)               {}
func (NopMetrics) RecordJobOutcome(string, int, time.Duration) {}
func (NopMetrics) RecordJobStarted()                           {}
func (NopMetrics) RecordJobFinished()                          {}
func (NopMetrics) RecordWalletBalance(float64)                 {}
