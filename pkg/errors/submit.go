// pkg/errors/submit.go
package errors

// Submission error codes
const (
	// SubmitErrRejected indicates the node rejected the transaction outright
	SubmitErrRejected = "SUBMIT_REJECTED"
	// SubmitErrAmbiguousOutcome indicates confirmation was not observed within the timeout
	SubmitErrAmbiguousOutcome = "SUBMIT_AMBIGUOUS_OUTCOME"
	// SubmitErrRetryBudgetExhausted indicates all retry attempts were used up
	SubmitErrRetryBudgetExhausted = "SUBMIT_RETRY_BUDGET_EXHAUSTED"
	// SubmitErrCancelled indicates the run was cancelled before the job reached a terminal state
	SubmitErrCancelled = "SUBMIT_CANCELLED"
)

// Submit domain name
const SubmitDomain = "submit"

// Submit operations
const (
	OpRunJob     = "RunJob"
	OpConfirm    = "Confirm"
	OpRunBatch   = "RunBatch"
	OpBuildJob   = "BuildJob"
	OpRecordRun  = "RecordRun"
	OpPublishRun = "PublishRun"
)

// NewSubmitError creates a new submission error
func NewSubmitError(code string, message string, err error) error {
	return &Error{
		Domain:   SubmitDomain,
		Code:     code,
		Message:  message,
		Original: err,
	}
}

// SubmitWrap wraps an error with submit domain
func SubmitWrap(err error, operation string, message string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Domain:    SubmitDomain,
		Operation: operation,
		Message:   message,
		Original:  err,
	}
}

// IsSubmitError checks if an error is a submission error with the given code
func IsSubmitError(err error, code string) bool {
	var domainErr *Error
	if As(err, &domainErr) {
		return domainErr.Domain == SubmitDomain && domainErr.Code == code
	}
	return false
}
