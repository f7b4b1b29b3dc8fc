// internal/submitter/classifier.go
package submitter

import (
	"strings"

	"github.com/cmatc13/txpilot/pkg/errors"
)

// Classification buckets a submission or confirmation failure.
type Classification int

const (
	// ClassRetryable failures are transient; the attempt is repeated after backoff.
	ClassRetryable Classification = iota
	// ClassFatal failures terminate the job with no further retries.
	ClassFatal
	// ClassAlreadyConfirmed means the node has already processed this
	// transaction. This is a success, not an error: it happens when a
	// resubmission races a previous attempt that landed.
	ClassAlreadyConfirmed
)

func (c Classification) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassFatal:
		return "fatal"
	case ClassAlreadyConfirmed:
		return "already_confirmed"
	default:
		return "unknown"
	}
}

// fatalCodes are gateway codes for which a retry can never succeed.
var fatalCodes = map[string]bool{
	errors.GatewayErrInsufficientFunds:    true,
	errors.GatewayErrInvalidSignature:     true,
	errors.GatewayErrMalformedTransaction: true,
}

// retryableCodes are gateway codes for transient conditions.
var retryableCodes = map[string]bool{
	errors.GatewayErrTransport:       true,
	errors.GatewayErrRateLimited:     true,
	errors.GatewayErrNodeUnavailable: true,
}

// Classify maps a submission or confirmation error into a retry decision.
// Errors the classifier cannot identify default to retryable; the retry
// budget bounds how long an ambiguous failure can stall a job.
func Classify(err error) Classification {
	if err == nil {
		return ClassRetryable
	}

	switch code := errors.CodeOf(err); {
	case code == errors.GatewayErrAlreadyProcessed:
		return ClassAlreadyConfirmed
	case fatalCodes[code]:
		return ClassFatal
	case retryableCodes[code]:
		return ClassRetryable
	}

	return classifyMessage(err.Error())
}

// ClassifyStatusReason maps the failure reason reported by a status poll.
func ClassifyStatusReason(reason string) Classification {
	return classifyMessage(reason)
}

func classifyMessage(msg string) Classification {
	msg = strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "already processed"),
		strings.Contains(msg, "already known"),
		strings.Contains(msg, "duplicate"):
		return ClassAlreadyConfirmed
	case strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "insufficient balance"),
		strings.Contains(msg, "invalid signature"),
		strings.Contains(msg, "malformed"),
		strings.Contains(msg, "invalid transaction"):
		return ClassFatal
	default:
		return ClassRetryable
	}
}
