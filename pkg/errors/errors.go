// pkg/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sprintf is a convenience function for fmt.Sprintf
func Sprintf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

// Standard errors provides a way to check error types
var (
	// Sentinel errors
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
	ErrTimeout      = errors.New("operation timed out")
	ErrCancelled    = errors.New("operation cancelled")
)

// Unwrap provides compatibility with the standard errors package
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Is provides compatibility with the standard errors package
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As provides compatibility with the standard errors package
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message
func New(message string) error {
	return errors.New(message)
}

// Error represents a domain error with additional context
type Error struct {
	// Original is the original error
	Original error
	// Domain is the domain of the error (e.g., "gateway", "submit", "archive")
	Domain string
	// Code is a machine-readable error code
	Code string
	// Message is a human-readable error message
	Message string
	// Operation is the operation that failed (e.g., "Submit", "GetStatus")
	Operation string
	// Fields contains additional context about the error
	Fields map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder

	// Format: [Domain.Operation] Code: Message: Original
	sb.WriteString("[")
	if e.Domain != "" {
		sb.WriteString(e.Domain)
		if e.Operation != "" {
			sb.WriteString(".")
			sb.WriteString(e.Operation)
		}
	} else if e.Operation != "" {
		sb.WriteString(e.Operation)
	}
	sb.WriteString("] ")

	if e.Code != "" {
		sb.WriteString("Code=")
		sb.WriteString(e.Code)
		sb.WriteString(": ")
	}

	if e.Message != "" {
		sb.WriteString(e.Message)
	}

	if e.Original != nil {
		if e.Message != "" {
			sb.WriteString(": ")
		}
		sb.WriteString(e.Original.Error())
	}

	return sb.String()
}

// Unwrap implements the errors.Unwrapper interface
func (e *Error) Unwrap() error {
	return e.Original
}

// Wrap wraps an error with a message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already a domain error, update it
	var domainErr *Error
	if errors.As(err, &domainErr) {
		// Create a new error to avoid modifying the original
		return &Error{
			Original:  domainErr.Original,
			Domain:    domainErr.Domain,
			Code:      domainErr.Code,
			Message:   message,
			Operation: domainErr.Operation,
			Fields:    domainErr.Fields,
		}
	}

	// Otherwise, create a new domain error
	return &Error{
		Original: err,
		Message:  message,
	}
}

// WrapWithDomain wraps an error with a domain
func WrapWithDomain(err error, domain string) error {
	if err == nil {
		return nil
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		return &Error{
			Original:  domainErr.Original,
			Domain:    domain,
			Code:      domainErr.Code,
			Message:   domainErr.Message,
			Operation: domainErr.Operation,
			Fields:    domainErr.Fields,
		}
	}

	return &Error{
		Original: err,
		Domain:   domain,
	}
}

// WrapWithOperation wraps an error with an operation
func WrapWithOperation(err error, operation string) error {
	if err == nil {
		return nil
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		return &Error{
			Original:  domainErr.Original,
			Domain:    domainErr.Domain,
			Code:      domainErr.Code,
			Message:   domainErr.Message,
			Operation: operation,
			Fields:    domainErr.Fields,
		}
	}

	return &Error{
		Original:  err,
		Operation: operation,
	}
}

// WrapWithCode wraps an error with a code
func WrapWithCode(err error, code string) error {
	if err == nil {
		return nil
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		return &Error{
			Original:  domainErr.Original,
			Domain:    domainErr.Domain,
			Code:      code,
			Message:   domainErr.Message,
			Operation: domainErr.Operation,
			Fields:    domainErr.Fields,
		}
	}

	return &Error{
		Original: err,
		Code:     code,
	}
}

// WrapWithField wraps an error with a field
func WrapWithField(err error, key string, value interface{}) error {
	if err == nil {
		return nil
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		newFields := make(map[string]interface{})
		for k, v := range domainErr.Fields {
			newFields[k] = v
		}
		newFields[key] = value

		return &Error{
			Original:  domainErr.Original,
			Domain:    domainErr.Domain,
			Code:      domainErr.Code,
			Message:   domainErr.Message,
			Operation: domainErr.Operation,
			Fields:    newFields,
		}
	}

	fields := make(map[string]interface{})
	fields[key] = value

	return &Error{
		Original: err,
		Fields:   fields,
	}
}

// CodeOf returns the machine-readable code of a domain error,
// or an empty string if the error carries none.
func CodeOf(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}
