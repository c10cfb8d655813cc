package scraper

import (
	"context"
	"errors"
	"net"
)

// ErrorType classifies a failure by the subsystem that produced it.
type ErrorType string

// Error types recorded in error logs.
const (
	ErrorTypeBrowser        ErrorType = "BROWSER"
	ErrorTypeDatabase       ErrorType = "DATABASE"
	ErrorTypeRateLimit      ErrorType = "RATE_LIMIT"
	ErrorTypeAuthentication ErrorType = "AUTHENTICATION"
	ErrorTypeValidation     ErrorType = "VALIDATION"
	ErrorTypeNetwork        ErrorType = "NETWORK"
	ErrorTypeContent        ErrorType = "CONTENT"
	ErrorTypeUnknown        ErrorType = "UNKNOWN"
)

// ErrorSeverity ranks an error's impact on the running job.
type ErrorSeverity string

// Severity levels. Critical errors force the owning job to fail.
const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

var severityByType = map[ErrorType]ErrorSeverity{
	ErrorTypeBrowser:        SeverityHigh,
	ErrorTypeDatabase:       SeverityCritical,
	ErrorTypeRateLimit:      SeverityMedium,
	ErrorTypeAuthentication: SeverityHigh,
	ErrorTypeValidation:     SeverityLow,
	ErrorTypeNetwork:        SeverityMedium,
	ErrorTypeContent:        SeverityLow,
	ErrorTypeUnknown:        SeverityHigh,
}

// SeverityFor returns the fixed severity assigned to an error type.
func SeverityFor(t ErrorType) ErrorSeverity {
	if s, ok := severityByType[t]; ok {
		return s
	}
	return SeverityHigh
}

// ScrapeError is a failure carrying its own classification. Subsystems wrap
// their errors in one so the job layer records the right type.
type ScrapeError struct {
	Type ErrorType
	Msg  string
	Err  error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// NewScrapeError builds a classified error wrapping an underlying cause.
func NewScrapeError(t ErrorType, msg string, err error) *ScrapeError {
	return &ScrapeError{Type: t, Msg: msg, Err: err}
}

// ClassifyError maps an arbitrary error to an error type. A *ScrapeError keeps
// its own type; context and net failures classify as NETWORK; anything else is
// UNKNOWN.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Type
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTypeNetwork
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ErrorTypeNetwork
	}
	return ErrorTypeUnknown
}

// RecoveryActions returns operator guidance for an error type. Browser errors
// carry the most specific advice because they are the most common transient
// failure in rendering pipelines.
func RecoveryActions(t ErrorType) string {
	switch t {
	case ErrorTypeBrowser:
		return "1. Increase the timeout value\n" +
			"2. Check if the page is loading too slowly\n" +
			"3. Verify if the selector exists on the page\n" +
			"4. Consider implementing a retry mechanism"
	case ErrorTypeNetwork:
		return "1. Verify network connectivity\n" +
			"2. Check DNS resolution for the target host\n" +
			"3. Retry with exponential backoff"
	case ErrorTypeRateLimit:
		return "1. Lower the per-domain request limit\n" +
			"2. Wait for the sliding window to clear\n" +
			"3. Check whether the site has tightened its limits"
	case ErrorTypeDatabase:
		return "1. Check database connectivity\n" +
			"2. Verify the schema matches the expected version\n" +
			"3. Inspect connection pool saturation"
	default:
		return "No specific recovery actions available for this error type."
	}
}
