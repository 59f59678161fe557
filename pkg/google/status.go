package google

import (
	"fmt"

	"github.com/sells-group/locus/internal/resilience"
)

// StatusError is a non-retryable error payload from a Maps Platform API,
// e.g. REQUEST_DENIED or INVALID_REQUEST. Message is the provider's text.
type StatusError struct {
	Op      string
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("google: %s: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("google: %s: %s: %s", e.Op, e.Status, e.Message)
}

// CheckStatus maps a Maps Platform response status to an error. OK and
// ZERO_RESULTS succeed; quota and unknown errors are transient.
func CheckStatus(op, status, message string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return resilience.NewTransientError(&StatusError{Op: op, Status: status, Message: message}, 0)
	default:
		return &StatusError{Op: op, Status: status, Message: message}
	}
}
