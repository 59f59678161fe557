// Package fault defines the error categories a pipeline run can end with.
package fault

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locus/internal/resilience"
)

// Kind classifies a failure.
type Kind string

const (
	KindInternal            Kind = "internal"
	KindConfiguration       Kind = "configuration"
	KindTransientNetwork    Kind = "transient_network"
	KindLocationNotFound    Kind = "location_not_found"
	KindProvider            Kind = "provider"
	KindSchemaViolation     Kind = "schema_violation"
	KindMissingDependency   Kind = "missing_dependency"
	KindClarificationNeeded Kind = "clarification_needed"
	KindHook                Kind = "hook"
	KindCanceled            Kind = "canceled"
)

// Description returns a human-readable category name safe to show to end users.
func (k Kind) Description() string {
	switch k {
	case KindConfiguration:
		return "service configuration error"
	case KindTransientNetwork:
		return "external service temporarily unavailable"
	case KindLocationNotFound:
		return "location could not be found"
	case KindProvider:
		return "external service rejected the request"
	case KindSchemaViolation:
		return "analysis result was malformed"
	case KindMissingDependency:
		return "required analysis input was missing"
	case KindClarificationNeeded:
		return "more information is needed"
	case KindHook:
		return "stage check failed"
	case KindCanceled:
		return "analysis was canceled"
	default:
		return "internal error"
	}
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: eris.Errorf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configuration reports missing or invalid configuration, such as an absent credential.
func Configuration(op, format string, args ...any) *Error {
	return New(KindConfiguration, op, format, args...)
}

// LocationNotFound reports that geocoding produced zero candidates.
func LocationNotFound(op, location string) *Error {
	return New(KindLocationNotFound, op, "no geocode candidates for %q", location)
}

// Provider reports a non-transient error payload from an external service.
func Provider(op string, err error) *Error {
	return &Error{Kind: KindProvider, Op: op, Err: err}
}

// SchemaViolation reports reasoner output that does not satisfy its schema.
func SchemaViolation(op string, err error) *Error {
	return &Error{Kind: KindSchemaViolation, Op: op, Err: err}
}

// MissingDependency reports a required template placeholder with no state value.
func MissingDependency(op string, keys ...string) *Error {
	return New(KindMissingDependency, op, "missing state keys: %s", strings.Join(keys, ", "))
}

// KindOf classifies an arbitrary error. Explicit classification wins.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var ce *ClarificationError
	if errors.As(err, &ce) {
		return KindClarificationNeeded
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var ex *resilience.ExhaustedError
	var te *resilience.TransientError
	if errors.As(err, &ex) || errors.As(err, &te) {
		return KindTransientNetwork
	}
	// A bare deadline here is the run deadline; per-attempt timeouts arrive
	// wrapped as TransientError.
	if errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	if resilience.IsTransient(err) {
		return KindTransientNetwork
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
