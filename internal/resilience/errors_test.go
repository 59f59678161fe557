package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("server overloaded"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	wrapped := fmt.Errorf("places: nearby search: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	err := errors.New("REQUEST_DENIED: the provided API key is invalid")
	if IsTransient(err) {
		t.Error("provider rejection should not be transient")
	}
}

func TestIsTransient_ConnectionErrors(t *testing.T) {
	for _, errno := range []error{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		err := fmt.Errorf("dial tcp: %w", errno)
		if !IsTransient(err) {
			t.Errorf("%v should be transient", errno)
		}
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_AttemptDeadline(t *testing.T) {
	if !IsTransient(fmt.Errorf("reasoner: %w", context.DeadlineExceeded)) {
		t.Error("deadline exceeded should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	patterns := []string{
		"connection reset by peer",
		"broken pipe",
		"TLS handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range patterns {
		err := errors.New(p)
		if !IsTransient(err) {
			t.Errorf("expected %q to be transient", p)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	transient := []int{408, 429, 500, 502, 503, 504}
	for _, code := range transient {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to be transient", code)
		}
	}

	permanent := []int{200, 400, 401, 403, 404, 422}
	for _, code := range permanent {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to NOT be transient", code)
		}
	}
}

func TestTransientError_UnwrapAndMessage(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 503)

	if !errors.Is(te, inner) {
		t.Error("TransientError.Unwrap should return the inner error")
	}
	if got, want := te.Error(), "transient (status 503): root cause"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got, want := NewTransientError(inner, 0).Error(), "transient: root cause"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestExhaustedError_Unwrap(t *testing.T) {
	inner := NewTransientError(errors.New("overloaded"), 503)
	ex := &ExhaustedError{Attempts: 5, Err: inner}

	var te *TransientError
	if !errors.As(ex, &te) || te.StatusCode != 503 {
		t.Error("ExhaustedError should expose the last transient error")
	}
	if got, want := ex.Error(), "gave up after 5 attempts: transient (status 503): overloaded"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
