package resilience

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("fixture id missing from payload"), false},
		{"decode failure", errors.New("decoding matches response: unexpected token"), false},
		{"tagged transient", NewTransientError(errors.New("feed overloaded"), http.StatusServiceUnavailable), true},
		{"wrapped transient", fmt.Errorf("fetch fixtures: %w", NewTransientError(errors.New("throttled"), http.StatusTooManyRequests)), true},
		{"tagged fatal", NewFatalError(errors.New("token rejected")), false},
		{"fatal wrapping transient", NewFatalError(fmt.Errorf("auth: %w", NewTransientError(errors.New("flaky"), http.StatusServiceUnavailable))), false},
		{"connection reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"broken pipe errno", fmt.Errorf("write: %w", syscall.EPIPE), true},
		{"dns timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"dns no such host", &net.DNSError{Err: "no such host", Name: "api.football-data.org"}, true},
		{"truncated body", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), true},
		{"idle connection closed", errors.New("http: server closed idle connection"), true},
		{"tls handshake", errors.New("net/http: TLS handshake timeout"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(nil) {
		t.Error("nil should not be fatal")
	}
	if IsFatal(errors.New("plain error")) {
		t.Error("plain error should not be fatal")
	}
	if !IsFatal(fmt.Errorf("scan aborted: %w", NewFatalError(errors.New("api token invalid")))) {
		t.Error("expected wrapped FatalError to be fatal")
	}
}

func TestRetryAfterHint(t *testing.T) {
	err := NewRateLimitError(errors.New("too many requests"), 12*time.Second)
	wrapped := fmt.Errorf("fetch fixtures: %w", err)

	hint, ok := RetryAfterHint(wrapped)
	if !ok {
		t.Fatal("expected a retry-after hint")
	}
	if hint != 12*time.Second {
		t.Errorf("expected 12s hint, got %v", hint)
	}

	if _, ok := RetryAfterHint(NewTransientError(errors.New("overloaded"), http.StatusServiceUnavailable)); ok {
		t.Error("transient error without RetryAfter should not hint")
	}
	if _, ok := RetryAfterHint(errors.New("plain")); ok {
		t.Error("plain error should not hint")
	}
}

func TestHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
		fatal     bool
	}{
		{http.StatusOK, false, false},
		{http.StatusCreated, false, false},
		{http.StatusBadRequest, false, false},
		{http.StatusUnauthorized, false, true},
		{http.StatusForbidden, false, true},
		{http.StatusNotFound, false, false},
		{http.StatusRequestTimeout, true, false},
		{http.StatusConflict, false, false},
		{http.StatusUnprocessableEntity, false, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusInternalServerError, true, false},
		{http.StatusNotImplemented, false, false},
		{http.StatusBadGateway, true, false},
		{http.StatusServiceUnavailable, true, false},
		{http.StatusGatewayTimeout, true, false},
	}
	for _, tt := range tests {
		if got := IsTransientHTTPStatus(tt.code); got != tt.transient {
			t.Errorf("IsTransientHTTPStatus(%d) = %v, want %v", tt.code, got, tt.transient)
		}
		if got := IsFatalHTTPStatus(tt.code); got != tt.fatal {
			t.Errorf("IsFatalHTTPStatus(%d) = %v, want %v", tt.code, got, tt.fatal)
		}
	}
}

func TestErrorWrappers_PreserveCause(t *testing.T) {
	cause := errors.New("root cause")

	te := NewTransientError(cause, http.StatusBadGateway)
	if !errors.Is(te, cause) {
		t.Error("TransientError should unwrap to its cause")
	}
	if te.Error() != cause.Error() {
		t.Errorf("expected message %q, got %q", cause.Error(), te.Error())
	}
	if te.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", te.StatusCode)
	}

	fe := NewFatalError(cause)
	if !errors.Is(fe, cause) {
		t.Error("FatalError should unwrap to its cause")
	}
	if fe.Error() != cause.Error() {
		t.Errorf("expected message %q, got %q", cause.Error(), fe.Error())
	}
}

func TestNewRateLimitError_CarriesStatusAndDelay(t *testing.T) {
	err := NewRateLimitError(errors.New("slow down"), 30*time.Second)

	if err.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", err.StatusCode)
	}
	if err.RetryAfter != 30*time.Second {
		t.Errorf("expected 30s RetryAfter, got %v", err.RetryAfter)
	}
	if !IsTransient(err) {
		t.Error("rate limit errors must be transient")
	}
}
