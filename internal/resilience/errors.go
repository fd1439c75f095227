package resilience

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// TransientError wraps a failure that is safe to retry: a rate limit, a 5xx
// response, or a dropped connection. RetryAfter carries the delay the
// upstream asked for, when it sent one.
type TransientError struct {
	Err        error
	StatusCode int
	RetryAfter time.Duration
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError tags an error as retryable, with an optional HTTP status.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// NewRateLimitError tags a 429 together with the server-requested delay.
func NewRateLimitError(err error, retryAfter time.Duration) *TransientError {
	return &TransientError{
		Err:        err,
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}

// FatalError wraps a failure no retry can fix: rejected credentials, a
// malformed response contract, a missing model artifact. Loops that see one
// must stop instead of backing off.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// NewFatalError marks an error as non-retryable.
func NewFatalError(err error) *FatalError {
	return &FatalError{Err: err}
}

// IsFatal reports whether the chain contains a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// transientSyscalls are connection-level failures worth retrying.
var transientSyscalls = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.EPIPE,
}

// transientFragments matches transport failures that only surface as opaque
// strings out of net/http.
var transientFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"tls handshake timeout",
	"server closed idle connection",
	"transport connection broken",
	"i/o timeout",
	"no such host",
	"temporary failure in name resolution",
}

// IsTransient reports whether the error is worth retrying: a tagged
// TransientError anywhere in the chain, or a recognizable network-level
// failure. A FatalError anywhere in the chain wins over every transient
// signal.
func IsTransient(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	for _, sysErr := range transientSyscalls {
		if errors.Is(err, sysErr) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// RetryAfterHint returns the server-requested delay carried in the error
// chain, if any. Schedulers use it as a floor for their next wait.
func RetryAfterHint(err error) (time.Duration, bool) {
	var te *TransientError
	if errors.As(err, &te) && te.RetryAfter > 0 {
		return te.RetryAfter, true
	}
	return 0, false
}

// IsTransientHTTPStatus reports whether a response status is worth retrying:
// the two retryable 4xx codes plus the upstream 5xx family, excluding 501.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsFatalHTTPStatus reports credential and permission failures that retrying
// cannot fix.
func IsFatalHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
}
