// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrRetriesExhausted is returned when every attempt failed with a
// transient error. The last cause is wrapped alongside it.
var ErrRetriesExhausted = errors.New("retries exhausted")

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Transient reports whether the status is worth retrying: rate limiting
// and server-side failures.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// TransientError marks an error as retryable.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// Transient wraps err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{err: err}
}

// FatalError marks an error that must not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// Fatal wraps err as non-retryable. A nil err stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{err: err}
}

// IsTransient classifies err for the retry loops. Explicit wrappers win;
// otherwise timeouts, network errors and transient status codes are
// retryable. Context cancellation of the caller is never retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return false
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
