// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retry/backoff wrapper shared by every
// outbound call: source adapters and the text-generation client.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryBaseDelay is the base of the exponential backoff applied to HTTP
// 429 responses: 2^attempt * RetryBaseDelay. Tests override it to avoid
// real sleeps.
var RetryBaseDelay = 1 * time.Second

// TransientDelay is the fixed pause before retrying a timeout, a network
// error or a 5xx response.
var TransientDelay = 1 * time.Second

// DefaultMaxAttempts is used when callers pass a non-positive attempt budget.
const DefaultMaxAttempts = 3

const errorBodyLimit = 512

// DoWithRetry executes req with at most maxAttempts attempts.
//
// A 2xx response is returned as-is and the caller must close its body.
// HTTP 429 sleeps 2^attempt * RetryBaseDelay before the next attempt;
// timeouts, network errors and 5xx responses sleep TransientDelay. Any other
// status is returned immediately as a *StatusError without retrying. When
// the budget is spent the error wraps ErrRetriesExhausted and the last
// cause. A cancelled ctx aborts both requests and backoff waits.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxAttempts int) (*http.Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if client == nil {
		client = http.DefaultClient
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffFor(lastErr, attempt-1)
			zap.L().Debug("retrying request",
				zap.String("url", req.URL.Redacted()),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay),
				zap.Error(lastErr))
			if err := wait(ctx, delay); err != nil {
				return nil, err
			}
		}

		attemptReq, err := cloneRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !IsTransient(err) {
				return nil, err
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		statusErr := &StatusError{Code: resp.StatusCode, Body: readErrorBody(resp)}
		if !statusErr.Transient() {
			return nil, statusErr
		}
		lastErr = statusErr
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, lastErr)
}

// Retry runs fn with at most maxAttempts attempts, retrying only errors
// that IsTransient accepts. It serves calls that are not plain HTTP
// requests, such as SDK-based text generation.
func Retry(ctx context.Context, maxAttempts int, fn func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, backoffFor(lastErr, attempt-1)); err != nil {
				return err
			}
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, lastErr)
}

// backoffFor picks the pause after a failed attempt (0-based).
func backoffFor(err error, attempt int) time.Duration {
	var status *StatusError
	if errors.As(err, &status) && status.Code == http.StatusTooManyRequests {
		return time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	}
	return TransientDelay
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cloneRequest binds req to ctx and rewinds its body so POST requests can
// be replayed.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, fmt.Errorf("request body of %s cannot be replayed", req.URL.Redacted())
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		r.Body = body
	}
	return r, nil
}

// readErrorBody drains and closes a failed response, keeping a short
// prefix of the body for diagnostics.
func readErrorBody(resp *http.Response) string {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	io.Copy(io.Discard, resp.Body)
	return string(data)
}
