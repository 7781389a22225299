package httputil

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// MaxWait caps a single pause between attempts, including pauses requested
// by a server through Retry-After.
const MaxWait = 30 * time.Second

// RetryableError marks a transient failure. After, when positive, is the
// minimum pause the server asked for before the next attempt.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a [RetryableError]. A nil err stays nil.
func Retryable(err error) error {
	return RetryAfter(err, 0)
}

// RetryAfter is like [Retryable] but asks [Retry] to pause at least d.
func RetryAfter(err error, d time.Duration) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, After: d}
}

// IsRetryable reports whether err is wrapped with [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// ParseRetryAfter reads a Retry-After header value given either as seconds
// or as an HTTP date. Unparseable or past values yield 0.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(t.Sub(now), 0)
	}
	return 0
}

// Retry calls fn up to attempts times. Only [RetryableError] failures are
// retried; anything else is returned at once. The pause starts at delay and
// doubles after every failure, is raised to the error's After hint, and is
// capped at [MaxWait]. The last error is returned when attempts run out, or
// ctx.Err() when ctx ends first.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		var re *RetryableError
		if !errors.As(err, &re) {
			return err
		}
		if i == attempts-1 {
			break
		}

		wait := min(max(delay, re.After), MaxWait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
	return lastErr
}

// RetryWithBackoff retries registry calls: 3 attempts starting at 500ms.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, 3, 500*time.Millisecond, fn)
}
