// Package retry runs storage calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy controls how often and how patiently an operation is retried
type Policy struct {
	// Attempts is the total number of tries, including the first one
	Attempts int
	// BaseDelay is the wait after the first failure; it doubles after
	// each further failure
	BaseDelay time.Duration
	// MaxDelay caps a single wait; zero means no cap
	MaxDelay time.Duration
	// IsRetryable reports whether an error may succeed on another try;
	// nil treats every error as retryable
	IsRetryable func(error) bool
	// OnRetry is called before each wait
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Backoff returns the wait after the given zero-based failed attempt
func (p Policy) Backoff(attempt int) time.Duration {
	wait := p.BaseDelay
	for i := 0; i < attempt; i++ {
		wait *= 2
		if p.MaxDelay > 0 && wait >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && wait > p.MaxDelay {
		return p.MaxDelay
	}
	return wait
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, returns a permanent error, the attempts
// are exhausted or ctx is done. The last error from fn is returned with
// any Permanent marker removed.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		if p.IsRetryable != nil && !p.IsRetryable(err) {
			break
		}
		if attempt == attempts-1 {
			break
		}

		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, wait)
		}
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return lastErr
}
