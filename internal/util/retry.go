package util

import (
	"context"
	"errors"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// NoRetry marks err as permanent: RetryWithContext returns it immediately
// instead of burning the remaining attempts. Use it for outcomes another
// attempt can never change, like a confirmed not-found.
func NoRetry(err error) error {
	return &permanentError{err: err}
}

// RetryWithContext calls fn up to maxTries times until it returns a nil
// error, or until ctx is done. Context errors and NoRetry-marked errors
// abort the loop immediately; the marker is stripped before returning so
// callers match the underlying error.
func RetryWithContext[T any](ctx context.Context, maxTries int, fn func(context.Context) (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err
	}
	return zero, lastErr
}
