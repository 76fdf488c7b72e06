package utils

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Backoff retries a function with exponential delay plus jitter.
type Backoff struct {
	Base       time.Duration
	MaxRetries int
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a permanent error, exhausts the
// retry budget, or ctx is done.
func (b Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	var err error
	for i := 0; i <= b.MaxRetries; i++ {
		err = fn(i)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if i == b.MaxRetries {
			break
		}
		sleep := time.Duration(1<<i) * b.Base
		sleep += time.Duration(rand.Int63n(int64(b.Base) + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return err
}
