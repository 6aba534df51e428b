// Package retry wraps a single unreliable external call with bounded
// exponential backoff. It exists for generation-provider calls but is not
// provider specific.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkmesh/inkmesh/logging"
)

// DefaultMaxRetries is the default number of attempts before giving up.
const DefaultMaxRetries = 3

// DefaultBaseDelay is the default backoff before the second attempt. The
// delay doubles after each failed attempt.
const DefaultBaseDelay = 2 * time.Second

// PermanentError marks an error as non-retryable. The executor returns it
// immediately without further attempts.
type PermanentError struct {
	Err error
}

// Error implements the error interface.
func (e *PermanentError) Error() string { return e.Err.Error() }

// Unwrap exposes the wrapped error to errors.Is/As.
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the executor will not retry it. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is marked non-retryable.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Options configures an Executor.
type Options struct {
	// MaxRetries is the total number of attempts (not additional retries).
	MaxRetries int
	// BaseDelay is the sleep before the second attempt; it doubles after
	// every subsequent failure.
	BaseDelay time.Duration
	// Logger receives one warn entry per failed attempt.
	Logger logging.Logger
	// Sleep is the delay function, injectable for tests. Defaults to a
	// ctx-aware timer sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry, when set, is invoked once per failed attempt that will be
	// retried. Used for instrumentation.
	OnRetry func(attempt int)
}

// Executor retries one outbound call with exponential backoff. The wrapped
// call is synchronous from the caller's viewpoint: the caller blocks for the
// whole attempt sequence. There is no timeout beyond what ctx carries; a call
// that never returns blocks the executor indefinitely.
type Executor struct {
	opts Options
}

// New constructs an Executor with bounded exponential backoff defaults
// (3 attempts, 2s base delay, doubling).
func New(optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Logger:     logging.NoOpLogger{},
		Sleep:      sleepCtx,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &Executor{opts: opts}
}

// Do runs op, retrying failures with exponential backoff. Success on any
// attempt returns immediately. After MaxRetries consecutive failures the
// final error is returned wrapped, never swallowed. Permanent errors and
// context cancellation abort without further attempts.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	delay := e.opts.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= e.opts.MaxRetries; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return fmt.Errorf("permanent failure on attempt %d: %w", attempt, lastErr)
		}
		if attempt == e.opts.MaxRetries {
			break
		}
		e.opts.Logger.Warn("retrying after failure", "attempt", attempt, "max_retries", e.opts.MaxRetries, "backoff", delay, "error", lastErr.Error())
		if e.opts.OnRetry != nil {
			e.opts.OnRetry(attempt)
		}
		if err := e.opts.Sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
	return fmt.Errorf("all %d attempts failed: %w", e.opts.MaxRetries, lastErr)
}

// DoValue is Do for operations that produce a value. The zero value is
// returned alongside the terminal error.
func DoValue[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, func(ctx context.Context) error {
		var opErr error
		out, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
