package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Veraticus/quotesmith/internal/service"
)

var (
	// ErrRateLimit indicates that the API rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
	// RetryAfter is the server-requested delay before the next attempt, if any.
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return &RetryableError{Err: err, Retryable: false}
}

// Transient marks err as retryable, optionally after a server-provided delay.
func Transient(err error, retryAfter time.Duration) error {
	return &RetryableError{Err: err, Retryable: true, RetryAfter: retryAfter}
}

type attemptScopeKey struct{}

// WithAttemptScope returns a copy of ctx under which WithRetry starts no new
// attempt once scope is done. An attempt already running still uses ctx.
func WithAttemptScope(ctx, scope context.Context) context.Context {
	return context.WithValue(ctx, attemptScopeKey{}, scope)
}

func attemptScope(ctx context.Context) context.Context {
	if scope, ok := ctx.Value(attemptScopeKey{}).(context.Context); ok {
		return scope
	}
	return nil
}

// WithRetry executes an operation with configurable retry behavior.
// Delays grow exponentially up to MaxDelay with up to 20% jitter. A RetryAfter
// hint on the returned error replaces the computed delay for that attempt.
func WithRetry(ctx context.Context, operation func() error, opts service.RetryOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}

	delay := opts.InitialDelay
	scope := attemptScope(ctx)
	var scopeDone <-chan struct{}
	if scope != nil {
		scopeDone = scope.Done()
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		var retryableErr *RetryableError
		if errors.As(err, &retryableErr) && !retryableErr.Retryable {
			return err
		}
		if IsFatal(err) {
			return err
		}

		if attempt == opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, opts.MaxAttempts, err)
		}

		if scope != nil && scope.Err() != nil {
			return fmt.Errorf("retry interrupted: %w (last error: %w)", scope.Err(), err)
		}

		wait := withJitter(delay)
		if retryableErr != nil && retryableErr.RetryAfter > 0 {
			wait = retryableErr.RetryAfter
		} else if errors.Is(err, ErrRateLimit) {
			wait = opts.MaxDelay
		}

		slog.Warn("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", wait,
			"error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry interrupted: %w (last error: %w)", ctx.Err(), err)
		case <-scopeDone:
			timer.Stop()
			return fmt.Errorf("retry interrupted: %w (last error: %w)", scope.Err(), err)
		case <-timer.C:
			delay = time.Duration(float64(delay) * opts.Multiplier)
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
	}

	return ErrMaxRetries
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	jitter := time.Duration(rand.Int64N(int64(d)/5 + 1))
	return d + jitter
}
