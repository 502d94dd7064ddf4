// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/quotesmith/internal/model"
)

// Pipeline error taxonomy.
var (
	// Workbook errors.
	ErrIO         = errors.New("workbook unreadable")
	ErrFileFormat = errors.New("workbook format error")

	// Row errors.
	ErrValidation        = errors.New("validation failed")
	ErrMalformedResponse = errors.New("malformed model response")

	// Remote service errors.
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrServiceRejected    = errors.New("service rejected request")
	ErrUnauthorized       = errors.New("authentication failed")
	ErrAmbiguousOutcome   = errors.New("request outcome unknown")
	ErrRemote             = errors.New("remote error")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrServiceRejected) || errors.Is(err, ErrUnauthorized)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if IsFatal(err) {
		return false
	}
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

// KindOf maps an error onto the reporting taxonomy.
// Fatal kinds are checked first so a rejected call that also exhausted retries
// is still reported as a rejection.
func KindOf(err error) model.ErrorKind {
	switch {
	case err == nil:
		return model.KindNone
	case errors.Is(err, ErrUnauthorized):
		return model.KindUnauthorized
	case errors.Is(err, ErrServiceRejected):
		return model.KindServiceRejected
	case errors.Is(err, ErrIO):
		return model.KindIO
	case errors.Is(err, ErrFileFormat):
		return model.KindFileFormat
	case errors.Is(err, ErrValidation):
		return model.KindValidation
	case errors.Is(err, ErrMalformedResponse):
		return model.KindMalformedResponse
	case errors.Is(err, ErrAmbiguousOutcome):
		return model.KindAmbiguousOutcome
	case errors.Is(err, ErrRateLimit):
		return model.KindRateLimited
	case errors.Is(err, ErrServiceUnavailable), errors.Is(err, context.DeadlineExceeded):
		return model.KindServiceUnavailable
	case errors.Is(err, context.Canceled):
		return model.KindCanceled
	case errors.Is(err, ErrRemote):
		return model.KindRemote
	default:
		return model.KindUnknown
	}
}
