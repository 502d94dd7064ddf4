package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/quotesmith/internal/common"
)

// APIError is a non-200 response from a provider.
type APIError struct {
	kind       error
	Provider   string
	Body       string
	StatusCode int
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, body)
}

// Unwrap exposes the error class so callers can use errors.Is with the
// common sentinels.
func (e *APIError) Unwrap() error {
	return e.kind
}

// Retryable reports whether another attempt may succeed.
func (e *APIError) Retryable() bool {
	return errors.Is(e.kind, common.ErrRateLimit) || errors.Is(e.kind, common.ErrServiceUnavailable)
}

// newAPIError classifies a provider response. Auth, billing, and quota
// problems are rejections that no retry can fix.
func newAPIError(provider string, resp *http.Response, body []byte) error {
	e := &APIError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       string(body),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	lower := strings.ToLower(e.Body)
	quota := strings.Contains(lower, "insufficient_quota") ||
		strings.Contains(lower, "credit balance") ||
		strings.Contains(lower, "billing")

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusPaymentRequired,
		quota:
		e.kind = common.ErrServiceRejected
	case resp.StatusCode == http.StatusTooManyRequests:
		e.kind = common.ErrRateLimit
	case resp.StatusCode >= 500:
		// Includes Anthropic's 529 overloaded.
		e.kind = common.ErrServiceUnavailable
	default:
		e.kind = common.ErrRemote
	}

	if e.Retryable() {
		return common.Transient(e, e.RetryAfter)
	}
	return common.Permanent(e)
}

// transportError wraps a failed round trip as a retryable outage, unless the
// caller canceled it.
func transportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return common.Permanent(fmt.Errorf("%s request canceled: %w", provider, err))
	}
	return common.Transient(fmt.Errorf("%w: %s request failed: %w", common.ErrServiceUnavailable, provider, err), 0)
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
